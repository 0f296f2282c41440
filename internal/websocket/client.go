package websocket

import (
	"context"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	// Clients only listen; anything they send is discarded.
	readLimit = 512
)

// Client is one connection watching one circle on behalf of one member.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	circleID int64
	userID   int64
	send     chan []byte

	evictOnce sync.Once
	evicted   chan struct{}
}

func NewClient(hub *Hub, conn *ws.Conn, circleID, userID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		circleID: circleID,
		userID:   userID,
		send:     make(chan []byte, sendBufferSize),
		evicted:  make(chan struct{}),
	}
}

// evict asks the client to flush what is queued and disconnect. Used when
// the member loses access to the circle.
func (c *Client) evict() {
	c.evictOnce.Do(func() { close(c.evicted) })
}

// Run registers the client and serves it until the connection ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(readLimit)
	go func() {
		c.writePump(ctx)
		cancel()
	}()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-c.evicted:
			c.flush(ctx)
			c.conn.Close(ws.StatusPolicyViolation, "removed from circle")
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, ws.MessageText, msg)
}

// flush writes whatever is already buffered, so an evicted member still
// sees the event that removed them.
func (c *Client) flush(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok || c.write(ctx, msg) != nil {
				return
			}
		default:
			return
		}
	}
}
