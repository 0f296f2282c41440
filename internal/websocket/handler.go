package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/model"
)

// CircleViewer checks that a user may watch a circle.
type CircleViewer interface {
	GetCircle(ctx context.Context, circleID, viewerID int64) (*model.Circle, error)
}

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// requests for ?circle_id= to WebSocket and runs them as Hub clients.
func HandleWebSocket(hub *Hub, circles CircleViewer, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		circleID, err := strconv.ParseInt(r.URL.Query().Get("circle_id"), 10, 64)
		if err != nil {
			http.Error(w, "circle_id is required", http.StatusBadRequest)
			return
		}
		if _, err := circles.GetCircle(r.Context(), circleID, userID); err != nil {
			logger.Warn("websocket circle check", "circle_id", circleID, "user_id", userID, "error", err)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, circleID, userID)
		client.Run(r.Context())
	}
}
