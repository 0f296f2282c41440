package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Notifier pushes circle notifications to the circle's owner and admins.
type Notifier struct {
	sender Sender
	stores *store.Stores
	logger *slog.Logger
}

// NewNotifier creates a notifier reading subscriptions through stores.
func NewNotifier(sender Sender, stores *store.Stores, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		stores: stores,
		logger: logger.With("component", "push"),
	}
}

// NotifyManagers sends the notification to every subscription of the circle's
// managers. Expired subscriptions are deleted.
func (n *Notifier) NotifyManagers(ctx context.Context, circleID int64, title, body, tag string) {
	managers, err := n.stores.Circles.ListManagers(ctx, circleID)
	if err != nil {
		n.logger.Error("list managers", "circle_id", circleID, "error", err)
		return
	}

	payload := Payload{
		Title: title,
		Body:  body,
		URL:   fmt.Sprintf("/circles/%d", circleID),
		Tag:   tag,
	}

	for _, m := range managers {
		subs, err := n.stores.Push.ListByUser(ctx, m.UserID)
		if err != nil {
			n.logger.Error("list subscriptions", "user_id", m.UserID, "error", err)
			continue
		}
		for i := range subs {
			n.deliver(ctx, &subs[i], payload)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, sub *model.PushSubscription, payload Payload) {
	err := n.sender.Send(ctx, sub, payload)
	if err == nil {
		return
	}
	if errors.Is(err, ErrExpired) {
		if err := n.stores.Push.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			n.logger.Error("delete expired subscription", "error", err)
		}
		return
	}
	n.logger.Warn("send push", "user_id", sub.UserID, "tag", payload.Tag, "error", err)
}
