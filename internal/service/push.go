package service

import (
	"context"
	"strings"

	"github.com/dukerupert/frisfocus/internal/model"
)

// SubscribePush stores a Web Push subscription for the user. Re-subscribing
// the same endpoint replaces its keys.
func (s *Service) SubscribePush(ctx context.Context, userID int64, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	if !strings.HasPrefix(endpoint, "https://") {
		return nil, invalid("endpoint", "must be an https URL")
	}
	if p256dh == "" || auth == "" {
		return nil, invalid("keys", "p256dh and auth are required")
	}
	return s.stores().Push.CreateSubscription(ctx, userID, endpoint, p256dh, auth)
}

// UnsubscribePush removes one of the user's subscriptions by endpoint.
func (s *Service) UnsubscribePush(ctx context.Context, userID int64, endpoint string) error {
	st := s.stores()
	subs, err := st.Push.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.Endpoint == endpoint {
			return st.Push.DeleteSubscription(ctx, sub.ID, userID)
		}
	}
	return notFound("subscription")
}
