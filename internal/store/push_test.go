package store

import (
	"context"
	"testing"

	"github.com/dukerupert/frisfocus/internal/model"
)

func TestPushSubscriptionUpsert(t *testing.T) {
	_, st := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice@example.com", "Alice")
	bob := createUser(t, st, "bob@example.com", "Bob")
	c := createCircle(t, st, alice.ID, "Home")

	sub, err := st.Push.CreateSubscription(ctx, alice.ID, "https://push.example.com/1", "p256", "auth")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.UserID != alice.ID {
		t.Errorf("user = %d, want alice", sub.UserID)
	}

	// Same endpoint re-registered by another user moves the subscription.
	moved, err := st.Push.CreateSubscription(ctx, bob.ID, "https://push.example.com/1", "p256b", "authb")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if moved.ID != sub.ID || moved.UserID != bob.ID || moved.P256dhKey != "p256b" {
		t.Errorf("moved = %+v, want same row owned by bob", moved)
	}

	inCircle, err := st.Push.ListByCircle(ctx, c.ID)
	if err != nil {
		t.Fatalf("list by circle: %v", err)
	}
	if len(inCircle) != 0 {
		t.Errorf("circle subscriptions = %d, want 0 while bob is not a member", len(inCircle))
	}
	if _, err := st.Circles.AddMember(ctx, c.ID, bob.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	inCircle, err = st.Push.ListByCircle(ctx, c.ID)
	if err != nil {
		t.Fatalf("list by circle: %v", err)
	}
	if len(inCircle) != 1 {
		t.Errorf("circle subscriptions = %d, want 1", len(inCircle))
	}

	// Deleting with the wrong user is a no-op.
	if err := st.Push.DeleteSubscription(ctx, sub.ID, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if subs, _ := st.Push.ListByUser(ctx, bob.ID); len(subs) != 1 {
		t.Errorf("bob subscriptions = %d, want 1", len(subs))
	}
	if err := st.Push.DeleteByEndpoint(ctx, "https://push.example.com/1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	if subs, _ := st.Push.ListByUser(ctx, bob.ID); len(subs) != 0 {
		t.Errorf("bob subscriptions = %d, want 0", len(subs))
	}
}
