package push

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dukerupert/frisfocus/internal/database"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestEnabled(t *testing.T) {
	if NewService("", "", "").Enabled() {
		t.Error("service without keys should be disabled")
	}
	if !NewService("pub", "priv", "").Enabled() {
		t.Error("service with keys should be enabled")
	}
}

func TestSendMapsGoneToExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	_, p256dh, _ := GenerateVAPIDKeys()

	svc := NewService(pub, priv, "")
	sub := &model.PushSubscription{
		Endpoint:  srv.URL,
		P256dhKey: p256dh,
		AuthKey:   base64.RawURLEncoding.EncodeToString([]byte("0123456789abcdef")),
	}
	err = svc.Send(context.Background(), sub, Payload{Title: "t", Body: "b"})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

type fakeSender struct {
	mu      sync.Mutex
	sent    map[string][]Payload
	expired map[string]bool
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired[sub.Endpoint] {
		return ErrExpired
	}
	if f.sent == nil {
		f.sent = map[string][]Payload{}
	}
	f.sent[sub.Endpoint] = append(f.sent[sub.Endpoint], p)
	return nil
}

func TestNotifyManagers(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	st := store.New(db)

	owner, err := st.Users.Create(ctx, "owner@example.com", "Olive", "", "")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	plain, err := st.Users.Create(ctx, "plain@example.com", "Pat", "", "")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	circle, err := st.Circles.Create(ctx, owner.ID, store.CircleInput{Name: "Home"})
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	if _, err := st.Circles.AddMember(ctx, circle.ID, plain.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}

	for _, s := range []struct {
		user     int64
		endpoint string
	}{
		{owner.ID, "https://push.example/owner-phone"},
		{owner.ID, "https://push.example/owner-laptop"},
		{plain.ID, "https://push.example/member"},
	} {
		if _, err := st.Push.CreateSubscription(ctx, s.user, s.endpoint, "p", "a"); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}

	sender := &fakeSender{expired: map[string]bool{"https://push.example/owner-laptop": true}}
	n := NewNotifier(sender, st, slog.Default())
	n.NotifyManagers(ctx, circle.ID, "New request", "Pat wants to add a task", "approval")

	if got := len(sender.sent["https://push.example/owner-phone"]); got != 1 {
		t.Errorf("owner phone got %d notifications, want 1", got)
	}
	if got := len(sender.sent["https://push.example/member"]); got != 0 {
		t.Errorf("plain member got %d notifications, want 0", got)
	}

	subs, err := st.Push.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/owner-phone" {
		t.Errorf("subscriptions after expiry = %+v, want only the phone", subs)
	}
}
