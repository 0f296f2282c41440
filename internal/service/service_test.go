package service

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/frisfocus/internal/cache"
	"github.com/dukerupert/frisfocus/internal/database"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type broadcast struct {
	circleID int64
	entity   string
	action   string
}

type recorder struct {
	mu   sync.Mutex
	sent []broadcast
}

func (r *recorder) BroadcastCircle(circleID int64, entity, action string, _ int64, _ map[string]any) {
	r.mu.Lock()
	r.sent = append(r.sent, broadcast{circleID, entity, action})
	r.mu.Unlock()
}

func (r *recorder) has(circleID int64, entity, action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.sent {
		if b.circleID == circleID && b.entity == entity && b.action == action {
			return true
		}
	}
	return false
}

type notice struct {
	circleID int64
	title    string
}

type notifyRecorder struct {
	mu   sync.Mutex
	sent []notice
}

func (n *notifyRecorder) NotifyManagers(_ context.Context, circleID int64, title, _, _ string) {
	n.mu.Lock()
	n.sent = append(n.sent, notice{circleID, title})
	n.mu.Unlock()
}

// logBuffer collects the service's JSON log lines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// records returns the attributes of every log record with the given message.
func (b *logBuffer) records(t *testing.T, msg string) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", sc.Text(), err)
		}
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

type fixture struct {
	svc    *Service
	db     *sql.DB
	clock  *testClock
	cache  *cache.Memory
	events *recorder
	notes  *notifyRecorder
	logs   *logBuffer
}

// Sunday 2024-12-01, 10:00 UTC.
var day1 = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

func setupService(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t, ":memory:")
}

// setupFileService backs the service with an on-disk database so that
// concurrent transactions use separate connections.
func setupFileService(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t, filepath.Join(t.TempDir(), "frisfocus.db"))
}

func newFixture(t *testing.T, path string) *fixture {
	t.Helper()
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:     db,
		clock:  &testClock{now: day1},
		cache:  cache.NewMemory(),
		events: &recorder{},
		notes:  &notifyRecorder{},
		logs:   &logBuffer{},
	}
	f.svc = New(db, Options{
		Clock:       f.clock,
		Cache:       f.cache,
		Broadcaster: f.events,
		Notifier:    f.notes,
		Logger:      slog.New(slog.NewJSONHandler(f.logs, nil)),
	})
	return f
}

func (f *fixture) user(t *testing.T, email, first string) int64 {
	t.Helper()
	u, err := store.NewUserStore(f.db).Create(context.Background(), email, first, "", "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

func (f *fixture) circle(t *testing.T, ownerID int64, name string) *model.Circle {
	t.Helper()
	c, err := f.svc.CreateCircle(context.Background(), ownerID, store.CircleInput{Name: name})
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	return c
}

func (f *fixture) join(t *testing.T, circleID, ownerID int64, email string) {
	t.Helper()
	if _, err := f.svc.AddMember(context.Background(), circleID, ownerID, email); err != nil {
		t.Fatalf("add member %s: %v", email, err)
	}
}

func (f *fixture) task(t *testing.T, circleID, actorID int64, name string, value int, taskType string) *model.CircleTask {
	t.Helper()
	out, err := f.svc.AddTask(context.Background(), circleID, actorID, store.TaskInput{Name: name, Value: value, TaskType: taskType})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if out.Item == nil {
		t.Fatal("expected task to be created directly")
	}
	return out.Item
}

func (f *fixture) toggle(t *testing.T, circleID, taskID, userID int64) *ToggleResult {
	t.Helper()
	res, err := f.svc.ToggleCompletion(context.Background(), circleID, taskID, userID, nil)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	return res
}

func TestCreateCircleMakesOwner(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Olivia")

	c := f.circle(t, owner, "Williams Household")
	if c.InviteCode == "" {
		t.Error("expected invite code")
	}
	if c.MemberCount != 1 {
		t.Errorf("member count = %d, want 1", c.MemberCount)
	}

	members, err := f.svc.ListMembers(ctx, c.ID, owner)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].Role != model.RoleOwner {
		t.Errorf("members = %+v, want single owner", members)
	}

	if _, err := f.svc.CreateCircle(ctx, owner, store.CircleInput{Name: "  "}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name err = %v, want ErrValidation", err)
	}
}

func TestRotateInviteCode(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Olivia")
	other := f.user(t, "other@example.com", "Oscar")
	c := f.circle(t, owner, "Williams Household")
	f.join(t, c.ID, owner, "other@example.com")

	code, err := f.svc.RotateInviteCode(ctx, c.ID, owner)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if code == c.InviteCode || len(code) != inviteCodeLength {
		t.Errorf("code = %q, want new %d-char code", code, inviteCodeLength)
	}
	if _, err := f.svc.RotateInviteCode(ctx, c.ID, other); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("member rotate err = %v, want ErrPermissionDenied", err)
	}
}

func TestRoleInvariants(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Olivia")
	admin := f.user(t, "admin@example.com", "Adam")
	plain := f.user(t, "plain@example.com", "Paula")
	c := f.circle(t, owner, "Williams Household")
	f.join(t, c.ID, owner, "admin@example.com")
	f.join(t, c.ID, owner, "plain@example.com")

	if err := f.svc.SetMemberRole(ctx, c.ID, owner, admin, model.RoleAdmin); err != nil {
		t.Fatalf("promote admin: %v", err)
	}

	tests := []struct {
		name   string
		actor  int64
		target int64
		role   string
		want   error
	}{
		{"owner cannot change own role", owner, owner, model.RoleMember, ErrPermissionDenied},
		{"admin cannot assign roles", admin, plain, model.RoleAdmin, ErrPermissionDenied},
		{"member cannot change own role", plain, plain, model.RoleAdmin, ErrPermissionDenied},
		{"admin cannot demote owner", admin, owner, model.RoleMember, ErrPermissionDenied},
		{"owner role cannot be assigned", owner, plain, model.RoleOwner, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.SetMemberRole(ctx, c.ID, tt.actor, tt.target, tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := f.svc.RemoveMember(ctx, c.ID, admin, owner); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("remove owner err = %v, want ErrPermissionDenied", err)
	}
	if err := f.svc.RemoveMember(ctx, c.ID, plain, admin); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("member removing admin err = %v, want ErrPermissionDenied", err)
	}
	if err := f.svc.RemoveMember(ctx, c.ID, plain, plain); err != nil {
		t.Errorf("member leaving: %v", err)
	}

	n, err := store.NewCircleStore(f.db).CountOwners(ctx, c.ID)
	if err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if n != 1 {
		t.Errorf("owners = %d, want 1", n)
	}
}

func TestNonMemberIsDenied(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "Olivia")
	stranger := f.user(t, "stranger@example.com", "Sam")
	c := f.circle(t, owner, "Williams Household")

	if _, err := f.svc.ListTasks(ctx, c.ID, stranger); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.ListTasks(ctx, 9999, owner); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing circle err = %v, want ErrNotFound", err)
	}
}
