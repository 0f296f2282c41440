package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/frisfocus/internal/database"
	"github.com/dukerupert/frisfocus/internal/service"
	ws "github.com/dukerupert/frisfocus/internal/websocket"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(logger)
	svc := service.New(db, service.Options{Broadcaster: hub, Logger: logger})
	srv := httptest.NewServer(New(svc, hub, opts, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

type apiResponse struct {
	status int
	body   map[string]any
	list   []map[string]any
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) apiResponse {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := apiResponse{status: resp.StatusCode}
	if len(raw) > 0 && raw[0] == '[' {
		json.Unmarshal(raw, &out.list)
	} else if len(raw) > 0 {
		json.Unmarshal(raw, &out.body)
	}
	return out
}

func register(t *testing.T, srv *httptest.Server, email, first string) (string, int64) {
	t.Helper()
	res := do(t, srv, "POST", "/api/register", "", map[string]any{
		"email": email, "password": "correct-horse", "first_name": first,
	})
	if res.status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", email, res.status, res.body)
	}
	user := res.body["user"].(map[string]any)
	return res.body["token"].(string), int64(user["id"].(float64))
}

func id(m map[string]any) int64 {
	return int64(m["id"].(float64))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})
	res := do(t, srv, "GET", "/health", "", nil)
	if res.status != http.StatusOK || res.body["status"] != "ok" {
		t.Errorf("health = %d %v", res.status, res.body)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/api/me", "/api/circles", "/api/leaderboard/circles"} {
		if res := do(t, srv, "GET", path, "", nil); res.status != http.StatusUnauthorized {
			t.Errorf("GET %s without session = %d, want 401", path, res.status)
		}
	}
	if res := do(t, srv, "GET", "/api/me", "not-a-token", nil); res.status != http.StatusUnauthorized {
		t.Errorf("bogus token = %d, want 401", res.status)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"bad email", map[string]any{"email": "nope", "password": "correct-horse", "first_name": "A"}, "email"},
		{"short password", map[string]any{"email": "a@example.com", "password": "short", "first_name": "A"}, "password"},
		{"missing first name", map[string]any{"email": "a@example.com", "password": "correct-horse"}, "first_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(t, srv, "POST", "/api/register", "", tt.body)
			if res.status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", res.status)
			}
			if res.body["field"] != tt.field {
				t.Errorf("field = %v, want %s", res.body["field"], tt.field)
			}
		})
	}

	token, userID := register(t, srv, "olivia@example.com", "Olivia")
	me := do(t, srv, "GET", "/api/me", token, nil)
	if me.status != http.StatusOK || id(me.body) != userID {
		t.Errorf("me = %d %v", me.status, me.body)
	}

	if res := do(t, srv, "POST", "/api/register", "", map[string]any{
		"email": "olivia@example.com", "password": "correct-horse", "first_name": "Again",
	}); res.status != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", res.status)
	}

	if res := do(t, srv, "POST", "/api/login", "", map[string]any{
		"email": "olivia@example.com", "password": "wrong-password",
	}); res.status != http.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", res.status)
	}

	login := do(t, srv, "POST", "/api/login", "", map[string]any{
		"email": "olivia@example.com", "password": "correct-horse",
	})
	if login.status != http.StatusOK {
		t.Fatalf("login = %d %v", login.status, login.body)
	}
	second := login.body["token"].(string)

	if res := do(t, srv, "POST", "/api/logout", second, nil); res.status != http.StatusNoContent {
		t.Errorf("logout = %d, want 204", res.status)
	}
	if res := do(t, srv, "GET", "/api/me", second, nil); res.status != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", res.status)
	}
	if res := do(t, srv, "GET", "/api/me", token, nil); res.status != http.StatusOK {
		t.Errorf("other session after logout = %d, want 200", res.status)
	}
}

func TestCircleTaskFlow(t *testing.T) {
	srv := newTestServer(t, Options{})
	owner, _ := register(t, srv, "olivia@example.com", "Olivia")
	mem, memID := register(t, srv, "max@example.com", "Max")
	stranger, _ := register(t, srv, "sam@example.com", "Sam")

	created := do(t, srv, "POST", "/api/circles", owner, map[string]any{"name": "Williams Household"})
	if created.status != http.StatusCreated {
		t.Fatalf("create circle = %d %v", created.status, created.body)
	}
	base := fmt.Sprintf("/api/circles/%d", id(created.body))

	if res := do(t, srv, "GET", base, stranger, nil); res.status != http.StatusForbidden {
		t.Errorf("stranger get circle = %d, want 403", res.status)
	}
	if res := do(t, srv, "GET", "/api/circles/9999", owner, nil); res.status != http.StatusNotFound {
		t.Errorf("missing circle = %d, want 404", res.status)
	}
	if res := do(t, srv, "GET", "/api/circles/abc", owner, nil); res.status != http.StatusBadRequest || res.body["field"] != "id" {
		t.Errorf("bad id = %d %v, want 400 on id", res.status, res.body)
	}

	if res := do(t, srv, "POST", base+"/members", owner, map[string]any{"email": "max@example.com"}); res.status != http.StatusCreated {
		t.Fatalf("add member = %d %v", res.status, res.body)
	}

	// Unparsable values fall back to the default task value.
	task := do(t, srv, "POST", base+"/tasks", owner, map[string]any{
		"name": "Take out trash", "value": "lots", "task_type": "circle_task",
	})
	if task.status != http.StatusCreated {
		t.Fatalf("create task = %d %v", task.status, task.body)
	}
	item := task.body["item"].(map[string]any)
	if item["value"].(float64) != service.DefaultTaskValue {
		t.Errorf("task value = %v, want %d", item["value"], service.DefaultTaskValue)
	}
	taskPath := fmt.Sprintf("%s/tasks/%d", base, id(item))

	if res := do(t, srv, "POST", base+"/tasks", owner, map[string]any{"name": "Dishes", "task_type": "weekly"}); res.status != http.StatusBadRequest || res.body["field"] != "task_type" {
		t.Errorf("bad task type = %d %v", res.status, res.body)
	}

	toggled := do(t, srv, "POST", taskPath+"/toggle", mem, nil)
	if toggled.status != http.StatusOK || toggled.body["completed"] != true {
		t.Fatalf("toggle = %d %v", toggled.status, toggled.body)
	}

	// The owner cannot claim a circle task another member already took today.
	claimed := do(t, srv, "POST", taskPath+"/toggle", owner, nil)
	if claimed.status != http.StatusConflict || claimed.body["retryable"] != true {
		t.Errorf("second claim = %d %v, want retryable 409", claimed.status, claimed.body)
	}

	points := do(t, srv, "GET", fmt.Sprintf("%s/members/%d/points?window=day", base, memID), owner, nil)
	if points.status != http.StatusOK {
		t.Errorf("member points = %d %v", points.status, points.body)
	}

	board := do(t, srv, "GET", base+"/leaderboard", mem, nil)
	if board.status != http.StatusOK {
		t.Fatalf("leaderboard = %d %v", board.status, board.body)
	}

	// Plain members queue their additions for approval.
	queued := do(t, srv, "POST", base+"/tasks", mem, map[string]any{"name": "Walk the dog", "value": 5})
	if queued.status != http.StatusAccepted {
		t.Fatalf("member add task = %d %v, want 202", queued.status, queued.body)
	}
	reqID := id(queued.body["request"].(map[string]any))

	pending := do(t, srv, "GET", base+"/requests?status=pending", owner, nil)
	if pending.status != http.StatusOK || len(pending.list) != 1 {
		t.Fatalf("pending requests = %d %v", pending.status, pending.list)
	}
	if res := do(t, srv, "POST", fmt.Sprintf("%s/requests/%d/approve", base, reqID), mem, nil); res.status != http.StatusForbidden {
		t.Errorf("member approve = %d, want 403", res.status)
	}
	if res := do(t, srv, "POST", fmt.Sprintf("%s/requests/%d/approve", base, reqID), owner, nil); res.status != http.StatusOK {
		t.Fatalf("approve = %d %v", res.status, res.body)
	}
	if res := do(t, srv, "POST", fmt.Sprintf("%s/requests/%d/approve", base, reqID), owner, nil); res.status != http.StatusConflict {
		t.Errorf("approve twice = %d, want 409", res.status)
	}

	tasks := do(t, srv, "GET", base+"/tasks", mem, nil)
	if tasks.status != http.StatusOK || len(tasks.list) != 2 {
		t.Errorf("tasks = %d %v, want 2", tasks.status, tasks.list)
	}

	if res := do(t, srv, "DELETE", taskPath, owner, nil); res.status != http.StatusNoContent {
		t.Errorf("delete task = %d, want 204", res.status)
	}
}

func TestLoginRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{AuthRate: 1})
	body := map[string]any{"email": "nobody@example.com", "password": "whatever-pass"}

	if res := do(t, srv, "POST", "/api/login", "", body); res.status != http.StatusUnauthorized {
		t.Fatalf("first login = %d, want 401", res.status)
	}
	if res := do(t, srv, "POST", "/api/login", "", body); res.status != http.StatusTooManyRequests {
		t.Errorf("second login = %d, want 429", res.status)
	}
	// Health is not rate limited.
	if res := do(t, srv, "GET", "/health", "", nil); res.status != http.StatusOK {
		t.Errorf("health = %d", res.status)
	}
}
