package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/dukerupert/frisfocus/internal/service"
	"github.com/dukerupert/frisfocus/internal/store"
)

type TaskHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewTaskHandler(svc *service.Service, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

type taskRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Value    flexInt `json:"value"`
	TaskType string  `json:"task_type" validate:"omitempty,oneof=per_person circle_task"`
	Category string  `json:"category" validate:"max=50"`
}

func (t taskRequest) input() store.TaskInput {
	return store.TaskInput{
		Name:     t.Name,
		Value:    int(t.Value),
		TaskType: t.TaskType,
		Category: t.Category,
	}
}

// writeOutcome answers a mutation that may have been queued for approval:
// 202 with the request when queued, otherwise status with the item.
func writeOutcome[T any](w http.ResponseWriter, status int, out service.Outcome[T]) {
	if out.Pending() {
		writeJSON(w, http.StatusAccepted, out)
		return
	}
	if out.Item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, out)
}

// List handles GET /api/circles/{id}/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tasks, err := h.svc.ListTasks(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(tasks))
}

// Create handles POST /api/circles/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.AddTask(r.Context(), id, auth.UserID(r.Context()), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusCreated, out)
}

// Update handles PUT /api/circles/{id}/tasks/{task_id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.EditTask(r.Context(), id, auth.UserID(r.Context()), taskID, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// Delete handles DELETE /api/circles/{id}/tasks/{task_id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	out, err := h.svc.DeleteTask(r.Context(), id, auth.UserID(r.Context()), taskID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// Toggle handles POST /api/circles/{id}/tasks/{task_id}/toggle
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	var date *time.Time
	if req.Date != "" {
		d, err := clock.ParseDate(req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "expected YYYY-MM-DD", Field: "date"})
			return
		}
		date = &d
	}

	res, err := h.svc.ToggleCompletion(r.Context(), id, taskID, auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TaskCompletions handles GET /api/circles/{id}/tasks/{task_id}/completions
func (h *TaskHandler) TaskCompletions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	completions, err := h.svc.GetCompletions(r.Context(), id, taskID, auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(completions))
}

// CircleCompletions handles GET /api/circles/{id}/completions
func (h *TaskHandler) CircleCompletions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	date, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	completions, err := h.svc.ListCompletions(r.Context(), id, auth.UserID(r.Context()), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(completions))
}

// MemberPoints handles GET /api/circles/{id}/members/{user_id}/points
func (h *TaskHandler) MemberPoints(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	kind, err := points.ParseKind(r.URL.Query().Get("window"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "window must be day, week or alltime", Field: "window"})
		return
	}
	tasks, total, err := h.svc.MemberBreakdown(r.Context(), id, auth.UserID(r.Context()), userID, kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": kind,
		"total":  total,
		"tasks":  emptyList(tasks),
	})
}
