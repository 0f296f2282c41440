package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/service"
	"github.com/dukerupert/frisfocus/internal/store"
)

type CircleHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewCircleHandler(svc *service.Service, logger *slog.Logger) *CircleHandler {
	return &CircleHandler{svc: svc, logger: logger}
}

type circleRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Description     string `json:"description" validate:"max=500"`
	IconColor       string `json:"icon_color" validate:"omitempty,hexcolor"`
	DailyPointGoal  *int   `json:"daily_point_goal" validate:"omitempty,gte=0"`
	WeeklyPointGoal *int   `json:"weekly_point_goal" validate:"omitempty,gte=0"`
}

// circlePatch leaves absent fields unchanged.
type circlePatch struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
	IconColor       *string `json:"icon_color" validate:"omitempty,hexcolor"`
	DailyPointGoal  *int    `json:"daily_point_goal" validate:"omitempty,gte=0"`
	WeeklyPointGoal *int    `json:"weekly_point_goal" validate:"omitempty,gte=0"`
}

// List handles GET /api/circles
func (h *CircleHandler) List(w http.ResponseWriter, r *http.Request) {
	circles, err := h.svc.ListCircles(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(circles))
}

// Create handles POST /api/circles
func (h *CircleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req circleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	circle, err := h.svc.CreateCircle(r.Context(), auth.UserID(r.Context()), store.CircleInput(req))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, circle)
}

// Get handles GET /api/circles/{id}
func (h *CircleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	circle, err := h.svc.GetCircle(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, circle)
}

// Update handles PATCH /api/circles/{id}
func (h *CircleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req circlePatch
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserID(r.Context())
	current, err := h.svc.GetCircle(r.Context(), id, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := store.CircleInput{
		Name:            current.Name,
		Description:     current.Description,
		IconColor:       current.IconColor,
		DailyPointGoal:  current.DailyPointGoal,
		WeeklyPointGoal: current.WeeklyPointGoal,
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.IconColor != nil {
		in.IconColor = *req.IconColor
	}
	if req.DailyPointGoal != nil {
		in.DailyPointGoal = req.DailyPointGoal
	}
	if req.WeeklyPointGoal != nil {
		in.WeeklyPointGoal = req.WeeklyPointGoal
	}

	circle, err := h.svc.UpdateCircle(r.Context(), id, userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, circle)
}

// RotateInviteCode handles POST /api/circles/{id}/invite-code
func (h *CircleHandler) RotateInviteCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	code, err := h.svc.RotateInviteCode(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invite_code": code})
}

// ListMembers handles GET /api/circles/{id}/members
func (h *CircleHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.svc.ListMembers(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(members))
}

// AddMember handles POST /api/circles/{id}/members
func (h *CircleHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.AddMember(r.Context(), id, auth.UserID(r.Context()), req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// RemoveMember handles DELETE /api/circles/{id}/members/{user_id}
func (h *CircleHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(r.Context(), id, auth.UserID(r.Context()), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRole handles PUT /api/circles/{id}/members/{user_id}/role
func (h *CircleHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" validate:"required,oneof=admin member"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetMemberRole(r.Context(), id, auth.UserID(r.Context()), userID, req.Role); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
