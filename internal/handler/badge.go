package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/service"
	"github.com/dukerupert/frisfocus/internal/store"
)

type rewardRequest struct {
	Type   string `json:"type" validate:"required,oneof=points gift both"`
	Points int    `json:"points" validate:"gte=0"`
	Gift   string `json:"gift" validate:"max=200"`
}

func (r *rewardRequest) reward() *model.Reward {
	if r == nil {
		return nil
	}
	return &model.Reward{Type: r.Type, Points: r.Points, Gift: r.Gift}
}

type BadgeHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewBadgeHandler(svc *service.Service, logger *slog.Logger) *BadgeHandler {
	return &BadgeHandler{svc: svc, logger: logger}
}

type badgeRequest struct {
	Name        string         `json:"name" validate:"required,max=100"`
	Description string         `json:"description" validate:"max=500"`
	Required    int            `json:"required" validate:"gte=1"`
	Reward      *rewardRequest `json:"reward"`
	TaskID      *int64         `json:"task_id" validate:"omitempty,gt=0"`
}

func (b badgeRequest) input() store.BadgeInput {
	return store.BadgeInput{
		Name:        b.Name,
		Description: b.Description,
		Required:    b.Required,
		Reward:      b.Reward.reward(),
		TaskID:      b.TaskID,
	}
}

// List handles GET /api/circles/{id}/badges
func (h *BadgeHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	badges, err := h.svc.ListBadges(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(badges))
}

// Create handles POST /api/circles/{id}/badges
func (h *BadgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req badgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.AddBadge(r.Context(), id, auth.UserID(r.Context()), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusCreated, out)
}

// Update handles PUT /api/circles/{id}/badges/{badge_id}
func (h *BadgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	badgeID, ok := pathID(w, r, "badge_id")
	if !ok {
		return
	}
	var req badgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.EditBadge(r.Context(), id, auth.UserID(r.Context()), badgeID, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// Delete handles DELETE /api/circles/{id}/badges/{badge_id}
func (h *BadgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	badgeID, ok := pathID(w, r, "badge_id")
	if !ok {
		return
	}
	out, err := h.svc.DeleteBadge(r.Context(), id, auth.UserID(r.Context()), badgeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// Progress handles POST /api/circles/{id}/badges/{badge_id}/progress
func (h *BadgeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	badgeID, ok := pathID(w, r, "badge_id")
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	badge, err := h.svc.AdjustBadgeProgress(r.Context(), id, auth.UserID(r.Context()), badgeID, req.Delta)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}
