package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/service"
	"github.com/dukerupert/frisfocus/internal/store"
)

type AwardHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewAwardHandler(svc *service.Service, logger *slog.Logger) *AwardHandler {
	return &AwardHandler{svc: svc, logger: logger}
}

type awardRequest struct {
	Name         string         `json:"name" validate:"required,max=100"`
	Description  string         `json:"description" validate:"max=500"`
	Type         string         `json:"type" validate:"required"`
	TargetPoints int            `json:"target_points" validate:"gte=0"`
	Category     string         `json:"category" validate:"max=50"`
	Reward       *rewardRequest `json:"reward"`
}

func (a awardRequest) input() store.AwardInput {
	return store.AwardInput{
		Name:         a.Name,
		Description:  a.Description,
		Type:         a.Type,
		TargetPoints: a.TargetPoints,
		Category:     a.Category,
		Reward:       a.Reward.reward(),
	}
}

// List handles GET /api/circles/{id}/awards
func (h *AwardHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	awards, err := h.svc.ListAwards(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(awards))
}

// Create handles POST /api/circles/{id}/awards
func (h *AwardHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req awardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.AddAward(r.Context(), id, auth.UserID(r.Context()), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusCreated, out)
}

// Update handles PUT /api/circles/{id}/awards/{award_id}
func (h *AwardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	awardID, ok := pathID(w, r, "award_id")
	if !ok {
		return
	}
	var req awardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.EditAward(r.Context(), id, auth.UserID(r.Context()), awardID, req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// Delete handles DELETE /api/circles/{id}/awards/{award_id}
func (h *AwardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	awardID, ok := pathID(w, r, "award_id")
	if !ok {
		return
	}
	out, err := h.svc.DeleteAward(r.Context(), id, auth.UserID(r.Context()), awardID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

// Wins handles GET /api/circles/{id}/awards/{award_id}/wins
func (h *AwardHandler) Wins(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	awardID, ok := pathID(w, r, "award_id")
	if !ok {
		return
	}
	wins, err := h.svc.ListAwardWins(r.Context(), id, auth.UserID(r.Context()), awardID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(wins))
}
