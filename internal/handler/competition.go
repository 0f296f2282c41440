package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/service"
)

type CompetitionHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewCompetitionHandler(svc *service.Service, logger *slog.Logger) *CompetitionHandler {
	return &CompetitionHandler{svc: svc, logger: logger}
}

type inviteRequest struct {
	InviteCode      string `json:"invite_code" validate:"required"`
	Name            string `json:"name" validate:"required,max=100"`
	CompetitionType string `json:"competition_type" validate:"required"`
	TargetPoints    int    `json:"target_points" validate:"gte=0"`
	EndDate         string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Notes           string `json:"notes" validate:"max=500"`
}

// ListInvites handles GET /api/circles/{id}/competition-invites
func (h *CompetitionHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	invites, err := h.svc.ListInvites(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(invites))
}

// CreateInvite handles POST /api/circles/{id}/competition-invites
func (h *CompetitionHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var end *time.Time
	if req.EndDate != "" {
		d, err := clock.ParseDate(req.EndDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "expected YYYY-MM-DD", Field: "end_date"})
			return
		}
		end = &d
	}

	inv, err := h.svc.CreateInvite(r.Context(), id, auth.UserID(r.Context()), service.InviteRequest{
		InviteCode:   req.InviteCode,
		Name:         req.Name,
		Type:         req.CompetitionType,
		TargetPoints: req.TargetPoints,
		EndDate:      end,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// RespondInvite handles POST /api/circles/{id}/competition-invites/{invite_id}/respond
func (h *CompetitionHandler) RespondInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inviteID, ok := pathID(w, r, "invite_id")
	if !ok {
		return
	}
	var req struct {
		Accept *bool `json:"accept" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, comp, err := h.svc.RespondInvite(r.Context(), id, inviteID, auth.UserID(r.Context()), *req.Accept)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Invite      *model.CompetitionInvite `json:"invite"`
		Competition *model.Competition       `json:"competition,omitempty"`
	}{inv, comp})
}

// List handles GET /api/circles/{id}/competitions
func (h *CompetitionHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	comps, err := h.svc.ListCompetitions(r.Context(), id, auth.UserID(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(comps))
}

// Get handles GET /api/circles/{id}/competitions/{competition_id}
func (h *CompetitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	compID, ok := pathID(w, r, "competition_id")
	if !ok {
		return
	}
	view, err := h.svc.GetCompetition(r.Context(), id, compID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// End handles POST /api/circles/{id}/competitions/{competition_id}/end
func (h *CompetitionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	compID, ok := pathID(w, r, "competition_id")
	if !ok {
		return
	}
	comp, err := h.svc.EndCompetition(r.Context(), id, compID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// OpponentLeaderboard handles GET /api/circles/{id}/competitions/{competition_id}/opponent-leaderboard
func (h *CompetitionHandler) OpponentLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	compID, ok := pathID(w, r, "competition_id")
	if !ok {
		return
	}
	entries, err := h.svc.OpponentLeaderboard(r.Context(), id, compID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(entries))
}
