package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/dukerupert/frisfocus/internal/service"
)

type LeaderboardHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewLeaderboardHandler(svc *service.Service, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc, logger: logger}
}

// Circle handles GET /api/circles/{id}/leaderboard
func (h *LeaderboardHandler) Circle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	kind, err := points.ParseKind(r.URL.Query().Get("window"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "window must be day, week or alltime", Field: "window"})
		return
	}
	entries, err := h.svc.Leaderboard(r.Context(), id, auth.UserID(r.Context()), kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(entries))
}

// Circles handles GET /api/leaderboard/circles
func (h *LeaderboardHandler) Circles(w http.ResponseWriter, r *http.Request) {
	standings, err := h.svc.CircleLeaderboard(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(standings))
}
