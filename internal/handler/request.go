package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/service"
)

type RequestHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewRequestHandler(svc *service.Service, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{svc: svc, logger: logger}
}

// List handles GET /api/circles/{id}/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reqs, err := h.svc.ListRequests(r.Context(), id, auth.UserID(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(reqs))
}

// Approve handles POST /api/circles/{id}/requests/{request_id}/approve
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// Reject handles POST /api/circles/{id}/requests/{request_id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *RequestHandler) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "request_id")
	if !ok {
		return
	}

	resolve := h.svc.RejectRequest
	if approve {
		resolve = h.svc.ApproveRequest
	}
	req, err := resolve(r.Context(), id, requestID, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
