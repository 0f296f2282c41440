package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/objectacl"
	"github.com/dukerupert/frisfocus/internal/service"
)

type ObjectHandler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewObjectHandler(svc *service.Service, logger *slog.Logger) *ObjectHandler {
	return &ObjectHandler{svc: svc, logger: logger}
}

// GetACL handles GET /api/circles/{id}/objects/acl?path=
func (h *ObjectHandler) GetACL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	acl, err := h.svc.GetObjectACL(r.Context(), id, auth.UserID(r.Context()), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acl)
}

// SetACL handles PUT /api/circles/{id}/objects/acl
func (h *ObjectHandler) SetACL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Path       string `json:"path" validate:"required"`
		Visibility string `json:"visibility" validate:"required,oneof=private circle public"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	acl, err := h.svc.SetObjectACL(r.Context(), id, auth.UserID(r.Context()), req.Path, objectacl.Visibility(req.Visibility))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acl)
}
