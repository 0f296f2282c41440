package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/frisfocus/internal/auth"
	"github.com/dukerupert/frisfocus/internal/middleware"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/service"
)

type AuthHandler struct {
	svc          *service.Service
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(svc *service.Service, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, secureCookie: secureCookie, logger: logger}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Register handles POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, sess, err := h.svc.Register(r.Context(), strings.TrimSpace(req.Email), req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, sess, err := h.svc.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// Logout handles POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), auth.SessionID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
