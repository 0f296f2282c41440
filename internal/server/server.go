package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/frisfocus/internal/handler"
	"github.com/dukerupert/frisfocus/internal/middleware"
	"github.com/dukerupert/frisfocus/internal/service"
	ws "github.com/dukerupert/frisfocus/internal/websocket"
)

// Options configures the HTTP surface.
type Options struct {
	VAPIDPublicKey string
	AllowedOrigins []string
	SecureCookies  bool
	// AuthRate is the number of login and register attempts allowed per
	// client IP per minute.
	AuthRate int
}

type Server struct {
	svc          *service.Service
	hub          *ws.Hub
	opts         Options
	authH        *handler.AuthHandler
	circleH      *handler.CircleHandler
	taskH        *handler.TaskHandler
	requestH     *handler.RequestHandler
	badgeH       *handler.BadgeHandler
	awardH       *handler.AwardHandler
	leaderboardH *handler.LeaderboardHandler
	competitionH *handler.CompetitionHandler
	pushH        *handler.PushHandler
	objectH      *handler.ObjectHandler
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(svc *service.Service, hub *ws.Hub, opts Options, logger *slog.Logger) *Server {
	if opts.AuthRate <= 0 {
		opts.AuthRate = 10
	}
	return &Server{
		svc:          svc,
		hub:          hub,
		opts:         opts,
		authH:        handler.NewAuthHandler(svc, opts.SecureCookies, logger.With("component", "auth")),
		circleH:      handler.NewCircleHandler(svc, logger.With("component", "circle")),
		taskH:        handler.NewTaskHandler(svc, logger.With("component", "task")),
		requestH:     handler.NewRequestHandler(svc, logger.With("component", "request")),
		badgeH:       handler.NewBadgeHandler(svc, logger.With("component", "badge")),
		awardH:       handler.NewAwardHandler(svc, logger.With("component", "award")),
		leaderboardH: handler.NewLeaderboardHandler(svc, logger.With("component", "leaderboard")),
		competitionH: handler.NewCompetitionHandler(svc, logger.With("component", "competition")),
		pushH:        handler.NewPushHandler(svc, opts.VAPIDPublicKey, logger.With("component", "push_handler")),
		objectH:      handler.NewObjectHandler(svc, logger.With("component", "object")),
		rateLimiter:  middleware.NewRateLimiter(opts.AuthRate, time.Minute, opts.AuthRate),
		logger:       logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.Handle("POST /api/register", s.rateLimited(s.authH.Register))
	outerMux.Handle("POST /api/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.svc)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Circles and members
	mux.HandleFunc("GET /api/circles", s.circleH.List)
	mux.HandleFunc("POST /api/circles", s.circleH.Create)
	mux.HandleFunc("GET /api/circles/{id}", s.circleH.Get)
	mux.HandleFunc("PATCH /api/circles/{id}", s.circleH.Update)
	mux.HandleFunc("POST /api/circles/{id}/invite-code", s.circleH.RotateInviteCode)
	mux.HandleFunc("GET /api/circles/{id}/members", s.circleH.ListMembers)
	mux.HandleFunc("POST /api/circles/{id}/members", s.circleH.AddMember)
	mux.HandleFunc("DELETE /api/circles/{id}/members/{user_id}", s.circleH.RemoveMember)
	mux.HandleFunc("PUT /api/circles/{id}/members/{user_id}/role", s.circleH.SetRole)
	mux.HandleFunc("GET /api/circles/{id}/members/{user_id}/points", s.taskH.MemberPoints)

	// Tasks and completions
	mux.HandleFunc("GET /api/circles/{id}/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/circles/{id}/tasks", s.taskH.Create)
	mux.HandleFunc("PUT /api/circles/{id}/tasks/{task_id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/circles/{id}/tasks/{task_id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/circles/{id}/tasks/{task_id}/toggle", s.taskH.Toggle)
	mux.HandleFunc("GET /api/circles/{id}/tasks/{task_id}/completions", s.taskH.TaskCompletions)
	mux.HandleFunc("GET /api/circles/{id}/completions", s.taskH.CircleCompletions)

	// Approval requests
	mux.HandleFunc("GET /api/circles/{id}/requests", s.requestH.List)
	mux.HandleFunc("POST /api/circles/{id}/requests/{request_id}/approve", s.requestH.Approve)
	mux.HandleFunc("POST /api/circles/{id}/requests/{request_id}/reject", s.requestH.Reject)

	// Badges
	mux.HandleFunc("GET /api/circles/{id}/badges", s.badgeH.List)
	mux.HandleFunc("POST /api/circles/{id}/badges", s.badgeH.Create)
	mux.HandleFunc("PUT /api/circles/{id}/badges/{badge_id}", s.badgeH.Update)
	mux.HandleFunc("DELETE /api/circles/{id}/badges/{badge_id}", s.badgeH.Delete)
	mux.HandleFunc("POST /api/circles/{id}/badges/{badge_id}/progress", s.badgeH.Progress)

	// Awards
	mux.HandleFunc("GET /api/circles/{id}/awards", s.awardH.List)
	mux.HandleFunc("POST /api/circles/{id}/awards", s.awardH.Create)
	mux.HandleFunc("PUT /api/circles/{id}/awards/{award_id}", s.awardH.Update)
	mux.HandleFunc("DELETE /api/circles/{id}/awards/{award_id}", s.awardH.Delete)
	mux.HandleFunc("GET /api/circles/{id}/awards/{award_id}/wins", s.awardH.Wins)

	// Leaderboards
	mux.HandleFunc("GET /api/circles/{id}/leaderboard", s.leaderboardH.Circle)
	mux.HandleFunc("GET /api/leaderboard/circles", s.leaderboardH.Circles)

	// Competitions
	mux.HandleFunc("GET /api/circles/{id}/competition-invites", s.competitionH.ListInvites)
	mux.HandleFunc("POST /api/circles/{id}/competition-invites", s.competitionH.CreateInvite)
	mux.HandleFunc("POST /api/circles/{id}/competition-invites/{invite_id}/respond", s.competitionH.RespondInvite)
	mux.HandleFunc("GET /api/circles/{id}/competitions", s.competitionH.List)
	mux.HandleFunc("GET /api/circles/{id}/competitions/{competition_id}", s.competitionH.Get)
	mux.HandleFunc("POST /api/circles/{id}/competitions/{competition_id}/end", s.competitionH.End)
	mux.HandleFunc("GET /api/circles/{id}/competitions/{competition_id}/opponent-leaderboard", s.competitionH.OpponentLeaderboard)

	// Push notifications
	mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)

	// Object ACLs
	mux.HandleFunc("GET /api/circles/{id}/objects/acl", s.objectH.GetACL)
	mux.HandleFunc("PUT /api/circles/{id}/objects/acl", s.objectH.SetACL)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.svc, s.opts.AllowedOrigins, s.logger.With("component", "websocket")))
}
