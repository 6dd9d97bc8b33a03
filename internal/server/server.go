package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/config"
	"github.com/dukerupert/flatmate/internal/handler"
	"github.com/dukerupert/flatmate/internal/middleware"
	"github.com/dukerupert/flatmate/internal/service"
	"github.com/dukerupert/flatmate/internal/store"
	ws "github.com/dukerupert/flatmate/internal/websocket"
)

const (
	authRateLimit  = 10
	authRatePeriod = time.Minute
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	accountH       *handler.AccountHandler
	houseH         *handler.HouseHandler
	taskH          *handler.TaskHandler
	accounts       *service.AccountService
	houseStore     *store.HouseStore
	sessionStore   *store.SessionStore
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	houseStore := store.NewHouseStore(db)
	taskStore := store.NewTaskStore(db)
	sessionStore := store.NewSessionStore(db)

	gate := access.NewGate(houseStore)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	accounts := service.NewAccountService(userStore, sessionStore, tokens, cfg.SessionTTL, logger.With("component", "accounts"))
	houses := service.NewHouseService(houseStore, userStore, gate, logger.With("component", "houses"))
	tasks := service.NewTaskService(taskStore, houseStore, gate)

	return &Server{
		db:             db,
		hub:            hub,
		accountH:       handler.NewAccountHandler(accounts, hub, cfg.SecureCookies, logger.With("component", "account")),
		houseH:         handler.NewHouseHandler(houses, hub, cfg.OriginHosts(), logger.With("component", "house")),
		taskH:          handler.NewTaskHandler(tasks, hub, logger.With("component", "task")),
		accounts:       accounts,
		houseStore:     houseStore,
		sessionStore:   sessionStore,
		rateLimiter:    middleware.NewRateLimiter(),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the live update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.accountH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.accountH.Login))

	// Everything else under /api requires a session or bearer token
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.accounts, s.logger.With("component", "auth"))
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	var h http.Handler = outerMux
	h = middleware.CORS(s.allowedOrigins)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, authRateLimit, authRatePeriod)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("POST /api/auth/logout", s.accountH.Logout)
	mux.HandleFunc("GET /api/me", s.accountH.Me)
	mux.HandleFunc("PATCH /api/me", s.accountH.UpdateMe)
	mux.HandleFunc("DELETE /api/me", s.accountH.DeleteMe)
	mux.HandleFunc("PUT /api/me/password", s.accountH.ChangePassword)

	// Houses
	mux.HandleFunc("GET /api/houses", s.houseH.List)
	mux.HandleFunc("POST /api/houses", s.houseH.Create)
	mux.HandleFunc("POST /api/houses/join", s.houseH.Join)
	mux.HandleFunc("GET /api/houses/{id}", s.houseH.Get)
	mux.HandleFunc("DELETE /api/houses/{id}", s.houseH.Delete)
	mux.HandleFunc("POST /api/houses/{id}/exit", s.houseH.Exit)
	mux.HandleFunc("GET /api/houses/{id}/members", s.houseH.ListMembers)
	mux.HandleFunc("POST /api/houses/{id}/members", s.houseH.AddMember)
	mux.HandleFunc("GET /api/houses/{id}/ws", s.houseH.Live)

	// Tasks
	mux.HandleFunc("GET /api/houses/{id}/tasks", s.taskH.ListHouse)
	mux.HandleFunc("POST /api/houses/{id}/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.ListMine)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
}
