// Package server wires the resolved dependencies into the HTTP handler and
// the http.Server that serves it.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"conference/internal/auth"
	"conference/internal/config"
	"conference/internal/database"
	"conference/internal/session"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	db     database.Service
	logger *slog.Logger

	backend    session.Backend
	sessionMgr session.Manager
	cookies    *session.Cookie
	limiter    *auth.LoginLimiter
}

// New builds a Server. It takes the outcome of session.Resolve, so no route
// can exist before the session store has been chosen.
func New(cfg *config.Config, db database.Service, store *session.Resolution, logger *slog.Logger) *Server {
	if cfg.DefaultSecret() {
		logger.Warn("SESSION_SECRET is the built-in default, set a real secret")
	}

	return &Server{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		backend:    store.Backend,
		sessionMgr: session.NewManager(store.Store),
		cookies:    session.NewCookie(cfg.SessionSecret, cfg.SessionMaxAge, cfg.Production()),
		limiter:    auth.NewLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
	}
}

// HTTPServer returns the configured http.Server for the routes
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.RegisterRoutes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
