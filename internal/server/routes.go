package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"conference/internal/auth"
	"conference/internal/gateway"
	"conference/internal/program"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes builds the router. Everything except /health and /login
// sits behind the session gate.
func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	// X-Forwarded-For is honoured only from configured proxies
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		s.logger.Error("Invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		gateway.RequestIDMiddleware(),
		gateway.LoggingMiddleware(s.logger),
		gateway.RecoveryMiddleware(s.logger),
	)

	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", s.healthHandler)

	authService := auth.NewService(s.db, s.logger)
	authHandler := auth.NewHandler(authService, s.sessionMgr, auth.HandlerConfig{
		Cookies:   s.cookies,
		Limiter:   s.limiter,
		LoginPage: filepath.Join(s.cfg.PublicDir, "login.html"),
	}, s.logger)

	r.GET("/login", authHandler.LoginPage)
	r.POST("/login", authHandler.Login)

	gate := gateway.RequireSession(s.sessionMgr, s.cookies, s.logger)

	protected := r.Group("/", gate)
	{
		protected.GET("/logout", authHandler.Logout)

		programHandler := program.NewHandler(program.NewRepository(s.db), s.logger)
		programHandler.RegisterRoutes(protected.Group("/api"))
	}

	r.NoRoute(gate, s.staticHandler)

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	response := make(map[string]interface{})

	dbHealth := s.db.Health()
	response["database"] = dbHealth
	response["session_store"] = map[string]string{"backend": string(s.backend)}

	status := http.StatusOK
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// staticHandler serves files from the public directory to logged-in users.
// Directories resolve to their index.html.
func (s *Server) staticHandler(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	name := filepath.Join(s.cfg.PublicDir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
	info, err := os.Stat(name)
	if err == nil && info.IsDir() {
		name = filepath.Join(name, "index.html")
		info, err = os.Stat(name)
	}
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.File(name)
}
