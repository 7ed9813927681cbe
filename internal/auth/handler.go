package auth

import (
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"conference/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	// InvalidCredentialsMessage is the only failure body a login attempt gets
	InvalidCredentialsMessage = "Invalid username or password."
	// ServerErrorMessage is returned whenever the failure is on our side
	ServerErrorMessage = "A server error occurred."
	// TooManyAttemptsMessage is returned when the login throttle trips
	TooManyAttemptsMessage = "Too many login attempts. Try again later."
)

//go:embed login.html
var defaultLoginPage []byte

// HandlerConfig carries the optional parts of a Handler
type HandlerConfig struct {
	Cookies *session.Cookie
	// Limiter may be nil to disable throttling
	Limiter *LoginLimiter
	// LoginPage is an HTML file served instead of the built-in form, if it exists
	LoginPage string
}

// Handler handles authentication-related HTTP requests
type Handler struct {
	service    Service
	sessionMgr session.Manager
	cookies    *session.Cookie
	limiter    *LoginLimiter
	loginPage  string
	logger     *slog.Logger
}

// NewHandler creates a new authentication handler
func NewHandler(service Service, sessionMgr session.Manager, cfg HandlerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		sessionMgr: sessionMgr,
		cookies:    cfg.Cookies,
		limiter:    cfg.Limiter,
		loginPage:  cfg.LoginPage,
		logger:     logger,
	}
}

// LoginPage handles GET /login
func (h *Handler) LoginPage(c *gin.Context) {
	if h.loginPage != "" {
		if info, err := os.Stat(h.loginPage); err == nil && !info.IsDir() {
			c.File(h.loginPage)
			return
		}
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", defaultLoginPage)
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	if h.limiter != nil && !h.limiter.Allow(c.ClientIP()) {
		h.logger.WarnContext(ctx, "Login throttled", "client_ip", c.ClientIP())
		c.String(http.StatusTooManyRequests, TooManyAttemptsMessage)
		return
	}

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WarnContext(ctx, "Login failed: malformed request", "error", err)
		c.String(http.StatusUnauthorized, InvalidCredentialsMessage)
		return
	}

	user, err := h.service.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		c.String(http.StatusUnauthorized, InvalidCredentialsMessage)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Login failed: credential store error", "username", req.Username, "error", err)
		c.String(http.StatusInternalServerError, ServerErrorMessage)
		return
	}

	// a fresh token on every login; drop whatever the browser still carries
	if previous, ok := h.sessionToken(c); ok {
		if err := h.sessionMgr.Delete(ctx, previous); err != nil {
			h.logger.WarnContext(ctx, "Failed to delete previous session", "error", err)
		}
	}

	sess, err := h.sessionMgr.Create(ctx, user.ID, h.cookies.MaxAge)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to create session", "user_id", user.ID, "error", err)
		c.String(http.StatusInternalServerError, ServerErrorMessage)
		return
	}

	h.setCookie(c, h.cookies.Sign(sess.ID), h.cookies.MaxAgeSeconds())
	c.Redirect(http.StatusFound, "/")
}

// Logout handles GET /logout
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if token, ok := h.sessionToken(c); ok {
		if err := h.sessionMgr.Delete(ctx, token); err != nil {
			h.logger.ErrorContext(ctx, "Failed to destroy session", "error", err)
			c.String(http.StatusInternalServerError, ServerErrorMessage)
			return
		}
	}

	h.setCookie(c, "", -1)
	c.Redirect(http.StatusFound, "/login")
}

// sessionToken returns the verified token from the request cookie
func (h *Handler) sessionToken(c *gin.Context) (string, bool) {
	value, err := c.Cookie(h.cookies.Name)
	if err != nil || value == "" {
		return "", false
	}
	return h.cookies.Verify(value)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.Name, value, maxAge, "/", "", h.cookies.Secure, true)
}
