// Package gateway holds the gin middleware in front of every route: the
// session gate, request ids, request logging and panic recovery.
package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"conference/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// LoginPath is where unauthenticated requests are sent
	LoginPath = "/login"

	// ContextUserID is the gin context key holding the logged-in user id (int64)
	ContextUserID = "user_id"
	// ContextSessionID is the gin context key holding the session token
	ContextSessionID = "session_id"
	// ContextRequestID is the gin context key holding the request id
	ContextRequestID = "request_id"
)

// RequireSession admits a request only when its cookie carries a correctly
// signed token for a live session with a user id. Everything else, API paths
// included, is redirected to the login form.
func RequireSession(sessionMgr session.Manager, cookies *session.Cookie, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(cookies.Name)
		if err != nil || value == "" {
			redirectToLogin(c)
			return
		}

		token, ok := cookies.Verify(value)
		if !ok {
			logger.Warn("Rejected session cookie with bad signature",
				"request_id", c.GetString(ContextRequestID),
				"path", c.Request.URL.Path,
			)
			redirectToLogin(c)
			return
		}

		sess, err := sessionMgr.Get(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrSessionNotFound),
			errors.Is(err, session.ErrSessionExpired),
			errors.Is(err, session.ErrInvalidSession):
			logger.Debug("Invalid session",
				"error", err.Error(),
				"request_id", c.GetString(ContextRequestID),
			)
			redirectToLogin(c)
			return
		default:
			logger.Error("Session lookup failed",
				"error", err.Error(),
				"request_id", c.GetString(ContextRequestID),
			)
			redirectToLogin(c)
			return
		}

		// Double-check expiration and the user binding
		if sess.UserID == 0 || sess.Expired(time.Now()) {
			redirectToLogin(c)
			return
		}

		c.Set(ContextUserID, sess.UserID)
		c.Set(ContextSessionID, sess.ID)

		c.Next()
	}
}

func redirectToLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, LoginPath)
	c.Abort()
}

// RequestIDMiddleware generates a unique request ID for log correlation
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ContextRequestID, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()
	}
}

// LoggingMiddleware logs every request with structured attributes
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", c.GetString(ContextRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"response_size", c.Writer.Size(),
		}

		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if userID, exists := c.Get(ContextUserID); exists {
			attrs = append(attrs, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("Request failed - server error", attrs...)
		case status >= 400:
			logger.Warn("Request failed - client error", attrs...)
		default:
			logger.Info("Request completed", attrs...)
		}
	}
}

// RecoveryMiddleware turns a panic in any handler into a generic 500 and
// keeps the server running.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered",
			"panic", recovered,
			"request_id", c.GetString(ContextRequestID),
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	})
}
