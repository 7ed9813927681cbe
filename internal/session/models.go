package session

import "time"

// Session is the server-side record behind a login cookie
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at t
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Backend identifies which store variant the initializer selected
type Backend string

const (
	// BackendRedis is the shared, durable store
	BackendRedis Backend = "redis"
	// BackendMemory is the process-local fallback; lost on restart
	BackendMemory Backend = "memory"
)
