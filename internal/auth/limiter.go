package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients caps the limiter table. At the cap, idle entries are
// dropped first, then the least recently seen one.
const maxTrackedClients = 10000

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles login attempts per client IP. It is process local,
// so with several instances each enforces its own budget.
type LoginLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	limit      rate.Limit
	burst      int
	maxClients int
	now        func() time.Time
}

// NewLoginLimiter allows perMinute attempts per IP with the given burst.
// perMinute <= 0 disables throttling.
func NewLoginLimiter(perMinute, burst int) *LoginLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &LoginLimiter{
		clients:    make(map[string]*clientLimiter),
		limit:      limit,
		burst:      burst,
		maxClients: maxTrackedClients,
		now:        time.Now,
	}
}

// Allow reports whether ip may attempt a login now
func (l *LoginLimiter) Allow(ip string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= l.maxClients {
			l.evict(now)
		}
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// evict removes entries whose bucket has refilled, which are the same as a
// fresh limiter. If none has, the least recently seen entry goes.
func (l *LoginLimiter) evict(now time.Time) {
	var oldestIP string
	var oldest time.Time
	for ip, c := range l.clients {
		if c.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.clients, ip)
			continue
		}
		if oldestIP == "" || c.lastSeen.Before(oldest) {
			oldestIP, oldest = ip, c.lastSeen
		}
	}
	if len(l.clients) >= l.maxClients && oldestIP != "" {
		delete(l.clients, oldestIP)
	}
}
