package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultConnectTimeout bounds the single startup connection attempt
const DefaultConnectTimeout = 5 * time.Second

// RedisOptions describes the durable session backend. A nil *RedisOptions
// means none is configured, which is a valid input.
type RedisOptions struct {
	URL string
	// TLS forces an encrypted connection even for redis:// URLs
	TLS bool
	// VerifyTLS turns peer certificate validation back on. Off by default.
	VerifyTLS      bool
	ConnectTimeout time.Duration
}

// Resolution is the outcome of Resolve. Backend never changes afterwards.
type Resolution struct {
	Backend Backend
	Store   Store
	// Err is the reason a configured Redis was not used, if any
	Err error

	client *redis.Client
}

// Close releases the Redis client when one was selected
func (r *Resolution) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Resolve picks the session store for the process lifetime. It makes at most
// one connection attempt, bounded by opts.ConnectTimeout, and falls back to
// the in-process store on any failure. It never returns a nil Resolution.
func Resolve(ctx context.Context, opts *RedisOptions, logger *slog.Logger) *Resolution {
	if opts == nil || opts.URL == "" {
		logger.Warn("No durable session store configured, using in-memory sessions",
			"backend", BackendMemory,
		)
		return fallback(nil)
	}

	redis.SetLogger(&redisLogger{logger: logger})

	client, err := connect(ctx, opts, logger)
	if err != nil {
		logger.Error("Failed to connect to session store, using in-memory sessions",
			"backend", BackendMemory,
			"error", err,
		)
		return fallback(err)
	}

	client.AddHook(&diagnosticsHook{logger: logger, addr: client.Options().Addr})

	logger.Info("Connected to session store",
		"backend", BackendRedis,
		"addr", client.Options().Addr,
		"tls", client.Options().TLSConfig != nil,
	)

	return &Resolution{
		Backend: BackendRedis,
		Store:   NewRedisStore(client),
		client:  client,
	}
}

func fallback(reason error) *Resolution {
	return &Resolution{
		Backend: BackendMemory,
		Store:   NewMemoryStore(),
		Err:     reason,
	}
}

func connect(ctx context.Context, opts *RedisOptions, logger *slog.Logger) (*redis.Client, error) {
	ro, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	timeout := ro.DialTimeout

	ro.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
		logger.DebugContext(ctx, "Session store connection opened", "addr", ro.Addr)
		return nil
	}

	client := redis.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if errors.Is(pingCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis ping timed out after %s: %w", timeout, err)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// clientOptions turns the descriptor into go-redis options. Peer
// certificates are not validated unless VerifyTLS is set.
func clientOptions(opts *RedisOptions) (*redis.Options, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if opts.TLS && ro.TLSConfig == nil {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if ro.TLSConfig != nil && !opts.VerifyTLS {
		ro.TLSConfig.InsecureSkipVerify = true
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	// socket deadlines are the earlier of the context deadline and these,
	// so all of them follow the configured bound
	ro.DialTimeout = timeout
	ro.ReadTimeout = timeout
	ro.WriteTimeout = timeout
	ro.ContextTimeoutEnabled = true

	return ro, nil
}
