package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"
)

// diagnosticsHook logs dial failures and command errors once the durable
// store is in use. Misses (redis.Nil) are normal and not logged.
type diagnosticsHook struct {
	logger *slog.Logger
	addr   string
}

func (h *diagnosticsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.logger.ErrorContext(ctx, "Session store connection error",
				"addr", addr,
				"error", err,
			)
		}
		return conn, err
	}
}

func (h *diagnosticsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.report(ctx, cmd.Name(), err)
		return err
	}
}

func (h *diagnosticsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.report(ctx, "pipeline", err)
		return err
	}
}

func (h *diagnosticsHook) report(ctx context.Context, cmd string, err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	msg := "Session store command failed"
	if isConnectionLoss(err) {
		msg = "Session store connection lost"
	}
	h.logger.ErrorContext(ctx, msg,
		"addr", h.addr,
		"command", cmd,
		"error", err,
	)
}

func isConnectionLoss(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, net.ErrClosed)
}

// redisLogger sends go-redis internal messages (pool dial retries and the
// like) to slog instead of stderr
type redisLogger struct {
	logger *slog.Logger
}

func (l *redisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, v...), "component", "go-redis")
}
