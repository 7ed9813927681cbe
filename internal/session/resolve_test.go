package session

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"conference/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestResolve_NoDescriptorFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", "json")

	res := Resolve(context.Background(), nil, log)

	require.Equal(t, BackendMemory, res.Backend)
	require.NotNil(t, res.Store)
	require.NoError(t, res.Err)
	require.NoError(t, res.Close())
	require.Contains(t, buf.String(), `"level":"WARN"`)
	require.NotContains(t, buf.String(), `"level":"ERROR"`)
}

func TestResolve_EmptyURLFallsBack(t *testing.T) {
	res := Resolve(context.Background(), &RedisOptions{}, logger.Discard())
	require.Equal(t, BackendMemory, res.Backend)
}

func TestResolve_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	res := Resolve(context.Background(), &RedisOptions{
		URL:            "redis://" + mr.Addr(),
		ConnectTimeout: time.Second,
	}, logger.Discard())
	t.Cleanup(func() { _ = res.Close() })

	require.Equal(t, BackendRedis, res.Backend)
	require.NoError(t, res.Err)

	// the selected store really is the redis one
	ctx := context.Background()
	require.NoError(t, res.Store.Set(ctx, "session:x", "v", time.Minute))
	require.True(t, mr.Exists("session:x"))
}

func TestResolve_InvalidURLFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "json")

	res := Resolve(context.Background(), &RedisOptions{URL: "http://not-redis"}, log)

	require.Equal(t, BackendMemory, res.Backend)
	require.Error(t, res.Err)
	require.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestResolve_UnreachableFallsBack(t *testing.T) {
	// grab a free port and release it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := Resolve(context.Background(), &RedisOptions{
		URL:            "redis://" + addr,
		ConnectTimeout: time.Second,
	}, logger.Discard())

	require.Equal(t, BackendMemory, res.Backend)
	require.Error(t, res.Err)
}

func TestResolve_HandshakeTimeoutIsBounded(t *testing.T) {
	// accepts connections and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var held []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			_ = c.Close()
		}
	})

	timeout := 200 * time.Millisecond
	start := time.Now()
	res := Resolve(context.Background(), &RedisOptions{
		URL:            "redis://" + ln.Addr().String(),
		ConnectTimeout: timeout,
	}, logger.Discard())
	elapsed := time.Since(start)

	require.Equal(t, BackendMemory, res.Backend)
	require.Error(t, res.Err)
	require.Less(t, elapsed, timeout+time.Second)
}

// slowProxy forwards to upstream, holding every new connection for delay first
func slowProxy(t *testing.T, upstream string, delay time.Duration) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			client, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer client.Close()
				time.Sleep(delay)

				server, err := net.Dial("tcp", upstream)
				if err != nil {
					return
				}
				defer server.Close()

				go func() { _, _ = io.Copy(server, client) }()
				_, _ = io.Copy(client, server)
			}()
		}
	}()

	return ln.Addr().String()
}

func TestResolve_SlowServerWithinConfiguredTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a delayed handshake")
	}
	mr := miniredis.RunT(t)
	addr := slowProxy(t, mr.Addr(), 4*time.Second)

	start := time.Now()
	res := Resolve(context.Background(), &RedisOptions{
		URL:            "redis://" + addr,
		ConnectTimeout: 10 * time.Second,
	}, logger.Discard())
	elapsed := time.Since(start)
	t.Cleanup(func() { _ = res.Close() })

	require.Equal(t, BackendRedis, res.Backend, "resolve error: %v", res.Err)
	require.NoError(t, res.Err)
	require.GreaterOrEqual(t, elapsed, 4*time.Second)
	require.Less(t, elapsed, 10*time.Second)
}

func TestResolve_SlowServerBeyondConfiguredTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := slowProxy(t, mr.Addr(), 4*time.Second)

	timeout := 500 * time.Millisecond
	start := time.Now()
	res := Resolve(context.Background(), &RedisOptions{
		URL:            "redis://" + addr,
		ConnectTimeout: timeout,
	}, logger.Discard())
	elapsed := time.Since(start)

	require.Equal(t, BackendMemory, res.Backend)
	require.Error(t, res.Err)
	require.Less(t, elapsed, timeout+time.Second)
}

func TestClientOptions_TLSRelaxedByDefault(t *testing.T) {
	ro, err := clientOptions(&RedisOptions{URL: "redis://localhost:6379", TLS: true})
	require.NoError(t, err)
	require.NotNil(t, ro.TLSConfig)
	require.True(t, ro.TLSConfig.InsecureSkipVerify)

	ro, err = clientOptions(&RedisOptions{URL: "rediss://cache.example.com:6380", VerifyTLS: true})
	require.NoError(t, err)
	require.NotNil(t, ro.TLSConfig)
	require.False(t, ro.TLSConfig.InsecureSkipVerify)
	require.True(t, strings.HasPrefix(ro.TLSConfig.ServerName, "cache.example.com"))

	ro, err = clientOptions(&RedisOptions{URL: "redis://localhost:6379"})
	require.NoError(t, err)
	require.Nil(t, ro.TLSConfig)
}

func TestClientOptions_DefaultTimeout(t *testing.T) {
	ro, err := clientOptions(&RedisOptions{URL: "redis://localhost:6379/2"})
	require.NoError(t, err)
	require.Equal(t, DefaultConnectTimeout, ro.DialTimeout)
	require.Equal(t, DefaultConnectTimeout, ro.ReadTimeout)
	require.Equal(t, DefaultConnectTimeout, ro.WriteTimeout)
	require.True(t, ro.ContextTimeoutEnabled)
	require.Equal(t, 2, ro.DB)
}

func TestClientOptions_ConfiguredTimeoutAppliesToSocket(t *testing.T) {
	ro, err := clientOptions(&RedisOptions{URL: "redis://localhost:6379", ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, ro.DialTimeout)
	require.Equal(t, 10*time.Second, ro.ReadTimeout)
	require.Equal(t, 10*time.Second, ro.WriteTimeout)
}

func TestRedisLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &redisLogger{logger: logger.NewWithWriter(&buf, "info", "json")}

	l.Printf(context.Background(), "redis: failed to dial after %d attempts: %s", 5, "connection refused")

	require.Contains(t, buf.String(), "failed to dial after 5 attempts: connection refused")
	require.Contains(t, buf.String(), `"component":"go-redis"`)
	require.Contains(t, buf.String(), `"level":"WARN"`)
}
