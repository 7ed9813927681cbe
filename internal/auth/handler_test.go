package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conference/internal/database"
	"conference/internal/database/dbtest"
	"conference/internal/logger"
	"conference/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// stubManager wraps a real manager and can fail Delete on demand
type stubManager struct {
	session.Manager
	deleteErr error
}

func (m *stubManager) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.Manager.Delete(ctx, id)
}

type testEnv struct {
	router  *gin.Engine
	db      database.Service
	mgr     *stubManager
	cookies *session.Cookie
}

func newTestEnv(t *testing.T, cfg HandlerConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	dbtest.InsertUser(t, db, "admin", "password123")

	mgr := &stubManager{Manager: session.NewManager(session.NewMemoryStore())}
	if cfg.Cookies == nil {
		cfg.Cookies = session.NewCookie("test-secret", time.Hour, false)
	}

	h := NewHandler(NewService(db, logger.Discard()), mgr, cfg, logger.Discard())
	r := gin.New()
	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)

	return &testEnv{router: r, db: db, mgr: mgr, cookies: cfg.Cookies}
}

func (e *testEnv) postLogin(form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.DefaultCookieName)
	return nil
}

func TestLogin_Success(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})

	w := e.postLogin(url.Values{"username": {"admin"}, "password": {"password123"}})

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))

	c := sessionCookie(t, w)
	require.True(t, c.HttpOnly)
	require.Equal(t, 3600, c.MaxAge)

	token, ok := e.cookies.Verify(c.Value)
	require.True(t, ok)
	sess, err := e.mgr.Get(context.Background(), token)
	require.NoError(t, err)
	require.NotZero(t, sess.UserID)
}

func TestLogin_JSONBody(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"admin","password":"password123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})

	attempts := map[string]url.Values{
		"wrong password": {"username": {"admin"}, "password": {"nope"}},
		"unknown user":   {"username": {"ghost"}, "password": {"password123"}},
		"unknown both":   {"username": {"ghost"}, "password": {"nope"}},
		"missing fields": {},
	}

	for name, form := range attempts {
		t.Run(name, func(t *testing.T) {
			w := e.postLogin(form)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Equal(t, InvalidCredentialsMessage, w.Body.String())
			require.Empty(t, w.Result().Cookies())
		})
	}
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})
	creds := url.Values{"username": {"admin"}, "password": {"password123"}}

	first := sessionCookie(t, e.postLogin(creds))
	second := sessionCookie(t, e.postLogin(creds, first))
	require.NotEqual(t, first.Value, second.Value)

	oldToken, _ := e.cookies.Verify(first.Value)
	_, err := e.mgr.Get(context.Background(), oldToken)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLogin_CredentialStoreFailure(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})
	require.NoError(t, e.db.Close())

	w := e.postLogin(url.Values{"username": {"admin"}, "password": {"password123"}})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, ServerErrorMessage, w.Body.String())
}

func TestLogin_Throttled(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{Limiter: NewLoginLimiter(1, 2)})
	bad := url.Values{"username": {"admin"}, "password": {"nope"}}

	require.Equal(t, http.StatusUnauthorized, e.postLogin(bad).Code)
	require.Equal(t, http.StatusUnauthorized, e.postLogin(bad).Code)

	w := e.postLogin(url.Values{"username": {"admin"}, "password": {"password123"}})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})
	c := sessionCookie(t, e.postLogin(url.Values{"username": {"admin"}, "password": {"password123"}}))
	token, _ := e.cookies.Verify(c.Value)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(c)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
	require.Less(t, sessionCookie(t, w).MaxAge, 0)

	_, err := e.mgr.Get(context.Background(), token)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLogout_StoreFailure(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})
	c := sessionCookie(t, e.postLogin(url.Values{"username": {"admin"}, "password": {"password123"}}))
	e.mgr.deleteErr = errors.New("redis: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(c)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLoginPage(t *testing.T) {
	e := newTestEnv(t, HandlerConfig{})

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `action="/login"`)

	custom := filepath.Join(t.TempDir(), "login.html")
	require.NoError(t, os.WriteFile(custom, []byte("<p>custom form</p>"), 0o644))
	e = newTestEnv(t, HandlerConfig{LoginPage: custom})

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "custom form")
}
