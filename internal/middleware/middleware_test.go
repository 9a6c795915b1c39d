package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"io.winapps.huddle/internal/db"
)

type staticVerifier struct {
	uid string
	err error
}

func (v staticVerifier) VerifyIDToken(ctx context.Context, token string) (string, error) {
	return v.uid, v.err
}

type brokenSessions struct{}

func (brokenSessions) UserIDForSession(ctx context.Context, token string) (string, error) {
	return "", errors.New("connection refused")
}

func newAuthRouter(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), AuthMiddleware(cfg))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString("uid")})
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	repo := db.NewMemoryRepository()
	repo.AddSession("session-abc", "user-1")
	r := newAuthRouter(AuthConfig{Sessions: repo, Logger: zap.NewNop().Sugar()})

	w := get(r, "Bearer session-abc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":"user-1"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer unknown"} {
		assert.Equal(t, http.StatusUnauthorized, get(r, header).Code, header)
	}
}

func TestAuthMiddleware_VerifierFallback(t *testing.T) {
	r := newAuthRouter(AuthConfig{
		Sessions: db.NewMemoryRepository(),
		Verifier: staticVerifier{uid: "firebase-user"},
	})
	w := get(r, "Bearer id-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":"firebase-user"}`, w.Body.String())

	r = newAuthRouter(AuthConfig{Verifier: staticVerifier{err: errors.New("expired")}})
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer id-token").Code)
}

func TestAuthMiddleware_LookupFailure(t *testing.T) {
	r := newAuthRouter(AuthConfig{Sessions: brokenSessions{}})
	assert.Equal(t, http.StatusInternalServerError, get(r, "Bearer anything").Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.NewNop().Sugar()), RequestLoggingMiddleware(zap.NewNop().Sugar()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request_id")
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggingMiddleware_CapsLoggedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestLoggingMiddleware(zap.New(core).Sugar()))
	r.GET("/big", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
		_, _ = c.Writer.Write([]byte(strings.Repeat("a", 1000)))
		_, _ = c.Writer.Write([]byte(strings.Repeat("b", 3000)))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/big", nil))
	assert.Equal(t, 4000, w.Body.Len())

	entries := logs.FilterMessage("request completed with client error").All()
	require.Len(t, entries, 1)
	logged, ok := entries[0].ContextMap()["response"].(string)
	require.True(t, ok)
	assert.Len(t, logged, maxLoggedBody)
	assert.Equal(t, strings.Repeat("a", 1000)+strings.Repeat("b", maxLoggedBody-1000), logged)
}
