package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func signed(t *testing.T, secret string, scopes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dashboard",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	h := Auth(secret)(RequireScope(secret, ScopeStatusRead)(ok))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "other-secret", ScopeStatusRead))
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, secret))
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, secret, ScopeStatusRead))
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestAuthDisabled(t *testing.T) {
	h := Auth("")(RequireScope("", ScopeStatusRead)(ok))
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := Logging(logger.Wrap(zap.New(core)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	rec := serve(h, req)

	assert.Equal(t, "abc", rec.Header().Get("X-Correlation-ID"))
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/ready", fields["path"])
	assert.EqualValues(t, http.StatusServiceUnavailable, fields["status"])
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(ok)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)

	unlimited := RateLimit(0, time.Minute)(ok)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		assert.Equal(t, http.StatusOK, serve(unlimited, req).Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dash.example.com"})(ok)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := serve(h, req)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))
}
