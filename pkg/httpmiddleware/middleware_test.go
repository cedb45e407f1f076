package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func get(handler http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestWrapOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Wrap(okHandler(), tag("outer"), tag("inner"))
	get(handler, "", nil)

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRateLimitWithinWindow(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i := range 3 {
		w := get(handler, "10.0.0.1:1234", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := get(handler, "10.0.0.1:1234", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, get(handler, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, get(handler, "10.0.0.2:1234", nil).Code)

	// Same client from a different source port is still the same key.
	assert.Equal(t, http.StatusTooManyRequests, get(handler, "10.0.0.1:5678", nil).Code)
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
	assert.Equal(t, http.StatusOK, get(handler, "192.168.1.1:1111", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(handler, "192.168.1.2:2222", xff).Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})(okHandler())

	assert.Equal(t, http.StatusOK, get(handler, "", map[string]string{"X-API-Key": "key-a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(handler, "", map[string]string{"X-API-Key": "key-a"}).Code)
	assert.Equal(t, http.StatusOK, get(handler, "", map[string]string{"X-API-Key": "key-b"}).Code)
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := get(handler, "", nil)

	echoed := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, echoed)
	assert.Equal(t, echoed, seen)
	_, err := uuid.Parse(echoed)
	assert.NoError(t, err)
}

func TestRequestIDReused(t *testing.T) {
	handler := RequestID()(okHandler())

	w := get(handler, "", map[string]string{"X-Request-ID": "client-supplied-id"})
	assert.Equal(t, "client-supplied-id", w.Header().Get("X-Request-ID"))
}

func TestRequestIDRejectsGarbage(t *testing.T) {
	handler := RequestID()(okHandler())

	w := get(handler, "", map[string]string{"X-Request-ID": "bad\x01id"})
	assert.NotEqual(t, "bad\x01id", w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORSSimpleRequest(t *testing.T) {
	handler := CORS(CORSConfig{AllowOrigins: []string{"https://app.example.com"}})(okHandler())

	w := get(handler, "", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")

	// Disallowed origin gets no CORS headers but the request still runs.
	w = get(handler, "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowOrigins: []string{"https://app.example.com"},
		MaxAge:       600,
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORSWildcard(t *testing.T) {
	handler := CORS(CORSConfig{})(okHandler())

	w := get(handler, "", map[string]string{"Origin": "https://anywhere.example.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
