package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// hit sends one request through the limited handler and returns the recorder.
// remoteAddr is required; headers come in key/value pairs.
func hit(handler http.Handler, remoteAddr string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func limited(t *testing.T, max int, keyFunc func(*http.Request) string) http.Handler {
	t.Helper()
	return RateLimit(RateLimitConfig{
		Max:     max,
		Window:  time.Minute,
		KeyFunc: keyFunc,
	})(okHandler())
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := limited(t, 5, nil)

	for i := range 5 {
		w := hit(handler, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := limited(t, 2, nil)

	for range 2 {
		require.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:9999").Code)
	}

	w := hit(handler, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_IndependentIPs(t *testing.T) {
	handler := limited(t, 1, nil)

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1234").Code,
		"a second client must not inherit the first client's usage")

	// Same IP, new source port: still over.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:5678").Code)
}

func TestRateLimit_ActorKeyPreferred(t *testing.T) {
	handler := limited(t, 1, nil)

	// Two actors behind one NAT get independent windows.
	assert.Equal(t, http.StatusOK,
		hit(handler, "10.0.0.9:1111", "X-Actor-Id", "vendor-1").Code)
	assert.Equal(t, http.StatusOK,
		hit(handler, "10.0.0.9:2222", "X-Actor-Id", "vendor-2").Code)

	// The same actor from another IP shares one window.
	assert.Equal(t, http.StatusTooManyRequests,
		hit(handler, "172.16.0.3:3333", "X-Actor-Id", "vendor-1").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := limited(t, 1, nil)

	assert.Equal(t, http.StatusOK,
		hit(handler, "192.168.1.1:4444", "X-Forwarded-For", "203.0.113.50, 70.41.3.18").Code)

	// Same originating client through a different proxy hop shares the window.
	assert.Equal(t, http.StatusTooManyRequests,
		hit(handler, "192.168.1.2:5555", "X-Forwarded-For", "203.0.113.50, 70.41.3.18").Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := limited(t, 1, func(r *http.Request) string {
		return r.Header.Get("X-API-Key")
	})

	assert.Equal(t, http.StatusOK, hit(handler, "1.2.3.4:1", "X-API-Key", "key-a").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "1.2.3.4:2", "X-API-Key", "key-a").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "1.2.3.4:3", "X-API-Key", "key-b").Code)
}
