package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), tag("first"), tag("second"), tag("third"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "third"}, order, "middlewares should run in the order they are listed")
}

func TestRequestID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		h := RequestID(okHandler())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("preserves caller's id", func(t *testing.T) {
		h := RequestID(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "caller-id-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "caller-id-1", w.Header().Get("X-Request-ID"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	t.Run("unconfigured key fails closed", func(t *testing.T) {
		h := APIKeyAuth("")(okHandler())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		h := APIKeyAuth("secret")(okHandler())
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-API-Key", "guess")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("right key", func(t *testing.T) {
		h := APIKeyAuth("secret")(okHandler())
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-API-Key", "secret")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestIPRateLimiter(t *testing.T) {
	rl := &IPRateLimiter{
		requests: make(map[string][]time.Time),
		max:      2,
		window:   time.Minute,
	}

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"), "third request within the window must be rejected")
	assert.True(t, rl.Allow("2.2.2.2"), "addresses are limited independently")
}

func TestIPRateLimiterWindowExpiry(t *testing.T) {
	rl := &IPRateLimiter{
		requests: make(map[string][]time.Time),
		max:      1,
		window:   20 * time.Millisecond,
	}

	require.True(t, rl.Allow("1.1.1.1"))
	require.False(t, rl.Allow("1.1.1.1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("1.1.1.1"), "the slot should free up once the window has passed")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := &IPRateLimiter{
		requests: make(map[string][]time.Time),
		max:      1,
		window:   time.Minute,
	}
	h := RateLimit(rl)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		h := CORS(okHandler())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("passthrough", func(t *testing.T) {
		h := CORS(okHandler())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCacheControl(t *testing.T) {
	h := CacheControl("public, s-maxage=60, max-age=0")(okHandler())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "public, s-maxage=60, max-age=0", w.Header().Get("Cache-Control"))
}

func TestClientIP(t *testing.T) {
	t.Run("x-real-ip wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Real-IP", "203.0.113.7")
		assert.Equal(t, "203.0.113.7", ClientIP(req))
	})

	t.Run("remote addr fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		assert.Equal(t, "10.0.0.1", ClientIP(req))
	})

	t.Run("forwarded-for is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", "198.51.100.9")
		assert.Equal(t, "10.0.0.1", ClientIP(req), "spoofable forwarding headers must not be trusted")
	})
}
