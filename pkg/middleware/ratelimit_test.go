package middleware

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil, quietLogger())
	defer rl.Stop()
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/cart", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodPost, "/api/cart", nil)
	other.RemoteAddr = "198.51.100.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	rl.Stop()
}

func TestVisitorStore_EvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newVisitorStore(5, 5, time.Minute)
	s.now = func() time.Time { return now }

	s.limiter("10.0.0.1")
	now = now.Add(30 * time.Second)
	s.limiter("10.0.0.2")
	now = now.Add(45 * time.Second)

	s.evictIdle()
	assert.Equal(t, 1, s.size())
}

func TestClientIP(t *testing.T) {
	proxies := parseCIDRs([]string{"10.0.0.0/8"}, quietLogger())

	tests := []struct {
		name   string
		peer   string
		xff    string
		realIP string
		want   string
	}{
		{name: "direct peer", peer: "10.0.0.9:1234", want: "10.0.0.9"},
		{name: "untrusted peer ignores headers", peer: "198.51.100.7:1234", xff: "203.0.113.5", realIP: "192.0.2.4", want: "198.51.100.7"},
		{name: "trusted peer uses real ip", peer: "10.0.0.9:1234", realIP: "192.0.2.4", want: "192.0.2.4"},
		{name: "trusted peer uses right-most untrusted hop", peer: "10.0.0.9:1234", xff: "1.2.3.4, 203.0.113.5 , 10.0.0.1", want: "203.0.113.5"},
		{name: "garbage hop falls back to real ip", peer: "10.0.0.9:1234", xff: "garbage", realIP: "192.0.2.4", want: "192.0.2.4"},
		{name: "only proxies in chain", peer: "10.0.0.9:1234", xff: "10.1.1.1", want: "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.peer
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req, proxies))
		})
	}
}

func TestRateLimiter_RotatingForwardedForSharesBucket(t *testing.T) {
	rl := NewRateLimiter(1, 2, []string{"10.0.0.0/8"}, quietLogger())
	defer rl.Stop()
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/cart", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1, rl.store.size())
}

func TestIPAllowlist(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8", "not-a-cidr"}, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
