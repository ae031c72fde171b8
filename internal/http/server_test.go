package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/audit"
	"tally/internal/config"
	"tally/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.ArchiveDir = filepath.Join(dir, "archive")

	svc := services.New(cfg, audit.NewLog(""), nil)
	srv := NewServer(cfg, svc)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := svc.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ready" {
		t.Errorf("readyz = %d %q, want 200 ready", rr.Code, rr.Body.String())
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/profiles", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestResponseCacheHitsUntilMutation(t *testing.T) {
	srv := newTestServer(t)

	body := `{"date": "2025-07-15", "category": "food", "amount": 12.5}`
	if rr := doRequest(t, srv, http.MethodPost, "/api/profiles/default/expenses", body); rr.Code != http.StatusCreated {
		t.Fatalf("add expense = %d: %s", rr.Code, rr.Body.String())
	}

	rr := doRequest(t, srv, http.MethodGet, "/api/profiles/default/expenses", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("query = %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("first read X-Cache = %q, want miss", got)
	}

	rr = doRequest(t, srv, http.MethodGet, "/api/profiles/default/expenses", "")
	if got := rr.Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second read X-Cache = %q, want hit", got)
	}
	if got := decodeMap(t, rr)["count"].(float64); got != 1 {
		t.Errorf("cached count = %v, want 1", got)
	}

	// A mutation bumps the version and abandons the cached entry.
	if rr := doRequest(t, srv, http.MethodPost, "/api/profiles/default/expenses",
		`{"date": "2025-07-16", "category": "food", "amount": 3}`); rr.Code != http.StatusCreated {
		t.Fatalf("second add = %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, srv, http.MethodGet, "/api/profiles/default/expenses", "")
	if got := rr.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("post-mutation read X-Cache = %q, want miss", got)
	}
	if got := decodeMap(t, rr)["count"].(float64); got != 2 {
		t.Errorf("post-mutation count = %v, want 2", got)
	}
}

func TestResponseCacheKeyedPerProfile(t *testing.T) {
	srv := newTestServer(t)

	for _, h := range []string{"alice", "bob"} {
		if rr := doRequest(t, srv, http.MethodPost, "/api/profiles", fmt.Sprintf(`{"handle": %q}`, h)); rr.Code != http.StatusCreated {
			t.Fatalf("create %s = %d", h, rr.Code)
		}
	}
	doRequest(t, srv, http.MethodGet, "/api/profiles/alice/expenses", "")
	doRequest(t, srv, http.MethodGet, "/api/profiles/bob/expenses", "")

	// Mutating bob leaves alice's cached read untouched.
	if rr := doRequest(t, srv, http.MethodPost, "/api/profiles/bob/expenses",
		`{"date": "2025-07-01", "category": "rent", "amount": 800}`); rr.Code != http.StatusCreated {
		t.Fatalf("add for bob = %d: %s", rr.Code, rr.Body.String())
	}

	if got := doRequest(t, srv, http.MethodGet, "/api/profiles/alice/expenses", "").Header().Get("X-Cache"); got != "hit" {
		t.Errorf("alice X-Cache = %q, want hit", got)
	}
	if got := doRequest(t, srv, http.MethodGet, "/api/profiles/bob/expenses", "").Header().Get("X-Cache"); got != "miss" {
		t.Errorf("bob X-Cache = %q, want miss", got)
	}
}

func TestErrorResponsesAreNotCached(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		rr := doRequest(t, srv, http.MethodGet, "/api/profiles/ghost/expenses", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("read #%d = %d, want 404", i+1, rr.Code)
		}
		if got := rr.Header().Get("X-Cache"); got != "miss" {
			t.Errorf("read #%d X-Cache = %q, want miss", i+1, got)
		}
	}
}

func TestMutationsRateLimited(t *testing.T) {
	srv := newTestServer(t)
	srv.limiter.stop()
	srv.limiter = newRateLimiter(2)

	body := `{"handle": "alice"}`
	for i := 0; i < 2; i++ {
		if rr := doRequest(t, srv, http.MethodPost, "/api/profiles", body); rr.Code == http.StatusTooManyRequests {
			t.Fatalf("request #%d rate limited too early", i+1)
		}
	}

	rr := doRequest(t, srv, http.MethodPost, "/api/profiles", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third mutation = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}

	// Reads stay exempt.
	if rr := doRequest(t, srv, http.MethodGet, "/api/profiles", ""); rr.Code != http.StatusOK {
		t.Errorf("read while limited = %d, want 200", rr.Code)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.stop()

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("third request should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients have their own window")
	}

	rl.mu.Lock()
	rl.clients["10.0.0.1"].lastRequest = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()
	if !rl.allow("10.0.0.1") {
		t.Fatal("window should reset after a minute of inactivity")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{name: "direct", remoteAddr: "203.0.113.5:4321", want: "203.0.113.5"},
		{name: "forwarded header from untrusted peer ignored", remoteAddr: "203.0.113.5:4321", xff: "198.51.100.7", want: "203.0.113.5"},
		{name: "forwarded header from trusted proxy", remoteAddr: "127.0.0.1:4321", xff: "198.51.100.7, 10.1.1.1", want: "198.51.100.7"},
		{name: "real ip fallback", remoteAddr: "10.0.0.9:4321", realIP: "198.51.100.8", want: "198.51.100.8"},
		{name: "garbage forwarded value ignored", remoteAddr: "127.0.0.1:4321", xff: "not-an-ip", want: "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
