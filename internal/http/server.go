// Package http serves the JSON API over the profile services. Read
// endpoints go through a version-keyed response cache; mutations are
// rate limited per client IP.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/config"
	"tally/internal/services"
)

// mutationsPerMinute is the per-IP budget for non-GET requests.
const mutationsPerMinute = 60

type Server struct {
	http.Server
	svc       *services.Services
	limiter   *rateLimiter
	responses *cache.LRU[cachedResponse]
	sweeper   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires the API routes and returns a ready-to-run server.
// Callers own svc and close it separately.
func NewServer(cfg *config.Config, svc *services.Services) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:       svc,
		limiter:   newRateLimiter(mutationsPerMinute),
		responses: cache.NewLRU[cachedResponse](cfg.CacheSize, cfg.CacheTTL),
		sweeper:   cache.NewManager(),
	}
	s.sweeper.Register(s.responses)
	s.sweeper.Start(cfg.CacheTTL)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withMiddleware(h))
	}

	handle("GET /api/profiles", s.handleListProfiles)
	handle("POST /api/profiles", s.handleCreateProfile)
	handle("POST /api/profiles/{handle}/rename", s.handleRenameProfile)
	handle("POST /api/profiles/{handle}/archive", s.handleArchiveProfile)
	handle("DELETE /api/profiles/{handle}", s.handleDeleteProfile)

	handle("POST /api/profiles/{handle}/expenses", s.handleAddExpense)
	handle("GET /api/profiles/{handle}/expenses", s.cached(s.handleQueryExpenses))
	handle("PATCH /api/profiles/{handle}/expenses/{id}", s.handleUpdateExpense)
	handle("DELETE /api/profiles/{handle}/expenses/{id}", s.handleDeleteExpense)
	handle("GET /api/profiles/{handle}/expenses/export.csv", s.handleExportExpensesCSV)
	handle("POST /api/profiles/{handle}/expenses/import-legacy", s.handleImportLegacy)
	handle("GET /api/profiles/{handle}/categories", s.cached(s.handleCategories))
	handle("GET /api/profiles/{handle}/summary/{month}", s.cached(s.handleMonthSummary))

	handle("GET /api/profiles/{handle}/limits", s.cached(s.handleLimitsTable))
	handle("GET /api/profiles/{handle}/limits/{month}", s.cached(s.handleMonthLimits))
	handle("PUT /api/profiles/{handle}/limits/{month}", s.handleSaveMonthLimits)
	handle("DELETE /api/profiles/{handle}/limits/{month}", s.handleClearMonthLimits)
	handle("GET /api/profiles/{handle}/limits/{month}/suggest", s.cached(s.handleSuggestLimits))
	handle("POST /api/profiles/{handle}/limits/{month}/autofill", s.handleAutoFillLimits)
	handle("GET /api/profiles/{handle}/limits/check", s.cached(s.handleCheckLimits))
	handle("GET /api/profiles/{handle}/limits/{month}/advice", s.cached(s.handleAdviseLimits))
	handle("GET /api/profiles/{handle}/limits/{month}/csv", s.handleExportLimitsCSV)
	handle("POST /api/profiles/{handle}/limits/{month}/csv", s.handleImportLimitsCSV)
	handle("POST /api/profiles/{handle}/limits/import-json", s.handleImportLimitsJSON)

	handle("GET /api/audit/export", s.handleAuditExport)
	handle("POST /api/audit/clear", s.handleAuditClear)

	return s
}

// Shutdown stops the cache sweeper and the rate limiter before shutting
// down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.sweeper.Stop()
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
