// Package services hosts the profile-aware operations behind the HTTP API
// and the CLI. It owns per-profile write serialization, the data version
// counters read caches key on, and the fan-out to the audit log and the
// events broker.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tally/internal/audit"
	"tally/internal/config"
	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/ledger"
	"tally/internal/limits"
	"tally/internal/profile"
)

// Publisher sends mutation events to the broker. *events.Client satisfies
// it; a nil Publisher disables event fan-out.
type Publisher interface {
	Publish(ctx context.Context, event events.MutationEvent) error
	Close() error
}

// Services bundles the three operation groups over one shared state.
type Services struct {
	Profiles *ProfilesService
	Ledger   *LedgerService
	Limits   *LimitsService

	st *state
}

// New wires the services over the configured data directory. auditLog must
// not be nil; publisher may be nil when events are disabled.
func New(cfg *config.Config, auditLog *audit.Log, publisher Publisher) *Services {
	st := &state{
		cfg:      cfg,
		profiles: profile.NewStore(cfg.DataDir, cfg.ArchiveDir),
		audit:    auditLog,
		events:   publisher,
		ledgers:  make(map[string]*ledger.Store),
		locks:    make(map[string]*sync.Mutex),
		versions: make(map[string]int64),
	}
	return &Services{
		Profiles: &ProfilesService{st: st},
		Ledger:   &LedgerService{st: st},
		Limits:   &LimitsService{st: st},
		st:       st,
	}
}

// Audit exposes the shared audit log for export endpoints.
func (s *Services) Audit() *audit.Log {
	return s.st.audit
}

// Close releases every pooled ledger handle and the events client.
func (s *Services) Close() error {
	var errs []error

	s.st.mu.Lock()
	for handle, store := range s.st.ledgers {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger for %s: %w", handle, err))
		}
	}
	s.st.ledgers = make(map[string]*ledger.Store)
	s.st.mu.Unlock()

	if s.st.events != nil {
		if err := s.st.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// state is shared by the services. Lock order is always the per-profile
// mutex first, then mu; mu is never held across store calls.
type state struct {
	cfg      *config.Config
	profiles *profile.Store
	audit    *audit.Log
	events   Publisher

	mu       sync.Mutex
	ledgers  map[string]*ledger.Store
	locks    map[string]*sync.Mutex
	versions map[string]int64
}

// ensureProfile verifies the handle is backed by files on disk. The
// default profile materializes lazily so a fresh data directory works
// without an explicit create.
func (st *state) ensureProfile(ctx context.Context, handle string) error {
	if st.profiles.Exists(handle) {
		return nil
	}
	if handle != profile.DefaultHandle {
		return fmt.Errorf("profile %s: %w", handle, core.ErrNotFound)
	}
	if _, err := st.profiles.Create(ctx, handle); err != nil {
		return fmt.Errorf("materialize default profile: %w", err)
	}
	return nil
}

// ledgerStore returns the pooled store for the handle, opening it on
// first use.
func (st *state) ledgerStore(ctx context.Context, handle string) (*ledger.Store, error) {
	st.mu.Lock()
	if store, ok := st.ledgers[handle]; ok {
		st.mu.Unlock()
		return store, nil
	}
	st.mu.Unlock()

	if err := st.ensureProfile(ctx, handle); err != nil {
		return nil, err
	}

	ledgerPath, _ := st.profiles.ResolvePaths(handle)
	store, err := ledger.Open(ledgerPath, st.cfg.MirrorEnabled())
	if err != nil {
		return nil, fmt.Errorf("open ledger for %s: %w", handle, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if racing, ok := st.ledgers[handle]; ok {
		// Another goroutine opened it between our unlock and lock.
		store.Close()
		return racing, nil
	}
	st.ledgers[handle] = store
	return store, nil
}

func (st *state) limitsStore(handle string) *limits.Store {
	_, limitsPath := st.profiles.ResolvePaths(handle)
	return limits.NewStore(limitsPath)
}

// lock returns the mutex serializing writes for one profile.
func (st *state) lock(handle string) *sync.Mutex {
	st.mu.Lock()
	defer st.mu.Unlock()
	m, ok := st.locks[handle]
	if !ok {
		m = &sync.Mutex{}
		st.locks[handle] = m
	}
	return m
}

// closeLedger drops the pooled handle, if any, before files move on disk.
func (st *state) closeLedger(handle string) error {
	st.mu.Lock()
	store, ok := st.ledgers[handle]
	delete(st.ledgers, handle)
	st.mu.Unlock()

	if !ok {
		return nil
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close ledger for %s: %w", handle, err)
	}
	return nil
}

func (st *state) bump(handle string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.versions[handle]++
}

func (st *state) version(handle string) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.versions[handle]
}

// publish sends a mutation event. Failures are logged, never returned;
// the local write already succeeded.
func (st *state) publish(ctx context.Context, event events.MutationEvent) {
	if st.events == nil {
		slog.WarnContext(ctx, "Events client not available, skipping publish", "kind", event.Kind)
		return
	}
	if err := st.events.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mutation event",
			"kind", event.Kind, "profile", event.Profile, "error", err)
	}
}
