package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/ledger"
	"tally/internal/profile"
)

// RowAppender is the slice of the sheets client the worker writes
// through.
type RowAppender interface {
	AppendRows(ctx context.Context, rows [][]any) error
}

// EventSource is the slice of the broker client the worker consumes.
type EventSource interface {
	Consume(ctx context.Context, handler func(events.MutationEvent) error) error
}

// Worker drains per-profile sync queues into the mirror sheet. It keeps
// one lazily opened ledger handle per profile for the life of the
// process.
type Worker struct {
	profiles *profile.Store
	appender RowAppender
	batch    int

	mu     sync.Mutex
	stores map[string]*ledger.Store
}

// NewWorker builds a worker that drains batch rows per append call.
func NewWorker(profiles *profile.Store, appender RowAppender, batchSize int) *Worker {
	return &Worker{
		profiles: profiles,
		appender: appender,
		batch:    batchSize,
		stores:   map[string]*ledger.Store{},
	}
}

// store returns the pooled ledger handle for a profile, opening it on
// first use.
func (w *Worker) store(handle string) (*ledger.Store, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.stores[handle]; ok {
		return s, nil
	}
	ledgerPath, _ := w.profiles.ResolvePaths(handle)
	s, err := ledger.Open(ledgerPath, true)
	if err != nil {
		return nil, fmt.Errorf("open ledger for %s: %w", handle, err)
	}
	w.stores[handle] = s
	return s, nil
}

// HandleEvent reacts to one mutation event. Only expense additions can
// put rows on a sync queue; every other kind is acknowledged untouched.
func (w *Worker) HandleEvent(ctx context.Context, event events.MutationEvent) error {
	if event.Kind != events.KindExpenseAdded {
		return nil
	}
	handle, err := profile.NormalizeHandle(event.Profile)
	if err != nil {
		slog.WarnContext(ctx, "Dropping event with bad profile handle",
			"profile", event.Profile, "error", err)
		return nil
	}
	return w.DrainProfile(ctx, handle)
}

// DrainProfile mirrors one profile's pending queue, batch by batch,
// until it is empty. Rows in a batch that fails to append are parked
// with the append error and skipped by later drains.
func (w *Worker) DrainProfile(ctx context.Context, handle string) error {
	store, err := w.store(handle)
	if err != nil {
		return err
	}

	for {
		items, err := store.PendingSync(ctx, w.batch)
		if err != nil {
			return fmt.Errorf("pending rows for %s: %w", handle, err)
		}
		if len(items) == 0 {
			return nil
		}

		rows := make([][]any, 0, len(items))
		for _, item := range items {
			rows = append(rows, buildRow(handle, item.Expense))
		}

		if err := w.appender.AppendRows(ctx, rows); err != nil {
			for _, item := range items {
				if markErr := store.MarkSyncFailed(ctx, item.QueueID, err.Error()); markErr != nil {
					slog.ErrorContext(ctx, "Failed to park queue row",
						"profile", handle, "queue_id", item.QueueID, "error", markErr)
				}
			}
			return fmt.Errorf("append rows for %s: %w", handle, err)
		}

		for _, item := range items {
			if err := store.MarkSynced(ctx, item.QueueID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark queue row synced",
					"profile", handle, "queue_id", item.QueueID, "error", err)
			}
		}
		slog.InfoContext(ctx, "Mirrored pending rows", "profile", handle, "count", len(items))

		if len(items) < w.batch {
			return nil
		}
	}
}

// ScanAll drains every known profile. Per-profile failures are logged
// and do not stop the sweep.
func (w *Worker) ScanAll(ctx context.Context) error {
	handles, err := w.profiles.List()
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	for _, handle := range handles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.DrainProfile(ctx, handle); err != nil {
			slog.ErrorContext(ctx, "Profile drain failed", "profile", handle, "error", err)
		}
	}
	return nil
}

// Run mirrors until ctx ends. A startup sweep catches rows queued while
// the worker was down; after that one goroutine reacts to mutation
// events and another sweeps every profile on a timer as the backstop
// for lost messages. source may be nil, leaving only the timer.
func (w *Worker) Run(ctx context.Context, source EventSource, interval time.Duration) error {
	if err := w.ScanAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sweep failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if source != nil {
		g.Go(func() error {
			return source.Consume(ctx, func(event events.MutationEvent) error {
				return w.HandleEvent(ctx, event)
			})
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ScanAll(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
				}
			}
		}
	})
	return g.Wait()
}

// Close releases the pooled ledger handles.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for handle, s := range w.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger for %s: %w", handle, err))
		}
	}
	w.stores = map[string]*ledger.Store{}
	return errors.Join(errs...)
}

// buildRow renders one queue item as a sheet row.
func buildRow(handle string, e core.Expense) []any {
	return []any{
		handle,
		e.ID,
		e.Date.String(),
		e.Category,
		e.Amount,
		e.Description,
		time.Now().UTC().Format(time.RFC3339),
	}
}
