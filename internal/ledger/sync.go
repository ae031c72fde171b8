package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
)

// PendingItem is one queued mirror append together with the current row
// values it should carry.
type PendingItem struct {
	QueueID  int64
	Attempts int
	Expense  core.Expense
}

func enqueueSync(ctx context.Context, tx *sql.Tx, expenseID int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sync_queue (expense_id, created_at) VALUES (?, ?)`,
		expenseID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// PendingSync returns up to limit queued items, oldest first. Queue rows
// whose expense has been deleted are not returned.
func (s *Store) PendingSync(ctx context.Context, limit int) ([]PendingItem, error) {
	out := []PendingItem{}
	err := s.withRepair(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT q.id, q.attempts, e.id, e.date, e.category, e.amount, e.description
			 FROM sync_queue q
			 JOIN expenses e ON e.id = q.expense_id
			 WHERE q.status = 'pending'
			 ORDER BY q.id
			 LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query sync queue: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				item    PendingItem
				rawDate string
			)
			if err := rows.Scan(&item.QueueID, &item.Attempts,
				&item.Expense.ID, &rawDate, &item.Expense.Category,
				&item.Expense.Amount, &item.Expense.Description); err != nil {
				return fmt.Errorf("scan sync item: %w", err)
			}
			date, err := core.ParseDate(rawDate)
			if err != nil {
				return fmt.Errorf("expense %d has malformed date %q: %w", item.Expense.ID, rawDate, err)
			}
			item.Expense.Date = date
			out = append(out, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PendingCount reports how many queue rows still wait for the mirror.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.withRepair(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sync_queue WHERE status = 'pending'`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count pending sync rows: %w", err)
	}
	return n, nil
}

// MarkSynced records a successful mirror append for the queue row.
func (s *Store) MarkSynced(ctx context.Context, queueID int64) error {
	err := s.withRepair(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE sync_queue SET status = 'synced' WHERE id = ?`, queueID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	slog.InfoContext(ctx, "Queue row marked as synced", "queue_id", queueID)
	return nil
}

// MarkSyncFailed parks the queue row with the failure reason. Failed rows
// are not retried automatically.
func (s *Store) MarkSyncFailed(ctx context.Context, queueID int64, reason string) error {
	err := s.withRepair(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE sync_queue SET status = 'error', attempts = attempts + 1, last_error = ? WHERE id = ?`,
			reason, queueID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}

	slog.WarnContext(ctx, "Queue row marked with sync error", "queue_id", queueID, "reason", reason)
	return nil
}
