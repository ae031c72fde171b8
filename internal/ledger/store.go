// Package ledger stores the expense rows of one profile in a SQLite file.
// Every profile owns its own file; nothing in here is shared across
// profiles.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

const dsnPragmas = "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)"

type Store struct {
	db     *sql.DB
	path   string
	mirror bool
}

// Open opens (creating if needed) the ledger file at path and brings its
// schema up to date. With mirror set, every insert also enqueues a
// sync_queue row for the Sheets mirror.
func Open(path string, mirror bool) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}

	s := &Store{db: db, path: path, mirror: mirror}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureSchema runs the embedded migrations and verifies the expenses
// table shape. Idempotent; safe to call before any operation.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := runMigrations(s.path); err != nil {
		return err
	}
	return s.verifySchema(ctx)
}

// verifySchema checks the table shapes. Absent tables are rebuilt from
// the embedded DDL and a missing description column is added in place
// (the only repairs allowed); any other missing required column is a
// schema mismatch.
func (s *Store) verifySchema(ctx context.Context) error {
	cols, err := s.tableColumns(ctx, "expenses")
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		// Dropped table with the migration version still recorded; the
		// migration runner will not recreate it, so run the DDL directly.
		if err := s.execMigrationFile(ctx, "0001_create_expenses.up.sql"); err != nil {
			return err
		}
		cols, err = s.tableColumns(ctx, "expenses")
		if err != nil {
			return err
		}
	}

	var missing []string
	for _, required := range []string{"id", "date", "category", "amount"} {
		if !cols[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("expenses table at %s missing columns %v: %w", s.path, missing, core.ErrSchemaMismatch)
	}

	if !cols["description"] {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE expenses ADD COLUMN description TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add description column: %w", err)
		}
		slog.InfoContext(ctx, "Added description column to legacy expenses table", "path", s.path)
	}

	queueCols, err := s.tableColumns(ctx, "sync_queue")
	if err != nil {
		return err
	}
	if len(queueCols) == 0 {
		if err := s.execMigrationFile(ctx, "0002_create_sync_queue.up.sql"); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(`+table+`)`)
	if err != nil {
		return nil, fmt.Errorf("inspect %s table: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspect %s table: %w", table, err)
	}
	return cols, nil
}

func (s *Store) execMigrationFile(ctx context.Context, name string) error {
	ddl, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	return nil
}

func isMissingSchema(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// withRepair runs fn, and when it fails because a table is gone (the
// backing file was deleted or replaced underneath us) re-runs the
// migrations once and retries.
func (s *Store) withRepair(ctx context.Context, fn func() error) error {
	err := fn()
	if isMissingSchema(err) {
		if repairErr := s.EnsureSchema(ctx); repairErr != nil {
			return fmt.Errorf("repair schema: %w", repairErr)
		}
		err = fn()
	}
	return err
}

// AddExpense appends one row and returns its id. Values are stored as
// given; the entry contract (positive amount, non-empty category) is the
// caller's responsibility.
func (s *Store) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := s.withRepair(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (date, category, amount, description) VALUES (?, ?, ?, ?)`,
			e.Date.String(), e.Category, e.Amount, e.Description)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read insert id: %w", err)
		}

		if s.mirror {
			if err := enqueueSync(ctx, tx, id); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"date", e.Date.String(),
		"category", e.Category,
		"amount", e.Amount)

	return id, nil
}

// ExpenseUpdate names the fields UpdateExpense may change. Nil fields are
// left untouched.
type ExpenseUpdate struct {
	Date        *core.Date
	Category    *string
	Amount      *float64
	Description *string
}

// UpdateExpense applies the non-nil fields of u to the row with the given
// id. Updating an absent id fails with ErrNotFound.
func (s *Store) UpdateExpense(ctx context.Context, id int64, u ExpenseUpdate) error {
	var sets []string
	var args []any
	if u.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, u.Date.String())
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *u.Category)
	}
	if u.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *u.Amount)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	return s.withRepair(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

// DeleteExpense removes the row with the given id and any of its queued
// mirror work. Deleting an absent id fails with ErrNotFound.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return s.withRepair(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("read affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE expense_id = ?`, id); err != nil {
			return fmt.Errorf("drop queued sync rows: %w", err)
		}

		return tx.Commit()
	})
}

// Query returns the rows matching f, newest first (date, then id,
// descending). The full matching set is returned; ledgers are
// personal-scale.
func (s *Store) Query(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	query, args := buildSelect(f, "date DESC, id DESC")

	out := []core.Expense{}
	err := s.withRepair(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query expenses: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DistinctCategories returns the categories observed in the ledger,
// sorted.
func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	out := []string{}
	err := s.withRepair(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT category FROM expenses ORDER BY category`)
		if err != nil {
			return fmt.Errorf("query categories: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return fmt.Errorf("scan category: %w", err)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func buildSelect(f core.Filter, order string) (string, []any) {
	query := `SELECT id, date, category, amount, description FROM expenses`
	var conds []string
	var args []any
	if !f.Start.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.Start.String())
	}
	if !f.End.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.End.String())
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY " + order, args
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		e       core.Expense
		rawDate string
	)
	if err := rows.Scan(&e.ID, &rawDate, &e.Category, &e.Amount, &e.Description); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d has malformed date %q: %w", e.ID, rawDate, err)
	}
	e.Date = date
	return e, nil
}
