package ledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"tally/internal/core"
)

// ExportCSV writes the rows matching f as CSV, oldest first. The header
// is id,date,category,amount,description.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, f core.Filter) error {
	query, args := buildSelect(f, "date ASC, id ASC")

	return s.withRepair(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query expenses for export: %w", err)
		}
		defer rows.Close()

		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "date", "category", "amount", "description"}); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return err
			}
			record := []string{
				strconv.FormatInt(e.ID, 10),
				e.Date.String(),
				e.Category,
				strconv.FormatFloat(e.Amount, 'f', 2, 64),
				e.Description,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		cw.Flush()
		return cw.Error()
	})
}

// ImportLegacyJSON loads rows from the predecessor's expenses.json array.
// Entries the old format tolerated but this store cannot represent (blank
// category, unparseable date) are skipped; the count of inserted rows is
// returned. Anything but a JSON array fails outright.
func (s *Store) ImportLegacyJSON(ctx context.Context, data []byte) (int, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse legacy expenses: %w", err)
	}

	imported := 0
	err := s.withRepair(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		imported = 0
		for _, raw := range entries {
			var entry struct {
				Date        string  `json:"date"`
				Category    string  `json:"category"`
				Amount      float64 `json:"amount"`
				Note        string  `json:"note"`
				Description string  `json:"description"`
			}
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			date, err := core.ParseDate(entry.Date)
			if err != nil {
				continue
			}
			category := strings.TrimSpace(entry.Category)
			if category == "" {
				continue
			}
			// The old format called the free-text field "note".
			description := entry.Note
			if description == "" {
				description = entry.Description
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO expenses (date, category, amount, description) VALUES (?, ?, ?, ?)`,
				date.String(), category, entry.Amount, description)
			if err != nil {
				return fmt.Errorf("insert legacy expense: %w", err)
			}
			if s.mirror {
				id, err := res.LastInsertId()
				if err != nil {
					return fmt.Errorf("read insert id: %w", err)
				}
				if err := enqueueSync(ctx, tx, id); err != nil {
					return err
				}
			}
			imported++
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Legacy expenses imported",
		"imported", imported,
		"skipped", len(entries)-imported)

	return imported, nil
}
