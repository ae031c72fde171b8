package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"tally/internal/core"
	"tally/internal/ledger"
)

type expenseJSON struct {
	ID          int64     `json:"id"`
	Date        core.Date `json:"date"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Date:        e.Date,
		Category:    e.Category,
		Amount:      e.Amount,
		Description: e.Description,
	}
}

type addExpenseRequest struct {
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// updateExpenseRequest carries a partial update; absent fields stay nil
// and leave the stored value alone.
type updateExpenseRequest struct {
	Date        *string  `json:"date"`
	Category    *string  `json:"category"`
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "malformed JSON body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	added, err := s.svc.Ledger.AddExpense(r.Context(), r.PathValue("handle"), core.Expense{
		Date:        date,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toExpenseJSON(added))
}

func (s *Server) handleQueryExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Ledger.Query(r.Context(), r.PathValue("handle"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseJSON, 0, len(rows))
	for _, e := range rows {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"expenses": out, "count": len(out)})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, r, "invalid expense id")
		return
	}
	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "malformed JSON body")
		return
	}

	var u ledger.ExpenseUpdate
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		u.Date = &d
	}
	u.Category = req.Category
	u.Amount = req.Amount
	u.Description = req.Description

	if err := s.svc.Ledger.UpdateExpense(r.Context(), r.PathValue("handle"), id, u); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, r, "invalid expense id")
		return
	}
	if err := s.svc.Ledger.DeleteExpense(r.Context(), r.PathValue("handle"), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportExpensesCSV buffers the export so store errors can still
// map to a status instead of a truncated download.
func (s *Server) handleExportExpensesCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	handle := r.PathValue("handle")

	var buf bytes.Buffer
	if err := s.svc.Ledger.ExportCSV(r.Context(), handle, &buf, f); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", handle+"_expenses.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImportLegacy(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, r, "unreadable request body")
		return
	}
	n, err := s.svc.Ledger.ImportLegacyJSON(r.Context(), r.PathValue("handle"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Ledger.Categories(r.Context(), r.PathValue("handle"), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": cats})
}

type categoryTotalJSON struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type summaryJSON struct {
	Month      string              `json:"month"`
	Total      float64             `json:"total"`
	ByCategory []categoryTotalJSON `json:"by_category"`
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Ledger.MonthSummary(r.Context(), r.PathValue("handle"), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := summaryJSON{Month: sum.Month, Total: sum.Total, ByCategory: []categoryTotalJSON{}}
	for _, ct := range sum.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalJSON{Category: ct.Category, Total: ct.Total})
	}
	writeJSON(w, r, http.StatusOK, out)
}
