package http

import (
	"fmt"
	"net/http"

	"tally/internal/advisor"
	"tally/internal/core"
)

type warningJSON struct {
	Month    string   `json:"month"`
	Category string   `json:"category"`
	Total    float64  `json:"total"`
	Limit    *float64 `json:"limit"`
	Status   string   `json:"status,omitempty"`
	Message  string   `json:"message"`
}

func toWarningJSON(w advisor.BudgetWarning) warningJSON {
	return warningJSON{
		Month:    w.Month,
		Category: w.Category,
		Total:    w.Total,
		Limit:    w.Limit,
		Status:   w.Status,
		Message:  w.String(),
	}
}

type adviceJSON struct {
	Category  string  `json:"category"`
	Action    string  `json:"action"`
	Suggested float64 `json:"suggested"`
	Limit     float64 `json:"limit"`
	Message   string  `json:"message"`
}

func orEmpty(m core.CategoryLimits) core.CategoryLimits {
	if m == nil {
		return core.CategoryLimits{}
	}
	return m
}

func (s *Server) handleLimitsTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.svc.Limits.Load(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if table == nil {
		table = core.LimitsTable{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"limits": table})
}

func (s *Server) handleMonthLimits(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	limits, err := s.svc.Limits.Month(r.PathValue("handle"), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"month": month, "limits": orEmpty(limits)})
}

func (s *Server) handleSaveMonthLimits(w http.ResponseWriter, r *http.Request) {
	var body core.CategoryLimits
	if err := decodeJSON(w, r, &body); err != nil {
		badRequest(w, r, "malformed JSON body")
		return
	}
	month := r.PathValue("month")
	saved, err := s.svc.Limits.SaveMonth(r.Context(), r.PathValue("handle"), month, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"month": month, "limits": orEmpty(saved)})
}

func (s *Server) handleClearMonthLimits(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	removed, err := s.svc.Limits.ClearMonth(r.Context(), r.PathValue("handle"), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"month": month, "removed": orEmpty(removed)})
}

func (s *Server) handleSuggestLimits(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	suggested, err := s.svc.Limits.Suggest(r.Context(), r.PathValue("handle"), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"month": month, "suggested": orEmpty(suggested)})
}

func (s *Server) handleAutoFillLimits(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	filled, err := s.svc.Limits.AutoFill(r.Context(), r.PathValue("handle"), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"month": month, "limits": orEmpty(filled)})
}

func (s *Server) handleCheckLimits(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	warnings, err := s.svc.Limits.Check(r.Context(), r.PathValue("handle"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]warningJSON, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, toWarningJSON(warning))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"warnings": out})
}

func (s *Server) handleAdviseLimits(w http.ResponseWriter, r *http.Request) {
	hints, err := s.svc.Limits.Advise(r.Context(), r.PathValue("handle"), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]adviceJSON, 0, len(hints))
	for _, a := range hints {
		out = append(out, adviceJSON{
			Category:  a.Category,
			Action:    a.Action,
			Suggested: a.Suggested,
			Limit:     a.Limit,
			Message:   a.String(),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"advice": out})
}

func (s *Server) handleExportLimitsCSV(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	month := r.PathValue("month")
	data, err := s.svc.Limits.ExportCSV(handle, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("%s_%s_limits.csv", handle, month)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImportLimitsCSV(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, r, "unreadable request body")
		return
	}
	month := r.PathValue("month")
	imported, err := s.svc.Limits.ImportCSV(r.Context(), r.PathValue("handle"), month, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"month": month, "limits": orEmpty(imported)})
}

func (s *Server) handleImportLimitsJSON(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, r, "unreadable request body")
		return
	}
	table, err := s.svc.Limits.ImportJSON(r.Context(), r.PathValue("handle"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if table == nil {
		table = core.LimitsTable{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"limits": table})
}
