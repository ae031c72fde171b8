package http

import (
	"fmt"
	"net/http"

	"tally/internal/audit"
)

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = audit.FormatJSON
	}
	variant := q.Get("variant")
	if variant == "" {
		variant = audit.VariantGeneric
	}

	data, err := s.svc.Audit().Export(format, variant)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	contentType := "application/json; charset=utf-8"
	if format == audit.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "limits_audit."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleAuditClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Audit().ClearSink(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
