package http

import (
	"bytes"
	"fmt"
	"net/http"
)

// cachedResponse is a stored 200 body with its content type.
type cachedResponse struct {
	contentType string
	body        []byte
}

// cached serves GET responses from the LRU. Keys carry the profile's data
// version, so any mutation makes every cached entry for that profile
// unreachable without explicit invalidation.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := r.PathValue("handle")
		version, err := s.svc.Ledger.Version(handle)
		if err != nil {
			writeError(w, r, err)
			return
		}

		key := fmt.Sprintf("%s:%d:%s?%s", handle, version, r.URL.Path, r.URL.RawQuery)
		if hit, ok := s.responses.Get(key); ok {
			w.Header().Set("Content-Type", hit.contentType)
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(hit.body)
			return
		}

		w.Header().Set("X-Cache", "miss")
		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if rec.status == http.StatusOK {
			s.responses.Set(key, cachedResponse{
				contentType: rec.Header().Get("Content-Type"),
				body:        rec.buf.Bytes(),
			})
		}
	}
}

// recordingWriter tees the response body so successful reads can be
// cached after the handler runs.
type recordingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *recordingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}
