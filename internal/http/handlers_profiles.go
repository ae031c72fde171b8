package http

import (
	"net/http"
	"strconv"
)

type createProfileRequest struct {
	Handle string `json:"handle"`
}

type renameProfileRequest struct {
	NewHandle string `json:"new_handle"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Profiles.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"profiles": names})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "malformed JSON body")
		return
	}
	handle, err := s.svc.Profiles.Create(r.Context(), req.Handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"handle": handle})
}

func (s *Server) handleRenameProfile(w http.ResponseWriter, r *http.Request) {
	var req renameProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "malformed JSON body")
		return
	}
	if err := s.svc.Profiles.Rename(r.PathValue("handle"), req.NewHandle); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveProfile(w http.ResponseWriter, r *http.Request) {
	dest, err := s.svc.Profiles.Archive(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"archived_to": dest})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	archiveFirst, _ := strconv.ParseBool(r.URL.Query().Get("archive"))
	if err := s.svc.Profiles.Delete(r.PathValue("handle"), archiveFirst); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
