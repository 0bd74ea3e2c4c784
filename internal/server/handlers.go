package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"patchvault/internal/models"
	"patchvault/internal/vault"
)

type errorResponse struct {
	Error string   `json:"error"`
	Paths []string `json:"paths,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error, paths []string) {
	if status >= http.StatusInternalServerError {
		s.log().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Paths: paths})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var partial *vault.PartialBuildError
	switch {
	case errors.As(err, &partial):
		s.writeError(w, r, http.StatusBadGateway, err, partial.Paths)
	case errors.Is(err, vault.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err, nil)
	case errors.Is(err, vault.ErrNonMonotonicPatch), errors.Is(err, vault.ErrPatchAlreadyIngested):
		s.writeError(w, r, http.StatusConflict, err, nil)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err, nil)
	}
}

func (s *Server) pathDistribution(w http.ResponseWriter, r *http.Request) (models.Distribution, bool) {
	dist, err := models.ParseDistribution(r.PathValue("dist"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err, nil)
		return "", false
	}
	return dist, true
}

func (s *Server) pathPatch(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.PathValue("patch"))
	patch, err := strconv.Atoi(raw)
	if err != nil || patch < 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid patch: %q", raw), nil)
		return 0, false
	}
	return patch, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDistributions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, models.Distributions())
}

func (s *Server) handlePatches(w http.ResponseWriter, r *http.Request) {
	dist, ok := s.pathDistribution(w, r)
	if !ok {
		return
	}
	patches, err := s.store.ListPatches(r.Context(), dist)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, patches)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	dist, ok := s.pathDistribution(w, r)
	if !ok {
		return
	}
	path, err := models.NormalizeClientPath(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err, nil)
		return
	}
	history, err := s.store.History(r.Context(), dist, path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

type snapshotResponse struct {
	Distribution models.Distribution   `json:"distribution"`
	Patch        int                   `json:"patch"`
	Files        []models.ResolvedFile `json:"files"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	dist, ok := s.pathDistribution(w, r)
	if !ok {
		return
	}
	patch, ok := s.pathPatch(w, r)
	if !ok {
		return
	}

	normalized, err := s.resolver.NormalizePatch(r.Context(), dist, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	snapshot, err := s.resolver.Resolve(r.Context(), dist, normalized)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	files := make([]models.ResolvedFile, 0, len(snapshot))
	for _, path := range vault.SortedPaths(snapshot) {
		files = append(files, snapshot[path])
	}
	s.writeJSON(w, http.StatusOK, snapshotResponse{Distribution: dist, Patch: normalized, Files: files})
}
