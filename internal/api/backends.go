package api

import (
	"encoding/json"
	"net/http"

	"github.com/seantiz/easel/internal/backend"
)

// setBackendsRequest is the JSON body for PUT /v1/backends.
type setBackendsRequest struct {
	Addresses []string `json:"addresses"`
}

type backendsResponse struct {
	Backends []string `json:"backends"`
}

// handleListBackends probes every registered backend and reports its status.
func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	statuses := s.dispatcher.Prober().ProbeAll(r.Context(), s.dispatcher.Registry().Backends())
	if statuses == nil {
		statuses = []backend.Status{}
	}
	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleSetBackends(w http.ResponseWriter, r *http.Request) {
	var req setBackendsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	set := s.dispatcher.Registry().SetBackends(req.Addresses)
	s.logger.Info("backends updated", "backends", set)
	s.writeJSON(w, http.StatusOK, backendsResponse{Backends: set})
}
