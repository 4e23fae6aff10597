package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleGetArtifact serves output_{n}.png by its 1-based number.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		s.writeError(w, http.StatusBadRequest, "artifact number must be a positive integer")
		return
	}

	arts := s.dispatcher.Artifacts()
	if !arts.Exists(n) {
		s.writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, arts.Path(n))
}
