package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/engine"
	"github.com/seantiz/easel/internal/model"
	"github.com/seantiz/easel/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 32 << 20 // room for a base64 reference image
)

// createBatchRequest is the JSON body for POST /v1/batches.
type createBatchRequest struct {
	MaxWorkers     int                   `json:"max_workers"`
	Params         *model.ParamOverrides `json:"params"`
	ReferenceImage string                `json:"reference_image"`
}

// regenerateRequest is the JSON body for POST /v1/batches/regenerate.
type regenerateRequest struct {
	createBatchRequest
	Indices []int `json:"indices"`
}

type regenerateResponse struct {
	Batch   *model.Batch `json:"batch"`
	Skipped []int        `json:"skipped"`
}

type batchDetailResponse struct {
	Batch   *model.Batch       `json:"batch"`
	Results []model.TaskRecord `json:"results"`
}

// listBatchesResponse wraps the paginated list response.
type listBatchesResponse struct {
	Batches []*model.Batch `json:"batches"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	tasks, ok := s.loadTasks(w, &req)
	if !ok {
		return
	}

	run, err := s.dispatcher.Start(s.batchCtx, tasks, engine.Options{MaxWorkers: req.MaxWorkers})
	if err != nil {
		s.writeStartError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, run.Batch)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Indices) == 0 {
		s.writeError(w, http.StatusBadRequest, "indices are required")
		return
	}

	tasks, ok := s.loadTasks(w, &req.createBatchRequest)
	if !ok {
		return
	}

	_, skipped := engine.SelectIndices(len(tasks), req.Indices)
	if skipped == nil {
		skipped = []int{}
	}

	run, err := s.dispatcher.StartRegenerate(s.batchCtx, tasks, req.Indices, engine.Options{MaxWorkers: req.MaxWorkers})
	if errors.Is(err, engine.ErrNothingToRegenerate) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "skipped": skipped})
		return
	}
	if err != nil {
		s.writeStartError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, regenerateResponse{Batch: run.Batch, Skipped: skipped})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := s.store.GetBatch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		s.logger.Error("get batch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get batch")
		return
	}

	results, err := s.store.GetTaskResults(r.Context(), id)
	if err != nil {
		s.logger.Error("get task results", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task results")
		return
	}
	if results == nil {
		results = []model.TaskRecord{}
	}

	s.writeJSON(w, http.StatusOK, batchDetailResponse{Batch: b, Results: results})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	batches, total, err := s.store.ListBatches(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list batches", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}

	if batches == nil {
		batches = []*model.Batch{}
	}

	s.writeJSON(w, http.StatusOK, listBatchesResponse{
		Batches: batches,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// decodeBody reads a JSON body into v, answering 400 on failure. An empty
// body leaves v at its zero value.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// loadTasks builds the task list for a batch request, answering with an
// error status on failure.
func (s *Server) loadTasks(w http.ResponseWriter, req *createBatchRequest) ([]model.Task, bool) {
	if req.MaxWorkers < 0 {
		s.writeError(w, http.StatusBadRequest, "max_workers must not be negative")
		return nil, false
	}

	var reference []byte
	if req.ReferenceImage != "" {
		var err error
		reference, err = base64.StdEncoding.DecodeString(req.ReferenceImage)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "reference_image is not valid base64")
			return nil, false
		}
	}

	tasks, err := s.tasks.Tasks(req.Params, reference)
	if err != nil {
		s.logger.Error("load tasks", "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, "failed to load prompts: "+err.Error())
		return nil, false
	}
	return tasks, true
}

// writeStartError maps a batch start failure to a status code.
func (s *Server) writeStartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrBatchInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrBackendUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("start batch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start batch")
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
