package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	ByKind            map[string]int `json:"by_kind"`
	TasksTotal        int            `json:"tasks_total"`
	TasksSucceeded    int            `json:"tasks_succeeded"`
	AvgTaskDurationMS float64        `json:"avg_task_duration_ms"`
	Busy              bool           `json:"busy"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetBatchStats(r.Context())
	if err != nil {
		s.logger.Error("get batch stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:             stats.Total,
		ByStatus:          stats.CountByStatus,
		ByKind:            stats.CountByKind,
		TasksTotal:        stats.TasksTotal,
		TasksSucceeded:    stats.TasksSucceeded,
		AvgTaskDurationMS: stats.AvgTaskDurationMS,
		Busy:              s.dispatcher.Busy(),
	})
}
