package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiranshivaraju/speedwatch/internal/api/response"
	"github.com/kiranshivaraju/speedwatch/internal/monitor"
	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// HealthPingTimeout bounds the exchange check of one health request.
const HealthPingTimeout = 2 * time.Second

// Monitor defines what the handlers need from the poll loop.
type Monitor interface {
	Latest() *models.CycleReport
	Trigger(ctx context.Context) error
	Ping(ctx context.Context) error
}

var _ Monitor = (*monitor.Monitor)(nil)

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// The service is degraded when the snapshot exchange cannot be read.
func NewHealthHandler(mon Monitor, aggregation bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"exchange": "disabled"}
		if aggregation {
			checks["exchange"] = "ok"
			ctx, cancel := context.WithTimeout(r.Context(), HealthPingTimeout)
			err := mon.Ping(ctx)
			cancel()
			if err != nil {
				checks["exchange"] = "degraded"
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"Snapshot exchange unreachable", checks)
				return
			}
		}

		body := map[string]any{
			"status":   "ok",
			"services": checks,
		}
		if latest := mon.Latest(); latest != nil {
			body["last_cycle_id"] = latest.ID
			body["last_cycle_at"] = latest.FinishedAt
		}
		response.JSON(w, body)
	}
}

// NewCycleHandler returns an http.HandlerFunc for GET /api/v1/cycle.
func NewCycleHandler(mon Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, ok := latestOrNoData(w, mon)
		if !ok {
			return
		}
		response.JSON(w, latest)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// The optional state query parameter filters by JobStateKind.
func NewListJobsHandler(mon Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, ok := latestOrNoData(w, mon)
		if !ok {
			return
		}

		jobs := latest.Jobs
		if state := r.URL.Query().Get("state"); state != "" {
			kind := models.JobStateKind(state)
			switch kind {
			case models.JobStateNoData, models.JobStateError, models.JobStateHasMetrics:
			default:
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"state must be one of no_data, error, has_metrics", nil)
				return
			}
			jobs = filterJobs(jobs, kind)
		}

		response.Collection(w, jobs, meta(latest, len(jobs)))
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(mon Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, ok := latestOrNoData(w, mon)
		if !ok {
			return
		}

		jobID := chi.URLParam(r, "jobID")
		job, found := latest.Job(jobID)
		if !found {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
				"Job was not polled in the latest cycle", map[string]string{"job_id": jobID})
			return
		}
		response.JSON(w, job)
	}
}

// NewListNodesHandler returns an http.HandlerFunc for GET /api/v1/nodes.
// The optional min_tier query parameter keeps nodes at or above that tier.
func NewListNodesHandler(mon Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, ok := latestOrNoData(w, mon)
		if !ok {
			return
		}

		nodes := latest.Nodes
		if raw := r.URL.Query().Get("min_tier"); raw != "" {
			minTier, err := models.ParseHealthTier(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"min_tier must be one of excellent, normal, worrying, extreme_slowdown", nil)
				return
			}
			kept := make([]models.NodeReport, 0, len(nodes))
			for _, n := range nodes {
				if n.Tier >= minTier {
					kept = append(kept, n)
				}
			}
			nodes = kept
		}

		response.Collection(w, nodes, meta(latest, len(nodes)))
	}
}

// NewRefreshHandler returns an http.HandlerFunc for POST /api/v1/refresh.
// The cycle runs in the background; every remote call in it carries its own timeout.
func NewRefreshHandler(mon Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := mon.Trigger(context.WithoutCancel(r.Context()))
		if errors.Is(err, monitor.ErrCycleInFlight) {
			response.Error(w, http.StatusConflict, "CYCLE_IN_FLIGHT",
				"A poll cycle is already running", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to start poll cycle", nil)
			return
		}

		response.Accepted(w, map[string]string{"status": "started"})
	}
}

func latestOrNoData(w http.ResponseWriter, mon Monitor) (*models.CycleReport, bool) {
	latest := mon.Latest()
	if latest == nil {
		response.Error(w, http.StatusNotFound, "NO_DATA",
			"No poll cycle has completed yet", nil)
		return nil, false
	}
	return latest, true
}

func filterJobs(jobs []models.JobReport, kind models.JobStateKind) []models.JobReport {
	out := make([]models.JobReport, 0, len(jobs))
	for _, j := range jobs {
		if j.State == kind {
			out = append(out, j)
		}
	}
	return out
}

func meta(c *models.CycleReport, total int) response.CycleMeta {
	return response.CycleMeta{
		CycleID:    c.ID.String(),
		FinishedAt: c.FinishedAt,
		Unit:       string(c.Unit),
		Total:      total,
	}
}
