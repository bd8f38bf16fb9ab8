package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/compass/internal/clientdata"
	"github.com/aristath/compass/internal/database"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/aristath/compass/internal/scheduler"
)

// healthCheckTimeout bounds the per-database check in status requests
const healthCheckTimeout = 5 * time.Second

// SystemDeps are the components reported on by the system endpoints. Any may be nil.
type SystemDeps struct {
	Databases  []*database.DB
	Cache      *clientdata.Cache
	Scheduler  *scheduler.Scheduler
	Bus        *events.Bus
	Board      *market.IndexBoard
	Commentary *commentary.Service
}

// SystemHandlers contains HTTP handlers for system status and operations
type SystemHandlers struct {
	deps      SystemDeps
	startedAt time.Time
	log       zerolog.Logger

	// host metrics, replaced in tests
	hostStats func() (cpuPercent, memPercent float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		deps:      deps,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.hostStats = h.getSystemStats
	return h
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status              string              `json:"status"` // "healthy" or "degraded"
	Version             string              `json:"version"`
	UptimeSeconds       int64               `json:"uptime_seconds"`
	CPUPercent          float64             `json:"cpu_percent"`
	MemoryPercent       float64             `json:"memory_percent"`
	Goroutines          int                 `json:"goroutines"`
	Databases           []DBInfo            `json:"databases"`
	Cache               *clientdata.Stats   `json:"cache,omitempty"`
	CommentaryAvailable bool                `json:"commentary_available"`
	Indices             *IndicesInfo        `json:"indices,omitempty"`
	Events              *EventsInfo         `json:"events,omitempty"`
	Jobs                []scheduler.JobInfo `json:"jobs"`
	LastChecked         string              `json:"last_checked"`
}

// DBInfo describes one database
type DBInfo struct {
	Name    string          `json:"name"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// IndicesInfo summarizes the index board
type IndicesInfo struct {
	Symbols   int       `json:"symbols"`
	Loading   bool      `json:"loading"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// EventsInfo summarizes the event bus
type EventsInfo struct {
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped"`
}

// JobsStatusResponse is the body of GET /api/system/jobs
type JobsStatusResponse struct {
	Jobs []scheduler.JobInfo `json:"jobs"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.hostStats()
	dbs := h.databaseInfo(r.Context())

	status := "healthy"
	for _, db := range dbs {
		if !db.Healthy {
			status = "degraded"
		}
	}

	response := SystemStatusResponse{
		Status:        status,
		Version:       Version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Databases:     dbs,
		Jobs:          h.jobs(),
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	if h.deps.Cache != nil {
		stats := h.deps.Cache.Stats()
		response.Cache = &stats
	}
	if h.deps.Commentary != nil {
		response.CommentaryAvailable = h.deps.Commentary.Available()
	}
	if h.deps.Board != nil {
		snap := h.deps.Board.Snapshot()
		response.Indices = &IndicesInfo{
			Symbols:   len(h.deps.Board.Symbols()),
			Loading:   snap.Loading,
			UpdatedAt: snap.UpdatedAt,
			Error:     snap.Error,
		}
	}
	if h.deps.Bus != nil {
		response.Events = &EventsInfo{
			Subscribers: h.deps.Bus.Subscribers(),
			Dropped:     h.deps.Bus.Dropped(),
		}
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":    h.databaseInfo(r.Context()),
		"last_checked": time.Now().Format(time.RFC3339),
	}, h.log)
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JobsStatusResponse{Jobs: h.jobs()}, h.log)
}

// HandleTriggerJob handles POST /api/system/jobs/{name}, running the job synchronously
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.deps.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured", h.log)
		return
	}

	h.log.Info().Str("job", name).Msg("Manually triggering job")

	err := h.deps.Scheduler.RunByName(name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", h.log)
	case err != nil:
		h.log.Error().Err(err).Str("job", name).Msg("Job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"job":    name,
			"error":  err.Error(),
		}, h.log)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"job":    name,
		}, h.log)
	}
}

func (h *SystemHandlers) jobs() []scheduler.JobInfo {
	if h.deps.Scheduler == nil {
		return []scheduler.JobInfo{}
	}
	return h.deps.Scheduler.Jobs()
}

func (h *SystemHandlers) databaseInfo(ctx context.Context) []DBInfo {
	infos := make([]DBInfo, 0, len(h.deps.Databases))
	for _, db := range h.deps.Databases {
		if db == nil {
			continue
		}
		info := DBInfo{Name: db.Name(), Healthy: true}

		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		if err := db.HealthCheck(checkCtx); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		cancel()

		if stats, err := db.GetStats(); err == nil {
			info.Stats = stats
		} else {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		}
		infos = append(infos, info)
	}
	return infos
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the status call fast
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes {"error": message}
func writeError(w http.ResponseWriter, status int, message string, log zerolog.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, log)
}
