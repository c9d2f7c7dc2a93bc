package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/database"
	"github.com/qulab/qulab/internal/reliability"
	"github.com/qulab/qulab/internal/scheduler"
	"github.com/qulab/qulab/internal/version"
)

// SystemHandlers serves the monitoring and operations endpoints under
// /api/system.
type SystemHandlers struct {
	log           zerolog.Logger
	dataDir       string
	startupTime   time.Time
	jobsDB        *database.DB
	cacheDB       *database.DB
	scheduler     *scheduler.Scheduler
	stream        *qx.JobStream
	backups       *reliability.BackupService
	streamEnabled bool
}

// SystemHandlersConfig carries the dependencies for SystemHandlers.
// Scheduler, Stream and Backups may be nil when the feature is off.
type SystemHandlersConfig struct {
	DataDir       string
	JobsDB        *database.DB
	CacheDB       *database.DB
	Scheduler     *scheduler.Scheduler
	Stream        *qx.JobStream
	Backups       *reliability.BackupService
	StreamEnabled bool
}

// NewSystemHandlers creates the system endpoint handlers.
func NewSystemHandlers(cfg SystemHandlersConfig, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:           log.With().Str("component", "system_handlers").Logger(),
		dataDir:       cfg.DataDir,
		startupTime:   time.Now(),
		jobsDB:        cfg.JobsDB,
		cacheDB:       cfg.CacheDB,
		scheduler:     cfg.Scheduler,
		stream:        cfg.Stream,
		backups:       cfg.Backups,
		streamEnabled: cfg.StreamEnabled,
	}
}

// RegisterRoutes registers all system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/jobs", h.HandleJobs)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/backups", h.HandleListBackups)
		r.Post("/jobs/{name}/run", h.HandleRunJob)
		r.Post("/checkpoint", h.HandleCheckpoint)
	})
}

// SystemStatusResponse is the payload for GET /api/system/status.
type SystemStatusResponse struct {
	Status        string              `json:"status"`
	Version       string              `json:"version"`
	GoVersion     string              `json:"go_version"`
	Goroutines    int                 `json:"goroutines"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	CPUPercent    float64             `json:"cpu_percent"`
	RAMPercent    float64             `json:"ram_percent"`
	DiskFreeMB    float64             `json:"disk_free_mb"`
	DataDirMB     float64             `json:"data_dir_mb"`
	Databases     []DatabaseStatus    `json:"databases"`
	ScheduledJobs []scheduler.JobInfo `json:"scheduled_jobs"`
	Stream        StreamStatus        `json:"stream"`
	BackupEnabled bool                `json:"backup_enabled"`
	Timestamp     string              `json:"timestamp"`
}

// DatabaseStatus reports health and size for one database.
type DatabaseStatus struct {
	Name    string  `json:"name"`
	Healthy bool    `json:"healthy"`
	SizeMB  float64 `json:"size_mb"`
	WALMB   float64 `json:"wal_mb"`
}

// StreamStatus reports the QX job event stream state.
type StreamStatus struct {
	Enabled    bool `json:"enabled"`
	Connected  bool `json:"connected"`
	CacheStale bool `json:"cache_stale"`
}

// HandleStatus handles GET /api/system/status requests.
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	response.CPUPercent, response.RAMPercent = h.getSystemStats()

	if usage, err := disk.Usage(h.dataDir); err == nil {
		response.DiskFreeMB = float64(usage.Free) / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	}
	response.DataDirMB = h.getDirSize(h.dataDir)

	for _, entry := range h.databases() {
		status := h.databaseStatus(r, entry.name, entry.db)
		if !status.Healthy {
			response.Status = "degraded"
		}
		response.Databases = append(response.Databases, status)
	}

	if h.scheduler != nil {
		response.ScheduledJobs = h.scheduler.Jobs()
	}

	response.Stream = StreamStatus{
		Enabled:    h.streamEnabled,
		Connected:  h.stream != nil && h.stream.IsConnected(),
		CacheStale: h.stream != nil && h.stream.IsCacheStale(),
	}
	response.BackupEnabled = h.backups != nil

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobs handles GET /api/system/jobs requests.
func (h *SystemHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobInfo{}
	if h.scheduler != nil {
		jobs = h.scheduler.Jobs()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// HandleRunJob handles POST /api/system/jobs/{name}/run requests. The job
// runs in the background; progress shows up under /api/system/jobs.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if h.scheduler == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "Scheduler is not running",
		})
		return
	}

	known := false
	for _, info := range h.scheduler.Jobs() {
		if info.Name == name {
			known = true
			break
		}
	}
	if !known {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("No job named %q", name),
		})
		return
	}

	go func() {
		if err := h.scheduler.RunByName(name); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "started",
	})
}

// HandleCheckpoint handles POST /api/system/checkpoint requests. It forces
// a TRUNCATE WAL checkpoint on every open database.
func (h *SystemHandlers) HandleCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpointed := []string{}
	failed := []string{}

	for _, entry := range h.databases() {
		if err := entry.db.WALCheckpoint("TRUNCATE"); err != nil {
			h.log.Error().Err(err).Str("database", entry.name).Msg("WAL checkpoint failed")
			failed = append(failed, entry.name)
			continue
		}
		checkpointed = append(checkpointed, entry.name)
	}

	if len(failed) > 0 {
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "Checkpoint failed for some databases",
			"failed": failed,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"databases": checkpointed,
	})
}

// DatabaseStatsResponse is the payload for GET /api/system/database/stats.
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo holds size and page statistics for one database.
type DBInfo struct {
	Name          string  `json:"name"`
	SizeMB        float64 `json:"size_mb"`
	WALMB         float64 `json:"wal_mb"`
	PageCount     int64   `json:"page_count"`
	PageSize      int64   `json:"page_size"`
	FreelistCount int64   `json:"freelist_count"`
}

// HandleDatabaseStats handles GET /api/system/database/stats requests.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		Databases:   []DBInfo{},
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, entry := range h.databases() {
		stats, err := entry.db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", entry.name).Msg("Failed to get database stats")
			continue
		}

		info := DBInfo{
			Name:          entry.name,
			SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
			WALMB:         float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount:     stats.PageCount,
			PageSize:      stats.PageSize,
			FreelistCount: stats.FreelistCount,
		}
		response.Databases = append(response.Databases, info)
		response.TotalSizeMB += info.SizeMB + info.WALMB
	}

	// The snapshot history store manages its own connection, so only its
	// file size is reported here.
	historyPath := filepath.Join(h.dataDir, "history.db")
	if fileInfo, err := os.Stat(historyPath); err == nil {
		info := DBInfo{
			Name:   "history",
			SizeMB: float64(fileInfo.Size()) / 1024 / 1024,
		}
		if walInfo, err := os.Stat(historyPath + "-wal"); err == nil {
			info.WALMB = float64(walInfo.Size()) / 1024 / 1024
		}
		response.Databases = append(response.Databases, info)
		response.TotalSizeMB += info.SizeMB + info.WALMB
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListBackups handles GET /api/system/backups requests.
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "Backups are not configured",
		})
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list remote backups")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Failed to list remote backups",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

type namedDB struct {
	name string
	db   *database.DB
}

func (h *SystemHandlers) databases() []namedDB {
	dbs := []namedDB{}
	if h.jobsDB != nil {
		dbs = append(dbs, namedDB{"jobs", h.jobsDB})
	}
	if h.cacheDB != nil {
		dbs = append(dbs, namedDB{"cache", h.cacheDB})
	}
	return dbs
}

func (h *SystemHandlers) databaseStatus(r *http.Request, name string, db *database.DB) DatabaseStatus {
	status := DatabaseStatus{Name: name, Healthy: true}

	if err := db.QuickCheck(r.Context()); err != nil {
		h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
		status.Healthy = false
	}

	if stats, err := db.GetStats(); err == nil {
		status.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
		status.WALMB = float64(stats.WALSizeBytes) / 1024 / 1024
	}

	return status
}

// getSystemStats calculates CPU and RAM usage percentages. The CPU sample
// uses a 100ms window to keep the endpoint fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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

func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
