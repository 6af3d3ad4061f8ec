package handlers

import (
	"net/http"
	"runtime"
	"time"

	"metapick/internal/indexer"
	"metapick/internal/logging"
	"metapick/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Ready      bool   `json:"ready"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime,omitempty"`
	Extracting bool   `json:"extracting"`
	LastRun    string `json:"lastRun,omitempty"`
	LastError  string `json:"lastError,omitempty"`

	// Progress of the current extraction run
	FilesDone  int `json:"filesDone,omitempty"`
	FilesTotal int `json:"filesTotal,omitempty"`

	// Last run result
	LastResult *indexer.RunResult `json:"lastResult,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	ImagesProcessed int `json:"imagesProcessed"`
	UniqueModels    int `json:"uniqueModels"`
}

// ready reports whether statistics are available. Without a background
// indexer the loaded statistics file is served as is.
func (h *Handlers) ready() bool {
	return h.indexer == nil || h.indexer.Status().Ready
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	stats := h.store.CollectorStats()

	response := HealthResponse{
		Ready:           true,
		Version:         startup.Version,
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
		ImagesProcessed: stats.ImagesProcessed,
		UniqueModels:    stats.UniqueModels,
	}

	if h.indexer != nil {
		status := h.indexer.Status()
		response.Ready = status.Ready
		response.Uptime = status.Uptime
		response.Extracting = status.Running
		response.LastResult = status.LastResult
		response.LastError = status.LastError
		if !status.LastRun.IsZero() {
			response.LastRun = status.LastRun.Format(time.RFC3339)
		}
		if status.Progress != nil {
			response.FilesDone = status.Progress.Done
			response.FilesTotal = status.Progress.Total
		}
	}

	// Runs of earlier processes are only recorded in the catalog.
	if response.LastRun == "" && h.db != nil {
		lastRun, err := h.db.GetLastRun(r.Context())
		if err != nil {
			logging.Debug("failed to read last catalog run: %v", err)
		} else if !lastRun.IsZero() {
			response.LastRun = lastRun.Format(time.RFC3339)
		}
	}

	switch {
	case !response.Ready:
		response.Status = statusStarting
	case response.LastError != "":
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	// Return 503 only if not ready at all
	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, response, code)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once statistics can be served
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, map[string]string{"status": "ready"}, http.StatusOK)
		return
	}
	writeJSONStatus(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
}
