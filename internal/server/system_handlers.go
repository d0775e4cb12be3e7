package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jalexanderII/101-Demo/internal/cache"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	store    *cache.Store
	cacheTTL int
	started  time.Time
	log      zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(store *cache.Store, cacheTTL int, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		store:    store,
		cacheTTL: cacheTTL,
		started:  time.Now(),
		log:      log.With().Str("component", "system_handlers").Logger(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	CacheEntries  int     `json:"cache_entries"`
	CacheTTL      int     `json:"cache_ttl"`
}

// HandleHealth is the liveness endpoint
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache_ttl": h.cacheTTL,
	})
}

// HandleSystemStatus reports process health for the dashboard footer
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.systemStats()
	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		UptimeSeconds: time.Since(h.started).Seconds(),
		GoVersion:     runtime.Version(),
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		CacheEntries:  h.store.Len(),
		CacheTTL:      h.cacheTTL,
	})
}

// systemStats calculates CPU and RAM usage percentages. The 100ms CPU
// sampling interval keeps the endpoint fast enough for UI polling.
func (h *SystemHandlers) systemStats() (float64, float64) {
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
