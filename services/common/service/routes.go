package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/altarlane/marketplace/internal/httputil"
)

// HealthResponse is the standard response for /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// InfoResponse is the standard response for /info.
type InfoResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Runtime    RuntimeInfo    `json:"runtime"`
	Timestamp  string         `json:"timestamp"`
	Statistics map[string]any `json:"statistics,omitempty"`
}

// RuntimeInfo reports process and host resource usage.
type RuntimeInfo struct {
	GoVersion        string  `json:"go_version"`
	Goroutines       int     `json:"goroutines"`
	HeapAllocBytes   uint64  `json:"heap_alloc_bytes"`
	HostMemTotal     uint64  `json:"host_mem_total_bytes,omitempty"`
	HostMemUsedPct   float64 `json:"host_mem_used_percent,omitempty"`
	HostMemAvailable uint64  `json:"host_mem_available_bytes,omitempty"`
}

// HealthHandler returns the /health handler. Unhealthy services answer 503.
func HealthHandler(s *BaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.HealthStatus(r.Context())
		code := http.StatusOK
		if status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, HealthResponse{
			Status:    status,
			Service:   s.Name(),
			Version:   s.Version(),
			Details:   s.HealthDetails(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// InfoHandler returns the /info handler, including registered statistics.
func InfoHandler(s *BaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := InfoResponse{
			Status:    "active",
			Service:   s.Name(),
			Version:   s.Version(),
			Runtime:   runtimeInfo(s),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if s.statsFn != nil {
			resp.Statistics = s.statsFn()
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func runtimeInfo(s *BaseService) RuntimeInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info := RuntimeInfo{
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		s.logger.WithError(err).Debug("host memory stats unavailable")
		return info
	}
	info.HostMemTotal = vm.Total
	info.HostMemUsedPct = vm.UsedPercent
	info.HostMemAvailable = vm.Available
	return info
}

// RegisterStandardRoutes registers GET /health and GET /info.
func (b *BaseService) RegisterStandardRoutes() {
	b.router.HandleFunc("/health", HealthHandler(b)).Methods(http.MethodGet)
	b.router.HandleFunc("/info", InfoHandler(b)).Methods(http.MethodGet)
}
