package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// HealthHandler serves a liveness/uptime check for the daemon.
type HealthHandler struct {
	version   string
	startTime time.Time
}

// NewHealthHandler builds a HealthHandler reporting version.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, startTime: time.Now()}
}

// Register wires the health check onto api.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.Get)
}

// HealthOutput reports process liveness and basic runtime stats.
type HealthOutput struct {
	Body struct {
		Status        string `json:"status"`
		Version       string `json:"version"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Goroutines    int    `json:"goroutines"`
	}
}

// Get reports the daemon's current liveness status.
func (h *HealthHandler) Get(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = h.version
	out.Body.UptimeSeconds = time.Since(h.startTime).Seconds()
	out.Body.Goroutines = runtime.NumGoroutine()
	return out, nil
}
