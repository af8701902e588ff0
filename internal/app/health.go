package app

import (
	"context"
	"net/http"
	"time"

	"github.com/thea-app/thea/internal/platform/httpx"
)

// HealthCheck probes a single external dependency.
type HealthCheck struct {
	Name  string
	Probe func(context.Context) error
}

// Health aggregates dependency probes for the health endpoint.
type Health struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealth builds a Health aggregator.
func NewHealth(checks ...HealthCheck) *Health {
	return &Health{checks: checks, timeout: 5 * time.Second}
}

// Handler reports per-dependency status as JSON.
func (h *Health) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		status := http.StatusOK
		services := make(map[string]string, len(h.checks))
		for _, check := range h.checks {
			if check.Probe == nil {
				continue
			}
			if err := check.Probe(ctx); err != nil {
				services[check.Name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			services[check.Name] = "healthy"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httpx.JSON(w, status, map[string]any{
			"status":   state,
			"services": services,
		})
	}
}
