package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cortexai/chatbi/internal/models"
)

const version = "1.0.0"

// HealthChecker is implemented by services that can report connectivity
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles GET /health with a storage check
type HealthHandler struct {
	storage  HealthChecker
	backend  string
	insights []string
}

func NewHealthHandler(storage HealthChecker, backend string, insights []string) *HealthHandler {
	return &HealthHandler{storage: storage, backend: backend, insights: insights}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Use a short timeout for health checks so they don't block
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		checks[h.backend] = "unavailable: " + err.Error()
		overallStatus = "degraded"
	} else {
		checks[h.backend] = "ok"
	}
	for _, name := range h.insights {
		checks["insight_"+name] = "configured"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
