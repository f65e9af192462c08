package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports gateway, provider and sink health. The gateway stays
// serving (200) while the provider is down; only a dead sink degrades the
// status code, since events would then be lost.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.provider != nil {
		if err := h.provider.Health(r.Context()); err != nil {
			status["provider_status"] = "unhealthy"
		} else {
			status["provider_status"] = "healthy"
		}
	}

	if h.sink != nil {
		if err := h.sink.Health(r.Context()); err != nil {
			status["sink_status"] = "unhealthy"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["sink_status"] = "healthy"
		}
	}

	writeJSON(w, code, status)
}
