package handlers

import (
	"context"
	"hacker-kid/internal/app"
	"net/http"
	"time"
)

// HealthHandler reports server and database liveness
type HealthHandler struct {
	config *app.Config
}

func NewHealthHandler(config *app.Config) *HealthHandler {
	return &HealthHandler{config: config}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if err := h.config.DB.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	sendJSON(w, code, status)
}
