package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger is a backend the service depends on.
type Pinger func(ctx context.Context) error

// SystemHandler reports liveness and readiness.
type SystemHandler struct {
	startTime time.Time
	backends  map[string]Pinger
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler checking the given backends.
func NewSystemHandler(backends map[string]Pinger, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		backends:  backends,
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Liveness: the process is up.
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// Ready godoc
// GET /ready
// Readiness: every backend answers a ping.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.backends))
	status := http.StatusOK
	for name, ping := range h.backends {
		if err := ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("backend", name).Msg("Readiness check failed")
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	response.Success(c, status, gin.H{"checks": checks})
}
