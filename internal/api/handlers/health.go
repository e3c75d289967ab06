package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/redzone-go/internal/knowledge"
)

var startTime = time.Now()

// HealthChecker is a dependency that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports dependency status and model metadata.
type HealthHandler struct {
	checkers     map[string]HealthChecker
	modelVersion string
	kb           knowledge.KnowledgeBase
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Services      map[string]string `json:"services"`
	ModelVersion  string            `json:"modelVersion"`
	KnowledgeBase *knowledge.Stats  `json:"knowledgeBase,omitempty"`
	Uptime        string            `json:"uptime"`
}

// NewHealthHandler creates a health handler. Nil checkers are skipped, so
// optional dependencies that are disabled do not count against health.
func NewHealthHandler(checkers map[string]HealthChecker, modelVersion string, kb knowledge.KnowledgeBase) *HealthHandler {
	active := make(map[string]HealthChecker, len(checkers))
	for name, ch := range checkers {
		if ch != nil {
			active[name] = ch
		}
	}
	return &HealthHandler{checkers: active, modelVersion: modelVersion, kb: kb}
}

// HealthCheck pings every configured dependency.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	services := make(map[string]string, len(h.checkers))
	overall := "healthy"
	for name, ch := range h.checkers {
		if err := ch.HealthCheck(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			overall = "unhealthy"
			continue
		}
		services[name] = "healthy"
	}

	resp := HealthResponse{
		Status:       overall,
		Timestamp:    time.Now().UTC(),
		Services:     services,
		ModelVersion: h.modelVersion,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
	}
	if h.kb != nil {
		stats := h.kb.Stats()
		resp.KnowledgeBase = &stats
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
