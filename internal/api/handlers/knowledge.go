package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/redzone-go/internal/knowledge"
	"github.com/irfndi/redzone-go/internal/logging"
	"github.com/irfndi/redzone-go/internal/middleware"
	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/services"
)

// Refresher reloads reference data.
type Refresher interface {
	Refresh(ctx context.Context, force bool) (services.RefreshResult, error)
}

// Confirmer records analyst-confirmed payers.
type Confirmer interface {
	Confirm(ctx context.Context, entity models.KnowledgeEntity) (knowledge.Stats, error)
}

// ConfirmRequest is the body of a payer confirmation.
type ConfirmRequest struct {
	Pattern     string `json:"pattern" binding:"required"`
	Category    string `json:"category" binding:"required"`
	SubCategory string `json:"subCategory"`
}

// KnowledgeHandler serves reference-data administration.
type KnowledgeHandler struct {
	refresher Refresher
	confirmer Confirmer
	logger    *logging.StandardLogger
}

// NewKnowledgeHandler creates a new knowledge handler. A nil refresher or
// confirmer reports the matching endpoint as unavailable.
func NewKnowledgeHandler(refresher Refresher, confirmer Confirmer, logger *logging.StandardLogger) *KnowledgeHandler {
	if logger == nil {
		logger = logging.NewStandardLogger("info", "production")
	}
	return &KnowledgeHandler{refresher: refresher, confirmer: confirmer, logger: logger}
}

// Refresh reloads the knowledge base and holiday calendar. ?force=true
// reloads the knowledge base even when the entity table is unchanged.
func (h *KnowledgeHandler) Refresh(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reference database not configured"})
		return
	}

	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean"})
			return
		}
		force = parsed
	}

	result, err := h.refresher.Refresh(c.Request.Context(), force)
	if errors.Is(err, services.ErrCircuitOpen) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reference refresh suspended after repeated failures"})
		return
	}
	if err != nil {
		middleware.RecordError(c, err, "reference refresh failed")
		h.logger.WithComponent("knowledge").Error("Reference refresh failed", "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "Reference refresh failed"})
		return
	}

	h.logger.LogBusinessEvent("knowledge_refresh", map[string]interface{}{
		"client":           middleware.ClientID(c),
		"entities":         result.Entities,
		"holidays":         result.Holidays,
		"knowledge_reload": result.KnowledgeReload,
		"forced":           force,
	})
	c.JSON(http.StatusOK, result)
}

// Confirm adds a confirmed payer to the reference table and the live
// knowledge base.
func (h *KnowledgeHandler) Confirm(c *gin.Context) {
	if h.confirmer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reference database not configured"})
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	category, ok := models.ParseCategory(req.Category)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category", "details": req.Category})
		return
	}

	entity := models.KnowledgeEntity{Pattern: req.Pattern, Category: category, SubCategory: req.SubCategory}
	stats, err := h.confirmer.Confirm(c.Request.Context(), entity)
	if err != nil {
		middleware.RecordError(c, err, "knowledge confirm failed")
		h.logger.WithComponent("knowledge").Error("Knowledge confirm failed", "error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "Knowledge confirm failed"})
		return
	}

	h.logger.LogBusinessEvent("knowledge_confirm", map[string]interface{}{
		"client":   middleware.ClientID(c),
		"pattern":  entity.Pattern,
		"category": string(category),
	})
	c.JSON(http.StatusOK, gin.H{"confirmed": entity, "knowledgeBase": stats})
}
