package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/redzone-go/internal/logging"
	"github.com/irfndi/redzone-go/internal/middleware"
	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/utils"
)

// Assessor runs one assessment request end to end.
type Assessor interface {
	Assess(ctx context.Context, req *models.AssessmentRequest) (map[string]any, *models.AssessmentResult, error)
}

// AssessmentHandler serves the assessment endpoint.
type AssessmentHandler struct {
	assessor Assessor
	logger   *logging.StandardLogger
}

// NewAssessmentHandler creates a new assessment handler.
//
// Parameters:
//
//	assessor: The pipeline.
//	logger: Structured logger for assessment events.
//
// Returns:
//
//	*AssessmentHandler: Initialized handler.
func NewAssessmentHandler(assessor Assessor, logger *logging.StandardLogger) *AssessmentHandler {
	if logger == nil {
		logger = logging.NewStandardLogger("info", "production")
	}
	return &AssessmentHandler{assessor: assessor, logger: logger}
}

// CreateAssessment scores the posted bank data. Input-shape problems (no
// transactions, malformed dates) are reported in the body through runError
// with status 200; only requests that fail validation get a 400.
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	var req models.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	start := time.Now()
	output, result, err := h.assessor.Assess(c.Request.Context(), &req)
	if err != nil {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
			return
		}
		middleware.RecordError(c, err, "assessment output failed")
		h.logger.WithRequestID(middleware.GetRequestID(c)).Error("Failed to assemble assessment", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assemble assessment"})
		return
	}

	if result != nil {
		middleware.AddSpanAttribute(c, "assessment.accounts", len(result.Accounts))
		middleware.AddSpanAttribute(c, "assessment.run_error", result.RunError)
		h.logger.LogAssessment(middleware.GetRequestID(c), len(result.Accounts), result.RunError, time.Since(start).Milliseconds())
	}
	c.JSON(http.StatusOK, output)
}
