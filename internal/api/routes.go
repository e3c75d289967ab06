package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/redzone-go/internal/api/handlers"
	"github.com/irfndi/redzone-go/internal/knowledge"
	"github.com/irfndi/redzone-go/internal/logging"
	"github.com/irfndi/redzone-go/internal/middleware"
)

// RouteDeps collects what the HTTP surface needs.
type RouteDeps struct {
	Assessor      handlers.Assessor
	Refresher     handlers.Refresher
	Confirmer     handlers.Confirmer
	KnowledgeBase knowledge.KnowledgeBase
	ModelVersion  string
	Checkers      map[string]handlers.HealthChecker
	// Auth guards /api/v1; nil leaves the API open (development only).
	Auth   *middleware.AuthMiddleware
	Logger *logging.StandardLogger
}

// SetupRoutes registers the health check and the v1 API.
func SetupRoutes(router *gin.Engine, deps RouteDeps) {
	healthHandler := handlers.NewHealthHandler(deps.Checkers, deps.ModelVersion, deps.KnowledgeBase)
	assessmentHandler := handlers.NewAssessmentHandler(deps.Assessor, deps.Logger)
	knowledgeHandler := handlers.NewKnowledgeHandler(deps.Refresher, deps.Confirmer, deps.Logger)

	router.GET("/health", healthHandler.HealthCheck)

	v1 := router.Group("/api/v1")
	if deps.Auth != nil {
		v1.Use(deps.Auth.RequireAuth())
	}
	{
		v1.POST("/assessments", guard(deps.Auth, middleware.ScopeAssess), assessmentHandler.CreateAssessment)

		knowledgeGroup := v1.Group("/knowledge")
		knowledgeGroup.POST("/refresh", guard(deps.Auth, middleware.ScopeRefresh), knowledgeHandler.Refresh)
		knowledgeGroup.POST("/confirm", guard(deps.Auth, middleware.ScopeRefresh), knowledgeHandler.Confirm)
	}
}

// guard enforces scope only when authentication is enabled.
func guard(auth *middleware.AuthMiddleware, scope string) gin.HandlerFunc {
	if auth == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RequireScope(scope)
}
