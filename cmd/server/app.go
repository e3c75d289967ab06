package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/redzone-go/internal/api"
	"github.com/irfndi/redzone-go/internal/api/handlers"
	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/classifier"
	"github.com/irfndi/redzone-go/internal/config"
	"github.com/irfndi/redzone-go/internal/database"
	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/knowledge"
	"github.com/irfndi/redzone-go/internal/logging"
	"github.com/irfndi/redzone-go/internal/middleware"
	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/ner"
	"github.com/irfndi/redzone-go/internal/services"
	"github.com/irfndi/redzone-go/internal/telemetry"
)

// application is the wired server.
type application struct {
	router    *gin.Engine
	pipeline  *services.Pipeline
	refresher *services.ReferenceRefresher
	closers   []func()
}

func (a *application) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// buildApplication connects the optional stores, loads the models and
// reference data, and builds the router.
func buildApplication(ctx context.Context, cfg *config.Config, std *logging.StandardLogger, logger *logrus.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	checkers := map[string]handlers.HealthChecker{}
	retries := services.DefaultRetryPolicies()

	var pool database.DatabasePool
	if cfg.Database.Enabled {
		var db *database.PostgresDB
		err := services.ExecuteWithRetry(ctx, logger, services.PolicyDatabaseConnect, retries[services.PolicyDatabaseConnect], func(ctx context.Context) error {
			var err error
			db, err = database.NewPostgresConnection(ctx, cfg.Database)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.onClose(db.Close)
		pool = database.NewTracedPool(db.Pool)
		checkers["database"] = db
	}

	var redisClient redis.Cmdable
	if cfg.Redis.Enabled {
		var rc *database.RedisClient
		err := services.ExecuteWithRetry(ctx, logger, services.PolicyRedisConnect, retries[services.PolicyRedisConnect], func(ctx context.Context) error {
			var err error
			rc, err = database.NewRedisConnection(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		app.onClose(rc.Close)
		redisClient = rc.Client
		checkers["redis"] = rc
	}

	var entities []models.KnowledgeEntity
	if cfg.Knowledge.EntitiesFile != "" {
		if entities, err = knowledge.LoadEntities(cfg.Knowledge.EntitiesFile); err != nil {
			return nil, err
		}
	}
	kb, err := knowledge.New(knowledge.Config{
		Strategy:       cfg.Knowledge.Strategy,
		RedisKey:       cfg.Knowledge.RedisKey,
		FuzzyThreshold: cfg.Knowledge.FuzzyThreshold,
	}, entities, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base: %w", err)
	}

	lexicon := ner.DefaultLexicon()
	if cfg.Pipeline.LexiconFile != "" {
		if lexicon, err = ner.LoadLexicon(cfg.Pipeline.LexiconFile); err != nil {
			return nil, err
		}
	}
	var indicators *features.Indicators
	if cfg.Pipeline.IndicatorsFile != "" {
		if indicators, err = features.LoadIndicators(cfg.Pipeline.IndicatorsFile); err != nil {
			return nil, err
		}
	}

	loaded, err := classifier.LoadModels(classifier.ModelPaths{
		ClusterModel: cfg.Models.ClusterModel,
		Refiner:      cfg.Models.Refiner,
		Scorers: map[models.ScoreType]string{
			models.ScoreRedZone:     cfg.Models.RedZoneScorer,
			models.ScoreRepeat:      cfg.Models.RepeatScorer,
			models.ScoreLoanPaidOff: cfg.Models.LoanPaidOffScorer,
			models.ScoreIsBad:       cfg.Models.IsBadScorer,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}

	optimizer := services.NewResourceOptimizer(services.ResourceOptimizerConfig{})
	workers := optimizer.TaggerWorkers(cfg.Pipeline.NERWorkers)
	std.LogBusinessEvent("worker_sizing", optimizer.SystemInfo())

	var instr telemetry.Instrumentation = telemetry.NoopInstrumentation{}
	if cfg.Telemetry.Enabled {
		instr = telemetry.NewTracerInstrumentation(logger)
	}

	store := calendar.NewStore(nil)
	app.pipeline, err = services.NewPipeline(cfg, services.PipelineDeps{
		Tagger:          ner.NewBatchTagger(ner.NewLexiconTagger(lexicon), workers, cfg.Pipeline.NERBatchSize),
		KnowledgeBase:   kb,
		Indicators:      indicators,
		Models:          loaded,
		Calendar:        store,
		Instrumentation: instr,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	var (
		refresher handlers.Refresher
		confirmer handlers.Confirmer
	)
	if pool != nil {
		app.refresher = services.NewReferenceRefresher(database.NewReferenceRepository(pool), kb, store, logger)
		if _, err := app.refresher.Refresh(ctx, true); err != nil {
			logger.WithError(err).Warn("Initial reference refresh failed, serving bundled reference data")
		}
		if cfg.Knowledge.RefreshCron != "" {
			if err := app.refresher.Start(cfg.Knowledge.RefreshCron); err != nil {
				return nil, err
			}
			app.onClose(app.refresher.Stop)
		}
		refresher = app.refresher
		confirmer = app.refresher
	}

	var auth *middleware.AuthMiddleware
	if cfg.Security.JWTSecret != "" {
		auth = middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
	} else {
		logger.Warn("JWT secret not set, API is unauthenticated")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.Telemetry.Enabled {
		router.Use(middleware.TelemetryMiddleware(cfg.Telemetry.ServiceName)...)
	}
	router.Use(middleware.RequestLogger(std))

	api.SetupRoutes(router, api.RouteDeps{
		Assessor:      app.pipeline,
		Refresher:     refresher,
		Confirmer:     confirmer,
		KnowledgeBase: kb,
		ModelVersion:  app.pipeline.ModelVersion(),
		Checkers:      checkers,
		Auth:          auth,
		Logger:        std,
	})
	app.router = router
	return app, nil
}
