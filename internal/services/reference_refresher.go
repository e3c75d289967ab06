package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/knowledge"
	"github.com/irfndi/redzone-go/internal/models"
)

// ReferenceSource supplies the reference tables.
type ReferenceSource interface {
	KnowledgeEntities(ctx context.Context) ([]models.KnowledgeEntity, error)
	Holidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error)
	LastUpdated(ctx context.Context) (time.Time, error)
	UpsertKnowledgeEntity(ctx context.Context, e models.KnowledgeEntity) error
}

// RefreshResult describes one refresh run.
type RefreshResult struct {
	Entities        int             `json:"entities"`
	Holidays        int             `json:"holidays"`
	KnowledgeReload bool            `json:"knowledgeReloaded"`
	RefreshedAt     time.Time       `json:"refreshedAt"`
	KnowledgeBase   knowledge.Stats `json:"knowledgeBase"`
}

// ReferenceRefresher reloads the knowledge base and holiday calendar out of
// band. Both are swapped atomically, so in-flight assessments keep the
// snapshot they started with.
type ReferenceRefresher struct {
	source   ReferenceSource
	kb       knowledge.KnowledgeBase
	calendar *calendar.Store
	logger   *logrus.Logger
	breaker  *CircuitBreaker

	mu          sync.Mutex
	lastVersion time.Time
	cronRunner  *cron.Cron
	now         func() time.Time
}

// NewReferenceRefresher creates a refresher over source.
func NewReferenceRefresher(source ReferenceSource, kb knowledge.KnowledgeBase, cal *calendar.Store, logger *logrus.Logger) *ReferenceRefresher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	breaker := NewCircuitBreaker("reference_refresh", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          10 * time.Minute,
	}, logger)
	return &ReferenceRefresher{
		source:   source,
		kb:       kb,
		calendar: cal,
		logger:   logger,
		breaker:  breaker,
		now:      time.Now,
	}
}

// Refresh reloads holidays and, when the entity table changed since the last
// run or force is set, the knowledge base. Concurrent calls are serialized.
// After repeated source failures it returns ErrCircuitOpen without touching
// the source until the breaker cools down.
func (r *ReferenceRefresher) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result RefreshResult
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = r.refresh(ctx, force)
		return err
	})
	return result, err
}

// Confirm records a confirmed payer in the reference table and applies it to
// the live knowledge base. Strategies that cannot take a single entity are
// reloaded from the table.
func (r *ReferenceRefresher) Confirm(ctx context.Context, entity models.KnowledgeEntity) (knowledge.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.source.UpsertKnowledgeEntity(ctx, entity); err != nil {
		return knowledge.Stats{}, err
	}
	if c, ok := r.kb.(knowledge.Confirmer); ok {
		if err := c.Confirm(ctx, entity); err != nil {
			return knowledge.Stats{}, err
		}
	} else {
		entities, err := r.source.KnowledgeEntities(ctx)
		if err != nil {
			return knowledge.Stats{}, fmt.Errorf("failed to load knowledge entities: %w", err)
		}
		if err := r.kb.Refresh(ctx, entities); err != nil {
			return knowledge.Stats{}, fmt.Errorf("failed to refresh knowledge base: %w", err)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"pattern":  entity.Pattern,
		"category": entity.Category,
	}).Info("Knowledge entity confirmed")
	return r.kb.Stats(), nil
}

// Breaker exposes the refresh circuit breaker state.
func (r *ReferenceRefresher) Breaker() CircuitBreakerStats {
	return r.breaker.Stats()
}

func (r *ReferenceRefresher) refresh(ctx context.Context, force bool) (RefreshResult, error) {
	now := r.now().UTC()
	result := RefreshResult{RefreshedAt: now}

	version, err := r.source.LastUpdated(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to check reference version: %w", err)
	}
	if force || version.After(r.lastVersion) {
		entities, err := r.source.KnowledgeEntities(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to load knowledge entities: %w", err)
		}
		if err := r.kb.Refresh(ctx, entities); err != nil {
			return result, fmt.Errorf("failed to refresh knowledge base: %w", err)
		}
		r.lastVersion = version
		result.Entities = len(entities)
		result.KnowledgeReload = true
	}

	if r.calendar != nil {
		from := time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(now.Year()+1, time.December, 31, 0, 0, 0, 0, time.UTC)
		holidays, err := r.source.Holidays(ctx, from, to)
		if err != nil {
			return result, fmt.Errorf("failed to load holidays: %w", err)
		}
		r.calendar.Replace(holidays)
		result.Holidays = len(holidays)
	}

	result.KnowledgeBase = r.kb.Stats()
	r.logger.WithFields(logrus.Fields{
		"entities":         result.Entities,
		"holidays":         result.Holidays,
		"knowledge_reload": result.KnowledgeReload,
	}).Info("Reference data refreshed")
	return result, nil
}

// Start schedules Refresh on a cron spec such as "@every 6h" or
// "0 */6 * * *". Overlapping runs are skipped.
func (r *ReferenceRefresher) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cronRunner != nil {
		return fmt.Errorf("reference refresher already started")
	}

	cronLogger := cron.PrintfLogger(r.logger)
	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))
	_, err := runner.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := r.Refresh(ctx, false); err != nil {
			r.logger.WithError(err).Error("Scheduled reference refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	runner.Start()
	r.cronRunner = runner
	r.logger.WithField("schedule", spec).Info("Reference refresh scheduled")
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *ReferenceRefresher) Stop() {
	r.mu.Lock()
	runner := r.cronRunner
	r.cronRunner = nil
	r.mu.Unlock()
	if runner != nil {
		<-runner.Stop().Done()
	}
}
