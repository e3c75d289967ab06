// Package knowledge labels transactions whose counterparty is already known,
// so that they bypass clustering and classification.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/irfndi/redzone-go/internal/models"
)

// Strategy names accepted by New.
const (
	StrategyRegex  = "regex"
	StrategyLookup = "lookup"
)

// KnowledgeBase is a refreshable counterparty lookup.
type KnowledgeBase interface {
	// Predict labels matched transactions in place and splits the input.
	Predict(ctx context.Context, txns []*models.Transaction) (labeled, unlabeled []*models.Transaction, err error)
	// Group is Predict under the grouper capability.
	Group(ctx context.Context, txns []*models.Transaction) (grouped, remainder []*models.Transaction, err error)
	// Refresh replaces the reference entities. In-flight predictions keep
	// the snapshot they started with.
	Refresh(ctx context.Context, entities []models.KnowledgeEntity) error
	Stats() Stats
}

// Confirmer accepts a single confirmed payer without a full reload.
type Confirmer interface {
	Confirm(ctx context.Context, entity models.KnowledgeEntity) error
}

// Stats reports how much traffic the knowledge base absorbed.
type Stats struct {
	TransactionsObserved      int64   `json:"transactionsObserved"`
	TransThroughKnowledgeBase int64   `json:"transThroughKnowledgeBase"`
	BypassPercentage          float64 `json:"bypassPercentage"`
	Entities                  int     `json:"entities"`
}

// Config selects and tunes the strategy.
type Config struct {
	Strategy       string
	RedisKey       string
	FuzzyThreshold float64
}

// New builds the configured strategy.
func New(cfg Config, entities []models.KnowledgeEntity, client redis.Cmdable) (KnowledgeBase, error) {
	switch cfg.Strategy {
	case "", StrategyRegex:
		return NewRegexKnowledgeBase(entities)
	case StrategyLookup:
		if client == nil {
			return nil, fmt.Errorf("lookup knowledge base requires a redis client")
		}
		kb := NewLookupKnowledgeBase(client, cfg.RedisKey, cfg.FuzzyThreshold)
		if len(entities) > 0 {
			if err := kb.Refresh(context.Background(), entities); err != nil {
				return nil, err
			}
		} else if err := kb.Load(context.Background()); err != nil {
			return nil, err
		}
		return kb, nil
	}
	return nil, fmt.Errorf("unknown knowledge base strategy %q", cfg.Strategy)
}

// LoadEntities reads a JSON array of reference entities, the seed used when
// no reference database is configured.
func LoadEntities(path string) ([]models.KnowledgeEntity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge entities: %w", err)
	}
	var entities []models.KnowledgeEntity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge entities: %w", err)
	}
	for i, e := range entities {
		cat, ok := models.ParseCategory(string(e.Category))
		if !ok {
			return nil, fmt.Errorf("knowledge entity %q has unknown category %q", e.Pattern, e.Category)
		}
		entities[i].Category = cat
	}
	return entities, nil
}

type counters struct {
	observed atomic.Int64
	hits     atomic.Int64
}

func (c *counters) record(observed, hits int) {
	c.observed.Add(int64(observed))
	c.hits.Add(int64(hits))
}

func (c *counters) stats(entities int) Stats {
	s := Stats{
		TransactionsObserved:      c.observed.Load(),
		TransThroughKnowledgeBase: c.hits.Load(),
		Entities:                  entities,
	}
	if s.TransactionsObserved > 0 {
		s.BypassPercentage = float64(s.TransThroughKnowledgeBase) / float64(s.TransactionsObserved) * 100
	}
	return s
}

// applyMatch labels a transaction from a knowledge base hit.
func applyMatch(t *models.Transaction, payer string, category models.Category, subCategory string) {
	t.SetCategory(category, models.LabelSourceKnowledgeBase)
	t.SubCategory = subCategory
	t.Who = payer
	t.WhoCat = "ORG"
	if t.How == "" {
		t.How = models.NoneValue
	}
	if t.What == "" {
		t.What = models.NoneValue
	}
}
