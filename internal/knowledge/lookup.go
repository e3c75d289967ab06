package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/xrash/smetrics"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/textnorm"
)

const (
	// DefaultRedisKey is the hash holding confirmed payers.
	DefaultRedisKey = "kb:payers"
	// DefaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a
	// fuzzy hit.
	DefaultFuzzyThreshold = 0.92
)

type lookupValue struct {
	Category    models.Category `json:"category"`
	SubCategory string          `json:"subCategory,omitempty"`
}

type lookupSnapshot struct {
	payers []string
}

// LookupKnowledgeBase resolves normalized descriptions against a Redis hash
// of confirmed payer strings, exactly or by Jaro-Winkler similarity.
type LookupKnowledgeBase struct {
	client    redis.Cmdable
	key       string
	threshold float64
	snapshot  atomic.Pointer[lookupSnapshot]
	refreshMu sync.Mutex
	counters
}

// NewLookupKnowledgeBase creates a lookup knowledge base over a Redis hash.
//
// Parameters:
//
//	client: The Redis client.
//	key: Hash key; empty uses DefaultRedisKey.
//	threshold: Fuzzy similarity cutoff; 0 uses DefaultFuzzyThreshold, 1 disables fuzzy hits.
func NewLookupKnowledgeBase(client redis.Cmdable, key string, threshold float64) *LookupKnowledgeBase {
	if key == "" {
		key = DefaultRedisKey
	}
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	kb := &LookupKnowledgeBase{client: client, key: key, threshold: threshold}
	kb.snapshot.Store(&lookupSnapshot{})
	return kb
}

// Load reads the payer keys already present in Redis.
func (kb *LookupKnowledgeBase) Load(ctx context.Context) error {
	payers, err := kb.client.HKeys(ctx, kb.key).Result()
	if err != nil {
		return fmt.Errorf("failed to load knowledge base keys: %w", err)
	}
	sort.Strings(payers)
	kb.snapshot.Store(&lookupSnapshot{payers: payers})
	return nil
}

// Refresh rebuilds the hash in a staging key and renames it over the live
// key, so readers never see a partially written table.
func (kb *LookupKnowledgeBase) Refresh(ctx context.Context, entities []models.KnowledgeEntity) error {
	kb.refreshMu.Lock()
	defer kb.refreshMu.Unlock()

	values := make(map[string]interface{})
	for _, e := range entities {
		payer := normalizePattern(e.Pattern)
		if payer == "" {
			continue
		}
		data, err := json.Marshal(lookupValue{Category: e.Category, SubCategory: e.SubCategory})
		if err != nil {
			return fmt.Errorf("failed to encode entity %q: %w", e.Pattern, err)
		}
		values[payer] = string(data)
	}

	staging := kb.key + ":staging"
	_, err := kb.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, staging)
		if len(values) == 0 {
			pipe.Del(ctx, kb.key)
			return nil
		}
		pipe.HSet(ctx, staging, values)
		pipe.Rename(ctx, staging, kb.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh knowledge base: %w", err)
	}

	payers := make([]string, 0, len(values))
	for p := range values {
		payers = append(payers, p)
	}
	sort.Strings(payers)
	kb.snapshot.Store(&lookupSnapshot{payers: payers})
	return nil
}

// Confirm records a single confirmed payer.
func (kb *LookupKnowledgeBase) Confirm(ctx context.Context, entity models.KnowledgeEntity) error {
	payer := normalizePattern(entity.Pattern)
	if payer == "" {
		return fmt.Errorf("empty payer pattern")
	}
	data, err := json.Marshal(lookupValue{Category: entity.Category, SubCategory: entity.SubCategory})
	if err != nil {
		return err
	}

	kb.refreshMu.Lock()
	defer kb.refreshMu.Unlock()
	if err := kb.client.HSet(ctx, kb.key, payer, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to confirm payer: %w", err)
	}
	old := kb.snapshot.Load().payers
	i := sort.SearchStrings(old, payer)
	if i < len(old) && old[i] == payer {
		return nil
	}
	payers := make([]string, 0, len(old)+1)
	payers = append(payers, old[:i]...)
	payers = append(payers, payer)
	payers = append(payers, old[i:]...)
	kb.snapshot.Store(&lookupSnapshot{payers: payers})
	return nil
}

// Predict resolves each transaction with one HMGET round trip for exact
// matches and one for fuzzy matches.
func (kb *LookupKnowledgeBase) Predict(ctx context.Context, txns []*models.Transaction) ([]*models.Transaction, []*models.Transaction, error) {
	snap := kb.snapshot.Load()

	var descs []string
	seen := make(map[string]bool)
	for _, t := range txns {
		d := descriptionOf(t)
		if d == textnorm.NoDescription || seen[d] {
			continue
		}
		seen[d] = true
		descs = append(descs, d)
	}

	resolved, err := kb.fetch(ctx, descs)
	if err != nil {
		return nil, nil, err
	}
	payerOf := make(map[string]string, len(descs))
	for d := range resolved {
		payerOf[d] = d
	}

	fuzzy := make(map[string]string)
	var fuzzyKeys []string
	for _, d := range descs {
		if _, ok := resolved[d]; ok {
			continue
		}
		if best, ok := kb.closest(snap, d); ok {
			fuzzy[d] = best
			if _, dup := resolved[best]; !dup && !containsString(fuzzyKeys, best) {
				fuzzyKeys = append(fuzzyKeys, best)
			}
		}
	}
	if len(fuzzyKeys) > 0 {
		more, err := kb.fetch(ctx, fuzzyKeys)
		if err != nil {
			return nil, nil, err
		}
		for k, v := range more {
			resolved[k] = v
		}
	}
	for d, best := range fuzzy {
		if v, ok := resolved[best]; ok {
			resolved[d] = v
			payerOf[d] = best
		}
	}

	var labeled, unlabeled []*models.Transaction
	for _, t := range txns {
		v, ok := resolved[t.NormalizedDescription]
		if !ok {
			unlabeled = append(unlabeled, t)
			continue
		}
		applyMatch(t, payerOf[t.NormalizedDescription], v.Category, v.SubCategory)
		labeled = append(labeled, t)
	}
	kb.record(len(txns), len(labeled))
	return labeled, unlabeled, nil
}

func (kb *LookupKnowledgeBase) fetch(ctx context.Context, fields []string) (map[string]lookupValue, error) {
	out := make(map[string]lookupValue)
	if len(fields) == 0 {
		return out, nil
	}
	vals, err := kb.client.HMGet(ctx, kb.key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var v lookupValue
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			continue
		}
		out[fields[i]] = v
	}
	return out, nil
}

// closest returns the most similar known payer above the threshold. Ties
// keep the lexically first payer.
func (kb *LookupKnowledgeBase) closest(snap *lookupSnapshot, desc string) (string, bool) {
	if kb.threshold >= 1 {
		return "", false
	}
	best, bestScore := "", kb.threshold
	for _, p := range snap.payers {
		score := smetrics.JaroWinkler(desc, p, 0.7, 4)
		if score >= bestScore && (best == "" || score > bestScore) {
			best, bestScore = p, score
		}
	}
	return best, best != ""
}

// Group implements interfaces.TransactionGrouper.
func (kb *LookupKnowledgeBase) Group(ctx context.Context, txns []*models.Transaction) ([]*models.Transaction, []*models.Transaction, error) {
	return kb.Predict(ctx, txns)
}

// Stats returns the bypass counters.
func (kb *LookupKnowledgeBase) Stats() Stats {
	return kb.stats(len(kb.snapshot.Load().payers))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
