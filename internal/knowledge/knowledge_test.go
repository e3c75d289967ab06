package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/textnorm"
	"github.com/irfndi/redzone-go/pkg/interfaces"
)

func testEntities() []models.KnowledgeEntity {
	return []models.KnowledgeEntity{
		{Pattern: "SSA TREAS 310", Category: models.CategoryBenefit, SubCategory: "social security"},
		{Pattern: "GUSTO", Category: models.CategoryPayroll},
		{Pattern: "DOORDASH DASHER", Category: models.CategoryGig},
		{Pattern: "OPPLOANS", Category: models.CategoryLoan},
	}
}

func txn(guid, raw string) *models.Transaction {
	return &models.Transaction{TransGUID: guid, RawDescription: raw, NormalizedDescription: textnorm.Normalize(raw)}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRegexKnowledgeBase_Predict(t *testing.T) {
	kb, err := NewRegexKnowledgeBase(testEntities())
	require.NoError(t, err)

	txns := []*models.Transaction{
		txn("1", "SSA TREAS 310 XXSOC SEC"),
		txn("2", "GUSTO PAYROLL 88213"),
		txn("3", "COFFEE SHOP"),
		txn("4", "OPPLOANS PAYMENT"),
		txn("5", ""),
	}

	labeled, unlabeled, err := kb.Predict(context.Background(), txns)
	require.NoError(t, err)
	require.Len(t, labeled, 3)
	require.Len(t, unlabeled, 2)

	assert.Equal(t, models.CategoryBenefit, txns[0].Category)
	assert.Equal(t, "social security", txns[0].SubCategory)
	assert.Equal(t, models.IncomeTypeBenefit, txns[0].IncomeType)
	assert.Equal(t, models.LabelSourceKnowledgeBase, txns[0].LabelSource)
	assert.Equal(t, "ssa treas", txns[0].Who)

	assert.Equal(t, models.CategoryPayroll, txns[1].Category)
	assert.Equal(t, "gusto", txns[1].Who)
	assert.Equal(t, models.CategoryLoan, txns[3].Category)
	assert.False(t, txns[2].IsLabeled())

	stats := kb.Stats()
	assert.Equal(t, int64(5), stats.TransactionsObserved)
	assert.Equal(t, int64(3), stats.TransThroughKnowledgeBase)
	assert.InDelta(t, 60.0, stats.BypassPercentage, 0.001)
	assert.Equal(t, 4, stats.Entities)
}

func TestRegexKnowledgeBase_WordBoundary(t *testing.T) {
	kb, err := NewRegexKnowledgeBase([]models.KnowledgeEntity{{Pattern: "ADP", Category: models.CategoryPayroll}})
	require.NoError(t, err)

	labeled, unlabeled, err := kb.Predict(context.Background(), []*models.Transaction{txn("1", "ADAPTIVE FITNESS"), txn("2", "ADP WAGE")})
	require.NoError(t, err)
	assert.Len(t, labeled, 1)
	assert.Len(t, unlabeled, 1)
	assert.Equal(t, "2", labeled[0].TransGUID)
}

func TestRegexKnowledgeBase_RefreshSwapsSnapshot(t *testing.T) {
	kb, err := NewRegexKnowledgeBase(nil)
	require.NoError(t, err)

	labeled, _, err := kb.Predict(context.Background(), []*models.Transaction{txn("1", "GUSTO PAYROLL")})
	require.NoError(t, err)
	assert.Empty(t, labeled)

	require.NoError(t, kb.Refresh(context.Background(), testEntities()))
	labeled, _, err = kb.Predict(context.Background(), []*models.Transaction{txn("2", "GUSTO PAYROLL")})
	require.NoError(t, err)
	assert.Len(t, labeled, 1)
}

func TestRegexKnowledgeBase_ConcurrentRefresh(t *testing.T) {
	kb, err := NewRegexKnowledgeBase(testEntities())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = kb.Predict(context.Background(), []*models.Transaction{txn("x", "GUSTO PAYROLL")})
		}()
		go func() {
			defer wg.Done()
			_ = kb.Refresh(context.Background(), testEntities())
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8), kb.Stats().TransactionsObserved)
}

func TestLookupKnowledgeBase_ExactAndFuzzy(t *testing.T) {
	_, client := setupRedis(t)
	kb := NewLookupKnowledgeBase(client, "", 0)
	require.NoError(t, kb.Refresh(context.Background(), testEntities()))

	txns := []*models.Transaction{
		txn("1", "DOORDASH DASHER"),
		txn("2", "DOORDASH DASHERS"),
		txn("3", "GROCERY OUTLET"),
	}
	labeled, unlabeled, err := kb.Predict(context.Background(), txns)
	require.NoError(t, err)
	assert.Len(t, labeled, 2)
	assert.Len(t, unlabeled, 1)

	assert.Equal(t, models.CategoryGig, txns[0].Category)
	assert.Equal(t, models.CategoryGig, txns[1].Category)
	assert.Equal(t, "doordash dasher", txns[1].Who)
	assert.False(t, txns[2].IsLabeled())
}

func TestLookupKnowledgeBase_RefreshReplacesHash(t *testing.T) {
	mr, client := setupRedis(t)
	kb := NewLookupKnowledgeBase(client, "kb:test", 1)
	require.NoError(t, kb.Refresh(context.Background(), testEntities()))
	assert.True(t, mr.Exists("kb:test"))
	assert.False(t, mr.Exists("kb:test:staging"))

	require.NoError(t, kb.Refresh(context.Background(), []models.KnowledgeEntity{{Pattern: "UBER", Category: models.CategoryGig}}))
	keys, err := mr.HKeys("kb:test")
	require.NoError(t, err)
	assert.Equal(t, []string{"uber"}, keys)
	assert.Equal(t, 1, kb.Stats().Entities)
}

func TestLookupKnowledgeBase_LoadAndConfirm(t *testing.T) {
	mr, client := setupRedis(t)
	mr.HSet(DefaultRedisKey, "gusto", `{"category":"payroll"}`)

	kb := NewLookupKnowledgeBase(client, "", 1)
	require.NoError(t, kb.Load(context.Background()))
	assert.Equal(t, 1, kb.Stats().Entities)

	require.NoError(t, kb.Confirm(context.Background(), models.KnowledgeEntity{Pattern: "Lyft Driver", Category: models.CategoryGig}))
	assert.Equal(t, 2, kb.Stats().Entities)
	assert.Equal(t, `{"category":"gig"}`, mr.HGet(DefaultRedisKey, "lyft driver"))

	assert.Error(t, kb.Confirm(context.Background(), models.KnowledgeEntity{Pattern: "   "}))
}

func TestLookupKnowledgeBase_RedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	kb := NewLookupKnowledgeBase(client, "", 0)
	mr.Close()

	_, _, err := kb.Predict(context.Background(), []*models.Transaction{txn("1", "GUSTO")})
	assert.Error(t, err)
}

func TestNew_SelectsStrategy(t *testing.T) {
	_, client := setupRedis(t)

	kb, err := New(Config{Strategy: StrategyRegex}, testEntities(), nil)
	require.NoError(t, err)
	assert.IsType(t, &RegexKnowledgeBase{}, kb)

	kb, err = New(Config{Strategy: StrategyLookup}, testEntities(), client)
	require.NoError(t, err)
	assert.IsType(t, &LookupKnowledgeBase{}, kb)

	var _ interfaces.TransactionGrouper = kb

	_, err = New(Config{Strategy: StrategyLookup}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Strategy: "bogus"}, nil, nil)
	assert.Error(t, err)
}

func TestLoadEntities(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "entities.json")
	require.NoError(t, os.WriteFile(good, []byte(`[
		{"pattern": "GUSTO", "category": "Payroll"},
		{"pattern": "SSA TREAS 310", "category": "benefit", "subCategory": "social security"}
	]`), 0o600))

	entities, err := LoadEntities(good)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, models.CategoryPayroll, entities[0].Category)
	assert.Equal(t, "social security", entities[1].SubCategory)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"pattern": "X", "category": "rent"}]`), 0o600))
	_, err = LoadEntities(bad)
	assert.ErrorContains(t, err, "unknown category")

	_, err = LoadEntities(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
