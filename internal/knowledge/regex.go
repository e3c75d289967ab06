package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/textnorm"
)

// categoryOrder is the order in which category patterns are tried.
var categoryOrder = []models.Category{
	models.CategoryLoan,
	models.CategoryPayroll,
	models.CategoryBenefit,
	models.CategoryGig,
	models.CategoryTransfer,
	models.CategoryNSF,
	models.CategoryOther,
}

type categoryPattern struct {
	category models.Category
	re       *regexp.Regexp
	subs     map[string]string
}

type regexSnapshot struct {
	patterns []categoryPattern
	entities int
}

// RegexKnowledgeBase matches descriptions against one compiled alternation
// per category.
type RegexKnowledgeBase struct {
	snapshot atomic.Pointer[regexSnapshot]
	counters
}

// NewRegexKnowledgeBase compiles the given entities.
func NewRegexKnowledgeBase(entities []models.KnowledgeEntity) (*RegexKnowledgeBase, error) {
	kb := &RegexKnowledgeBase{}
	if err := kb.Refresh(context.Background(), entities); err != nil {
		return nil, err
	}
	return kb, nil
}

func compileRegexSnapshot(entities []models.KnowledgeEntity) (*regexSnapshot, error) {
	byCategory := make(map[models.Category][]string)
	subs := make(map[models.Category]map[string]string)
	seen := make(map[string]bool)
	count := 0
	for _, e := range entities {
		pattern := normalizePattern(e.Pattern)
		if pattern == "" || seen[pattern] {
			continue
		}
		seen[pattern] = true
		count++
		byCategory[e.Category] = append(byCategory[e.Category], pattern)
		if e.SubCategory != "" {
			if subs[e.Category] == nil {
				subs[e.Category] = make(map[string]string)
			}
			subs[e.Category][pattern] = e.SubCategory
		}
	}

	snap := &regexSnapshot{entities: count}
	for _, cat := range orderedCategories(byCategory) {
		patterns := byCategory[cat]
		// Longest alternatives first: Go alternation is leftmost-first.
		sort.SliceStable(patterns, func(i, j int) bool { return len(patterns[i]) > len(patterns[j]) })
		quoted := make([]string, len(patterns))
		for i, p := range patterns {
			quoted[i] = regexp.QuoteMeta(p)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s patterns: %w", cat, err)
		}
		snap.patterns = append(snap.patterns, categoryPattern{category: cat, re: re, subs: subs[cat]})
	}
	return snap, nil
}

func orderedCategories(m map[models.Category][]string) []models.Category {
	var out []models.Category
	known := make(map[models.Category]bool)
	for _, c := range categoryOrder {
		known[c] = true
		if len(m[c]) > 0 {
			out = append(out, c)
		}
	}
	var extra []models.Category
	for c := range m {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// normalizePattern puts a reference pattern into normalized-description form.
func normalizePattern(p string) string {
	n := textnorm.Normalize(p)
	if n == textnorm.NoDescription {
		return ""
	}
	return n
}

func descriptionOf(t *models.Transaction) string {
	if t.NormalizedDescription == "" {
		t.NormalizedDescription = textnorm.Normalize(t.RawDescription)
	}
	return t.NormalizedDescription
}

// Predict labels transactions whose description contains a known pattern.
func (kb *RegexKnowledgeBase) Predict(_ context.Context, txns []*models.Transaction) ([]*models.Transaction, []*models.Transaction, error) {
	snap := kb.snapshot.Load()
	var labeled, unlabeled []*models.Transaction
	for _, t := range txns {
		desc := descriptionOf(t)
		matched := false
		if desc != textnorm.NoDescription {
			for _, cp := range snap.patterns {
				if m := cp.re.FindString(desc); m != "" {
					applyMatch(t, m, cp.category, cp.subs[m])
					matched = true
					break
				}
			}
		}
		if matched {
			labeled = append(labeled, t)
		} else {
			unlabeled = append(unlabeled, t)
		}
	}
	kb.record(len(txns), len(labeled))
	return labeled, unlabeled, nil
}

// Group implements interfaces.TransactionGrouper.
func (kb *RegexKnowledgeBase) Group(ctx context.Context, txns []*models.Transaction) ([]*models.Transaction, []*models.Transaction, error) {
	return kb.Predict(ctx, txns)
}

// Refresh recompiles the patterns and swaps them in atomically.
func (kb *RegexKnowledgeBase) Refresh(_ context.Context, entities []models.KnowledgeEntity) error {
	snap, err := compileRegexSnapshot(entities)
	if err != nil {
		return err
	}
	kb.snapshot.Store(snap)
	return nil
}

// Stats returns the bypass counters.
func (kb *RegexKnowledgeBase) Stats() Stats {
	return kb.stats(kb.snapshot.Load().entities)
}
