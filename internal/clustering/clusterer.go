// Package clustering groups same-account transactions whose normalized
// descriptions are close under Jaro-Winkler distance.
package clustering

import (
	"context"
	"fmt"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/textnorm"
)

// DefaultMaxDistance is the linkage threshold used when none is configured.
const DefaultMaxDistance = 0.15

// Distance is 1 - Jaro-Winkler similarity over the stopword-free tokens.
func Distance(a, b string) float64 {
	ka, kb := similarityKey(a), similarityKey(b)
	if ka == kb {
		return 0
	}
	return 1 - smetrics.JaroWinkler(ka, kb, 0.7, 4)
}

func similarityKey(normalized string) string {
	return strings.Join(textnorm.ContentTokens(normalized), " ")
}

// SimilarityClusterer links descriptions within MaxDistance of each other,
// transitively, inside each (account, who) scope.
type SimilarityClusterer struct {
	maxDistance float64
	scopeByWho  bool
}

// NewSimilarityClusterer creates a clusterer. A non-positive maxDistance uses
// DefaultMaxDistance.
func NewSimilarityClusterer(maxDistance float64, scopeByWho bool) *SimilarityClusterer {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &SimilarityClusterer{maxDistance: maxDistance, scopeByWho: scopeByWho}
}

// MaxDistance returns the linkage threshold.
func (c *SimilarityClusterer) MaxDistance() float64 {
	return c.maxDistance
}

type scope struct {
	account string
	who     string
}

// Cluster sets ClusterLabel on every transaction to "{who}_{n}", n counting
// clusters from 1 in order of first appearance within the scope. The result
// depends only on input order and the threshold.
func (c *SimilarityClusterer) Cluster(txns []*models.Transaction) {
	var order []scope
	members := make(map[scope][]*models.Transaction)
	for _, t := range txns {
		s := scope{account: t.AccountGUID, who: whoOf(t)}
		if !c.scopeByWho {
			s.who = ""
		}
		if _, ok := members[s]; !ok {
			order = append(order, s)
		}
		members[s] = append(members[s], t)
	}

	for _, s := range order {
		c.clusterScope(s, members[s])
	}
}

func whoOf(t *models.Transaction) string {
	if t.Who == "" {
		return models.NoneValue
	}
	return t.Who
}

func (c *SimilarityClusterer) clusterScope(s scope, txns []*models.Transaction) {
	// Identical descriptions always share a cluster; link unique ones.
	var uniques []string
	index := make(map[string]int)
	for _, t := range txns {
		if _, ok := index[t.NormalizedDescription]; !ok {
			index[t.NormalizedDescription] = len(uniques)
			uniques = append(uniques, t.NormalizedDescription)
		}
	}

	uf := newUnionFind(len(uniques))
	for i := 0; i < len(uniques); i++ {
		for j := i + 1; j < len(uniques); j++ {
			if Distance(uniques[i], uniques[j]) <= c.maxDistance {
				uf.union(i, j)
			}
		}
	}

	clusterNo := make(map[int]int)
	for _, t := range txns {
		root := uf.find(index[t.NormalizedDescription])
		n, ok := clusterNo[root]
		if !ok {
			n = len(clusterNo) + 1
			clusterNo[root] = n
		}
		prefix := s.who
		if prefix == "" {
			prefix = whoOf(t)
		}
		t.ClusterLabel = fmt.Sprintf("%s_%d", prefix, n)
	}
}

// Group implements interfaces.TransactionGrouper; every transaction is
// grouped.
func (c *SimilarityClusterer) Group(_ context.Context, txns []*models.Transaction) ([]*models.Transaction, []*models.Transaction, error) {
	c.Cluster(txns)
	return txns, nil, nil
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}
