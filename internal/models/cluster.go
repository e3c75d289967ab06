package models

// Cluster is a group of same-account transactions with similar normalized
// descriptions. Its category is decided once and copied onto every member.
type Cluster struct {
	Label       string
	AccountGUID string
	Who         string
	Members     []*Transaction
	Category    Category
	SubCategory string
	IncomeType  int
}

// MemberCount returns the number of transactions in the cluster.
func (c *Cluster) MemberCount() int {
	return len(c.Members)
}

// Assign stores the classification result and propagates it to members.
func (c *Cluster) Assign(category Category, subCategory string) {
	c.Category = category
	c.SubCategory = subCategory
	c.IncomeType = category.IncomeType()
	for _, t := range c.Members {
		t.SetCategory(category, LabelSourceClassifier)
		t.SubCategory = subCategory
	}
}

// GroupClusters collects transactions sharing an account and cluster label,
// preserving first-appearance order.
func GroupClusters(txns []*Transaction) []*Cluster {
	index := make(map[string]*Cluster)
	var clusters []*Cluster
	for _, t := range txns {
		if t.ClusterLabel == "" {
			continue
		}
		key := t.AccountGUID + "\x00" + t.ClusterLabel
		c, ok := index[key]
		if !ok {
			c = &Cluster{Label: t.ClusterLabel, AccountGUID: t.AccountGUID, Who: t.Who}
			index[key] = c
			clusters = append(clusters, c)
		}
		c.Members = append(c.Members, t)
	}
	return clusters
}
