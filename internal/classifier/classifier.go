// Package classifier holds the pretrained model capabilities: the cluster
// category model, the sub-label refiner and the account scorers. Models are
// loaded once at startup and are read-only afterwards.
package classifier

import (
	"fmt"
	"sort"

	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

// Prediction is the classification of one cluster.
type Prediction struct {
	Category      models.Category             `json:"category"`
	SubCategory   string                      `json:"subCategory,omitempty"`
	Confidence    float64                     `json:"confidence"`
	Probabilities map[models.Category]float64 `json:"probabilities,omitempty"`
}

// Classifier assigns a category to a cluster's features.
type Classifier interface {
	Classify(f *features.ClusterFeatures) (Prediction, error)
}

// GBTClassifier runs a softmax tree ensemble over the cluster vector.
type GBTClassifier struct {
	ensemble   *Ensemble
	categories []models.Category
}

// NewGBTClassifier wraps a softmax ensemble whose classes are category names.
func NewGBTClassifier(e *Ensemble) (*GBTClassifier, error) {
	if e.Objective != ObjectiveSoftmax {
		return nil, fmt.Errorf("cluster classifier needs a %s ensemble, got %q", ObjectiveSoftmax, e.Objective)
	}
	cats := make([]models.Category, len(e.Classes))
	for i, name := range e.Classes {
		c, ok := models.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown class %q", name)
		}
		cats[i] = c
	}
	return &GBTClassifier{ensemble: e, categories: cats}, nil
}

// Version returns the ensemble version string.
func (g *GBTClassifier) Version() string {
	return g.ensemble.Version
}

// Classify picks the most probable class; ties keep the earlier class.
func (g *GBTClassifier) Classify(f *features.ClusterFeatures) (Prediction, error) {
	probs := g.ensemble.Probabilities(f.Vector())
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	out := Prediction{
		Category:      g.categories[best],
		Confidence:    probs[best],
		Probabilities: make(map[models.Category]float64, len(probs)),
	}
	for i, p := range probs {
		out.Probabilities[g.categories[i]] = p
	}
	return out, nil
}

// HeuristicClassifier labels clusters from their indicator flags alone. It
// backs the tree model when no model file is configured.
type HeuristicClassifier struct{}

// Classify applies the flag rules in priority order.
func (HeuristicClassifier) Classify(f *features.ClusterFeatures) (Prediction, error) {
	fl := f.Flags
	credit := f.CreditRatio >= 0.5
	var cat models.Category
	switch {
	case fl.StrongLoan:
		cat = models.CategoryLoan
	case fl.Benefit && credit:
		cat = models.CategoryBenefit
	case fl.Payroll && credit:
		cat = models.CategoryPayroll
	case fl.Gig && credit:
		cat = models.CategoryGig
	case fl.Transfer || fl.BankTransfer:
		cat = models.CategoryTransfer
	case fl.SemiLoan && (fl.WeakLoan || fl.WhoOrg):
		cat = models.CategoryLoan
	default:
		cat = models.CategoryOther
	}
	return Prediction{Category: cat, Confidence: 1}, nil
}

// StackedClassifier refines a base prediction with a sub-label model.
type StackedClassifier struct {
	base    Classifier
	refiner *Refiner
}

// NewStackedClassifier combines a base classifier and an optional refiner.
func NewStackedClassifier(base Classifier, refiner *Refiner) *StackedClassifier {
	return &StackedClassifier{base: base, refiner: refiner}
}

// Classify runs the base model then asks the refiner for a sub-label.
func (s *StackedClassifier) Classify(f *features.ClusterFeatures) (Prediction, error) {
	p, err := s.base.Classify(f)
	if err != nil {
		return Prediction{}, err
	}
	if s.refiner != nil {
		p.SubCategory = s.refiner.Refine(p.Category, f.Terms())
	}
	return p, nil
}

// ClassifyClusters classifies each cluster and propagates the result to its
// members.
func ClassifyClusters(c Classifier, builder *features.Builder, clusters []*models.Cluster) error {
	for _, cl := range clusters {
		p, err := c.Classify(builder.Build(cl))
		if err != nil {
			return fmt.Errorf("failed to classify cluster %s: %w", cl.Label, err)
		}
		cl.Assign(p.Category, p.SubCategory)
	}
	return nil
}

// TopCategories returns categories ordered by descending probability.
func (p Prediction) TopCategories() []models.Category {
	out := make([]models.Category, 0, len(p.Probabilities))
	for c := range p.Probabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := p.Probabilities[out[i]], p.Probabilities[out[j]]
		if pi != pj {
			return pi > pj
		}
		return out[i] < out[j]
	})
	return out
}
