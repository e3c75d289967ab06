package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jbrukh/bayesian"

	"github.com/irfndi/redzone-go/internal/models"
)

// RefinerCorpus maps category → sub-label → example documents.
type RefinerCorpus map[string]map[string][][]string

// Refiner is a naive Bayes model per category that picks a sub-label from
// cluster terms.
type Refiner struct {
	models map[models.Category]*bayesian.Classifier
	vocab  map[models.Category]map[string]bool
}

// LoadRefiner trains the per-category models from a JSON corpus.
func LoadRefiner(r io.Reader) (*Refiner, error) {
	var corpus RefinerCorpus
	if err := json.NewDecoder(r).Decode(&corpus); err != nil {
		return nil, fmt.Errorf("failed to decode refiner corpus: %w", err)
	}
	return NewRefiner(corpus)
}

// NewRefiner trains from an in-memory corpus. Categories need at least two
// sub-labels.
func NewRefiner(corpus RefinerCorpus) (*Refiner, error) {
	ref := &Refiner{
		models: make(map[models.Category]*bayesian.Classifier),
		vocab:  make(map[models.Category]map[string]bool),
	}
	for name, labels := range corpus {
		cat, ok := models.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown refiner category %q", name)
		}
		if len(labels) < 2 {
			return nil, fmt.Errorf("category %q needs at least two sub-labels", name)
		}
		names := make([]string, 0, len(labels))
		for l := range labels {
			names = append(names, l)
		}
		sort.Strings(names)
		classes := make([]bayesian.Class, len(names))
		for i, l := range names {
			classes[i] = bayesian.Class(l)
		}
		cl := bayesian.NewClassifier(classes...)
		vocab := make(map[string]bool)
		for _, l := range names {
			for _, doc := range labels[l] {
				cl.Learn(doc, bayesian.Class(l))
				for _, w := range doc {
					vocab[w] = true
				}
			}
		}
		ref.models[cat] = cl
		ref.vocab[cat] = vocab
	}
	return ref, nil
}

// Refine returns the sub-label for terms, or "" when the category has no
// model or no sub-label is strictly more likely than the rest.
func (r *Refiner) Refine(cat models.Category, terms []string) string {
	cl, ok := r.models[cat]
	if !ok || len(terms) == 0 {
		return ""
	}
	vocab := r.vocab[cat]
	var known []string
	for _, t := range terms {
		if vocab[t] {
			known = append(known, t)
		}
	}
	if len(known) == 0 {
		return ""
	}
	_, likely, strict := cl.ProbScores(known)
	if !strict {
		return ""
	}
	return string(cl.Classes[likely])
}

// Categories lists the categories with a sub-label model.
func (r *Refiner) Categories() []models.Category {
	out := make([]models.Category, 0, len(r.models))
	for c := range r.models {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
