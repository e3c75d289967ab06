package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// Scorer types accepted by LoadScorer.
const (
	ScorerLogistic = "logistic"
	ScorerGBT      = "gbt"
)

// Contribution is one feature's effect on a scorer's log-odds.
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Scorer returns the probability of a favorable outcome for a feature vector
// together with per-feature contributions.
type Scorer interface {
	Probability(x []float64) (float64, []Contribution)
}

// LogisticScorer is a standardized logistic regression. Standardized inputs
// are clipped to [-ClipZ, ClipZ]; NaN inputs contribute nothing.
type LogisticScorer struct {
	Intercept float64
	ClipZ     float64
	names     []string
	weights   []float64
	means     []float64
	scales    []float64
}

type logisticFile struct {
	Type      string             `json:"type"`
	Intercept float64            `json:"intercept"`
	ClipZ     float64            `json:"clipZ"`
	Weights   map[string]float64 `json:"weights"`
	Means     map[string]float64 `json:"means"`
	Scales    map[string]float64 `json:"scales"`
}

func newLogisticScorer(f logisticFile, featureNames []string) (*LogisticScorer, error) {
	known := make(map[string]bool, len(featureNames))
	for _, n := range featureNames {
		known[n] = true
	}
	for n := range f.Weights {
		if !known[n] {
			return nil, fmt.Errorf("unknown scorer feature %q", n)
		}
	}
	s := &LogisticScorer{
		Intercept: f.Intercept,
		ClipZ:     f.ClipZ,
		names:     featureNames,
		weights:   make([]float64, len(featureNames)),
		means:     make([]float64, len(featureNames)),
		scales:    make([]float64, len(featureNames)),
	}
	if s.ClipZ <= 0 {
		s.ClipZ = 5
	}
	for i, n := range featureNames {
		s.weights[i] = f.Weights[n]
		s.means[i] = f.Means[n]
		s.scales[i] = f.Scales[n]
		if s.scales[i] <= 0 {
			s.scales[i] = 1
		}
	}
	return s, nil
}

// Probability implements Scorer.
func (s *LogisticScorer) Probability(x []float64) (float64, []Contribution) {
	z := s.Intercept
	var contrib []Contribution
	for i, w := range s.weights {
		if w == 0 || i >= len(x) || math.IsNaN(x[i]) {
			continue
		}
		std := (x[i] - s.means[i]) / s.scales[i]
		std = math.Max(-s.ClipZ, math.Min(s.ClipZ, std))
		c := w * std
		z += c
		contrib = append(contrib, Contribution{Feature: s.names[i], Value: c})
	}
	return sigmoid(z), contrib
}

// GBTScorer scores with a binary logistic tree ensemble.
type GBTScorer struct {
	ensemble *Ensemble
}

// NewGBTScorer wraps a binary:logistic ensemble.
func NewGBTScorer(e *Ensemble) (*GBTScorer, error) {
	if e.Objective != ObjectiveLogistic {
		return nil, fmt.Errorf("scorer needs a %s ensemble, got %q", ObjectiveLogistic, e.Objective)
	}
	return &GBTScorer{ensemble: e}, nil
}

// Probability implements Scorer.
func (g *GBTScorer) Probability(x []float64) (float64, []Contribution) {
	p := g.ensemble.Probabilities(x)[0]
	raw := g.ensemble.Contributions(x, 0)
	contrib := make([]Contribution, 0, len(raw))
	for f, v := range raw {
		contrib = append(contrib, Contribution{Feature: f, Value: v})
	}
	sort.Slice(contrib, func(i, j int) bool { return contrib[i].Feature < contrib[j].Feature })
	return p, contrib
}

// LoadScorer decodes a scorer of either type, bound to featureNames.
func LoadScorer(r io.Reader, featureNames []string) (Scorer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read scorer: %w", err)
	}
	var head struct {
		Type      string `json:"type"`
		Objective string `json:"objective"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode scorer: %w", err)
	}

	switch {
	case head.Type == ScorerLogistic:
		var f logisticFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode logistic scorer: %w", err)
		}
		return newLogisticScorer(f, featureNames)
	case head.Type == ScorerGBT || head.Objective == ObjectiveLogistic:
		var e Ensemble
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode gbt scorer: %w", err)
		}
		if err := e.bind(featureNames); err != nil {
			return nil, err
		}
		return NewGBTScorer(&e)
	}
	return nil, fmt.Errorf("unknown scorer type %q", head.Type)
}

// Adverse returns the negative contributions, most harmful first, at most n.
func Adverse(contrib []Contribution, n int) []Contribution {
	var out []Contribution
	for _, c := range contrib {
		if c.Value < 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Feature < out[j].Feature
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
