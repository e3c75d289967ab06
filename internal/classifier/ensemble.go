package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Objectives understood by Ensemble.
const (
	ObjectiveSoftmax  = "multi:softprob"
	ObjectiveLogistic = "binary:logistic"
)

// Node is one node of a regression tree. Internal nodes send x < Threshold
// left; NaN follows Missing ("left" or "right", default left). Value is the
// leaf output, or the expected output below an internal node.
type Node struct {
	Feature   string  `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Missing   string  `json:"missing,omitempty"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`

	index int
}

// Tree is a regression tree contributing to one output class.
type Tree struct {
	Class int    `json:"class"`
	Nodes []Node `json:"nodes"`
}

// Ensemble is a gradient-boosted tree model loaded from JSON.
type Ensemble struct {
	Version   string    `json:"version"`
	Objective string    `json:"objective"`
	Classes   []string  `json:"classes"`
	BaseScore []float64 `json:"baseScore"`
	Trees     []Tree    `json:"trees"`

	features []string
}

// LoadEnsemble decodes an ensemble and binds its split features to the
// positions in featureNames.
func LoadEnsemble(r io.Reader, featureNames []string) (*Ensemble, error) {
	var e Ensemble
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode ensemble: %w", err)
	}
	if err := e.bind(featureNames); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *Ensemble) bind(featureNames []string) error {
	index := make(map[string]int, len(featureNames))
	for i, n := range featureNames {
		index[n] = i
	}
	outputs := e.Outputs()
	switch e.Objective {
	case ObjectiveSoftmax:
		if len(e.Classes) < 2 {
			return fmt.Errorf("softmax ensemble needs at least two classes")
		}
	case ObjectiveLogistic:
	default:
		return fmt.Errorf("unsupported objective %q", e.Objective)
	}
	if len(e.BaseScore) == 0 {
		e.BaseScore = make([]float64, outputs)
	}
	if len(e.BaseScore) != outputs {
		return fmt.Errorf("baseScore has %d entries, want %d", len(e.BaseScore), outputs)
	}

	for ti := range e.Trees {
		tree := &e.Trees[ti]
		if tree.Class < 0 || tree.Class >= outputs {
			return fmt.Errorf("tree %d: class %d out of range", ti, tree.Class)
		}
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d: no nodes", ti)
		}
		for ni := range tree.Nodes {
			n := &tree.Nodes[ni]
			if n.Leaf {
				continue
			}
			idx, ok := index[n.Feature]
			if !ok {
				return fmt.Errorf("tree %d node %d: unknown feature %q", ti, ni, n.Feature)
			}
			n.index = idx
			// Children must come later so evaluation always terminates.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: invalid children", ti, ni)
			}
			if n.Missing != "" && n.Missing != "left" && n.Missing != "right" {
				return fmt.Errorf("tree %d node %d: invalid missing direction %q", ti, ni, n.Missing)
			}
		}
	}
	e.features = featureNames
	return nil
}

// Outputs is the number of raw margins the ensemble produces.
func (e *Ensemble) Outputs() int {
	if e.Objective == ObjectiveSoftmax {
		return len(e.Classes)
	}
	return 1
}

func (n *Node) next(x []float64) int {
	v := math.NaN()
	if n.index < len(x) {
		v = x[n.index]
	}
	switch {
	case math.IsNaN(v):
		if n.Missing == "right" {
			return n.Right
		}
		return n.Left
	case v < n.Threshold:
		return n.Left
	}
	return n.Right
}

// walk evaluates a tree and reports each split's change in expected value.
func (t *Tree) walk(x []float64, visit func(feature string, delta float64)) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		child := n.next(x)
		if visit != nil {
			visit(n.Feature, t.Nodes[child].Value-n.Value)
		}
		i = child
	}
}

// Margins returns the raw per-output scores.
func (e *Ensemble) Margins(x []float64) []float64 {
	out := append([]float64(nil), e.BaseScore...)
	for ti := range e.Trees {
		t := &e.Trees[ti]
		out[t.Class] += t.walk(x, nil)
	}
	return out
}

// Probabilities applies softmax or the logistic link to the margins.
func (e *Ensemble) Probabilities(x []float64) []float64 {
	m := e.Margins(x)
	if e.Objective == ObjectiveLogistic {
		return []float64{sigmoid(m[0])}
	}
	return softmax(m)
}

// Contributions attributes the margin of one output to split features by
// summing the change in expected value along each decision path.
func (e *Ensemble) Contributions(x []float64, output int) map[string]float64 {
	contrib := make(map[string]float64)
	for ti := range e.Trees {
		t := &e.Trees[ti]
		if t.Class != output {
			continue
		}
		t.walk(x, func(feature string, delta float64) {
			contrib[feature] += delta
		})
	}
	return contrib
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(m []float64) []float64 {
	maxM := math.Inf(-1)
	for _, v := range m {
		maxM = math.Max(maxM, v)
	}
	out := make([]float64, len(m))
	sum := 0.0
	for i, v := range m {
		out[i] = math.Exp(v - maxM)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
