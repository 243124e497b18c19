package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Artifact is the serialized form of one trained regressor, produced by the
// offline training job: the ordered feature name list, the training
// mean-absolute-error, and either linear coefficients or a flattened
// decision-tree ensemble.
type Artifact struct {
	Metric    string   `json:"metric"`
	Period    int      `json:"period"`
	ModelType string   `json:"model_type"` // "linear" or "tree_ensemble"
	Features  []string `json:"features"`
	MAE       float64  `json:"mae"`

	// Linear model
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`

	// Tree ensemble
	BaseScore float64 `json:"base_score,omitempty"`
	Trees     []Tree  `json:"trees,omitempty"`
}

// Tree is one regression tree stored as a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is one split or leaf. For splits, samples with
// features[Feature] < Threshold descend Left, otherwise Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

func (a *Artifact) validate() error {
	if len(a.Features) == 0 {
		return fmt.Errorf("artifact declares no features")
	}
	switch a.ModelType {
	case "linear":
		if len(a.Coefficients) != len(a.Features) {
			return fmt.Errorf("coefficient count %d does not match feature count %d",
				len(a.Coefficients), len(a.Features))
		}
	case "tree_ensemble":
		if len(a.Trees) == 0 {
			return fmt.Errorf("tree ensemble has no trees")
		}
		for i, t := range a.Trees {
			if err := t.validate(len(a.Features)); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown model type %q", a.ModelType)
	}
	return nil
}

func (t Tree) validate(featureCount int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty node array")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= featureCount {
			return fmt.Errorf("node %d references feature %d of %d", i, n.Feature, featureCount)
		}
		if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has out-of-range children", i)
		}
		// Children must point forward or evaluation could loop.
		if n.Left <= i || n.Right <= i {
			return fmt.Errorf("node %d has backward child reference", i)
		}
	}
	return nil
}

func (a *Artifact) predict(x []float64) float64 {
	if a.ModelType == "linear" {
		return a.Intercept + floats.Dot(a.Coefficients, x)
	}
	sum := a.BaseScore
	for _, t := range a.Trees {
		sum += t.evaluate(x)
	}
	return sum
}

func (t Tree) evaluate(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
