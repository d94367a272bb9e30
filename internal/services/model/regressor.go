package model

import (
	"encoding/json"
	"fmt"

	"GridSpend/internal/domain/models"
)

// Regressor is a fitted (or fittable) point regressor over feature vectors.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
	Kind() string
	MarshalParams() ([]byte, error)
}

// Hyperparams selects and tunes a regressor. Zero fields fall back to the
// kind's defaults.
type Hyperparams struct {
	Kind         string  `yaml:"kind"`
	Trees        int     `yaml:"trees"`
	MaxDepth     int     `yaml:"max_depth"`
	MinLeaf      int     `yaml:"min_leaf"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
}

func (h Hyperparams) withDefaults() Hyperparams {
	if h.Trees == 0 {
		h.Trees = 200
	}
	if h.MaxDepth == 0 {
		h.MaxDepth = 4
	}
	if h.MinLeaf == 0 {
		h.MinLeaf = 5
	}
	if h.LearningRate == 0 {
		h.LearningRate = 0.05
	}
	if h.Seed == 0 {
		h.Seed = 42
	}
	return h
}

// DefaultHyperparams maps each granularity to its regressor: boosting for the
// long hourly and daily tables, bagging for the short weekly and monthly ones.
func DefaultHyperparams(g models.Granularity) Hyperparams {
	switch g {
	case models.Weekly, models.Monthly:
		return Hyperparams{Kind: KindForest, Trees: 300, MaxDepth: 8, MinLeaf: 2}.withDefaults()
	default:
		return Hyperparams{Kind: KindGBRT}.withDefaults()
	}
}

// NewRegressor builds an unfitted regressor from hyperparameters.
func NewRegressor(h Hyperparams) (Regressor, error) {
	h = h.withDefaults()
	switch h.Kind {
	case KindGBRT, "":
		return NewGBRT(h.Trees, h.MaxDepth, h.MinLeaf, h.LearningRate, h.Seed), nil
	case KindForest:
		return NewForest(h.Trees, h.MaxDepth, h.MinLeaf, h.Seed), nil
	default:
		return nil, fmt.Errorf("unknown regressor kind %q", h.Kind)
	}
}

// UnmarshalRegressor restores a fitted regressor from its serialized params.
func UnmarshalRegressor(kind string, params []byte) (Regressor, error) {
	switch kind {
	case KindGBRT:
		var g GBRT
		if err := json.Unmarshal(params, &g); err != nil {
			return nil, fmt.Errorf("decode gbrt params: %w", err)
		}
		return &g, nil
	case KindForest:
		var f Forest
		if err := json.Unmarshal(params, &f); err != nil {
			return nil, fmt.Errorf("decode forest params: %w", err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown regressor kind %q", kind)
	}
}
