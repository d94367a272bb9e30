package model

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

const KindGBRT = "gbrt"

// GBRT is a gradient-boosted ensemble of regression trees fit on squared
// error, each stage correcting the residual of the ensemble so far.
type GBRT struct {
	Trees        int     `json:"trees"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	MinLeaf      int     `json:"min_leaf"`
	Seed         int64   `json:"seed"`

	Base     float64    `json:"base"`
	Ensemble []*regTree `json:"ensemble"`
}

func NewGBRT(trees, maxDepth, minLeaf int, learningRate float64, seed int64) *GBRT {
	return &GBRT{
		Trees:        trees,
		MaxDepth:     maxDepth,
		LearningRate: learningRate,
		MinLeaf:      minLeaf,
		Seed:         seed,
	}
}

func (g *GBRT) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("gbrt: bad training shape: %d rows, %d targets", len(X), len(y))
	}

	g.Base = 0
	for _, v := range y {
		g.Base += v
	}
	g.Base /= float64(len(y))

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	rng := rand.New(rand.NewSource(g.Seed))
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.Base
	}
	resid := make([]float64, len(y))

	g.Ensemble = make([]*regTree, 0, g.Trees)
	for t := 0; t < g.Trees; t++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		tree := fitTree(X, resid, idx, treeParams{
			maxDepth: g.MaxDepth,
			minLeaf:  g.MinLeaf,
			rng:      rng,
		})
		g.Ensemble = append(g.Ensemble, tree)
		for i := range pred {
			pred[i] += g.LearningRate * tree.predict(X[i])
		}
	}
	return nil
}

func (g *GBRT) Predict(x []float64) float64 {
	out := g.Base
	for _, t := range g.Ensemble {
		out += g.LearningRate * t.predict(x)
	}
	return out
}

func (g *GBRT) Kind() string { return KindGBRT }

func (g *GBRT) MarshalParams() ([]byte, error) { return json.Marshal(g) }
