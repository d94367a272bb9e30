package model

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

const KindForest = "forest"

// Forest is a bagged ensemble of regression trees: each tree fits a bootstrap
// resample and considers a sqrt-sized feature subset at every split. The
// smoother averaged output suits the short weekly and monthly tables better
// than boosting does.
type Forest struct {
	Trees    int   `json:"trees"`
	MaxDepth int   `json:"max_depth"`
	MinLeaf  int   `json:"min_leaf"`
	Seed     int64 `json:"seed"`

	Ensemble []*regTree `json:"ensemble"`
}

func NewForest(trees, maxDepth, minLeaf int, seed int64) *Forest {
	return &Forest{
		Trees:    trees,
		MaxDepth: maxDepth,
		MinLeaf:  minLeaf,
		Seed:     seed,
	}
}

func (f *Forest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("forest: bad training shape: %d rows, %d targets", len(X), len(y))
	}

	nf := len(X[0])
	sub := int(math.Ceil(math.Sqrt(float64(nf))))
	rng := rand.New(rand.NewSource(f.Seed))

	f.Ensemble = make([]*regTree, 0, f.Trees)
	for t := 0; t < f.Trees; t++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = rng.Intn(len(X))
		}
		tree := fitTree(X, y, idx, treeParams{
			maxDepth:   f.MaxDepth,
			minLeaf:    f.MinLeaf,
			maxFeature: sub,
			rng:        rng,
		})
		f.Ensemble = append(f.Ensemble, tree)
	}
	return nil
}

func (f *Forest) Predict(x []float64) float64 {
	if len(f.Ensemble) == 0 {
		return 0
	}
	s := 0.0
	for _, t := range f.Ensemble {
		s += t.predict(x)
	}
	return s / float64(len(f.Ensemble))
}

func (f *Forest) Kind() string { return KindForest }

func (f *Forest) MarshalParams() ([]byte, error) { return json.Marshal(f) }
