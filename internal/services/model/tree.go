package model

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a fitted regression tree, stored in a flat slice so
// the whole tree serializes as plain JSON.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
}

type regTree struct {
	Nodes []treeNode `json:"nodes"`
}

// predict walks the tree. Missing (NaN) feature values follow the left
// branch, the same convention used when thresholds are chosen during fitting.
func (t *regTree) predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		v := x[n.Feature]
		if math.IsNaN(v) || v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// treeParams controls a single tree fit.
type treeParams struct {
	maxDepth   int
	minLeaf    int
	maxFeature int // 0 = consider all features at every split
	rng        *rand.Rand
}

// fitTree grows a variance-reducing CART regression tree over X[idx], y[idx].
func fitTree(X [][]float64, y []float64, idx []int, p treeParams) *regTree {
	t := &regTree{}
	t.grow(X, y, idx, 0, p)
	return t
}

func (t *regTree) grow(X [][]float64, y []float64, idx []int, depth int, p treeParams) int {
	node := treeNode{Leaf: true, Value: meanAt(y, idx)}
	pos := len(t.Nodes)
	t.Nodes = append(t.Nodes, node)

	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return pos
	}

	feat, thr, ok := bestSplit(X, y, idx, p)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		v := X[i][feat]
		if math.IsNaN(v) || v <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.minLeaf || len(right) < p.minLeaf {
		return pos
	}

	l := t.grow(X, y, left, depth+1, p)
	r := t.grow(X, y, right, depth+1, p)
	t.Nodes[pos] = treeNode{Feature: feat, Threshold: thr, Left: l, Right: r}
	return pos
}

// bestSplit scans candidate features for the threshold minimizing the summed
// squared error of the two children. NaN values sort first and always go left.
func bestSplit(X [][]float64, y []float64, idx []int, p treeParams) (feature int, threshold float64, ok bool) {
	nf := len(X[idx[0]])
	features := make([]int, nf)
	for i := range features {
		features[i] = i
	}
	if p.maxFeature > 0 && p.maxFeature < nf {
		p.rng.Shuffle(nf, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:p.maxFeature]
	}

	type pair struct {
		v float64
		y float64
	}
	bestGain := 0.0
	base := sse(y, idx)

	pairs := make([]pair, 0, len(idx))
	for _, f := range features {
		pairs = pairs[:0]
		for _, i := range idx {
			v := X[i][f]
			if math.IsNaN(v) {
				v = math.Inf(-1)
			}
			pairs = append(pairs, pair{v: v, y: y[i]})
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		// prefix sums over the sorted order
		n := len(pairs)
		sumL, sqL := 0.0, 0.0
		sumT, sqT := 0.0, 0.0
		for _, pr := range pairs {
			sumT += pr.y
			sqT += pr.y * pr.y
		}
		for k := 0; k < n-1; k++ {
			sumL += pairs[k].y
			sqL += pairs[k].y * pairs[k].y
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			nl := float64(k + 1)
			nr := float64(n - k - 1)
			if k+1 < p.minLeaf || n-k-1 < p.minLeaf {
				continue
			}
			sseL := sqL - sumL*sumL/nl
			sumR := sumT - sumL
			sseR := (sqT - sqL) - sumR*sumR/nr
			gain := base - sseL - sseR
			if gain > bestGain {
				bestGain = gain
				feature = f
				threshold = (pairs[k].v + pairs[k+1].v) / 2
				if math.IsInf(threshold, -1) {
					threshold = pairs[k+1].v
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func sse(y []float64, idx []int) float64 {
	m := meanAt(y, idx)
	s := 0.0
	for _, i := range idx {
		d := y[i] - m
		s += d * d
	}
	return s
}
