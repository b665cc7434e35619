package model

import (
	"math"
	"math/rand"
	"sort"
)

// #region tree-types
// Node is one node of a fitted tree, stored flat so gob can encode it.
// Leaves have Left == -1. Rows with a NaN feature go left when DefaultLeft
// is set and right otherwise.
type Node struct {
	Feature     int
	Threshold   float64
	Left        int
	Right       int
	DefaultLeft bool
	// Value is the weighted class distribution at a classification leaf, or
	// the single leaf weight of a regression tree.
	Value []float64
}

// Tree is a fitted CART classification tree.
type Tree struct {
	Nodes []Node
	// Classes are the labels the leaf distributions refer to, ascending.
	Classes []float64
}

type treeParams struct {
	criterion           string
	maxDepth            int // 0 is unlimited
	minSamplesSplit     int
	minSamplesLeaf      int
	minWeightLeaf       float64
	maxFeatures         int
	minImpurityDecrease float64
	minImpuritySplit    float64
}

// #endregion tree-types

// #region tree-build
type treeBuilder struct {
	p       treeParams
	X       [][]float64
	cls     []int // class index per sample
	w       []float64
	nClass  int
	rng     *rand.Rand
	total   float64
	nodes   []Node
	feature []int
}

// fitTree grows a tree on the samples with non-zero weight. cls holds the
// class index of every sample into classes.
func fitTree(p treeParams, X [][]float64, cls []int, w []float64, classes []float64, rng *rand.Rand) Tree {
	b := &treeBuilder{p: p, X: X, cls: cls, w: w, nClass: len(classes), rng: rng}
	idx := make([]int, 0, len(X))
	for i, wi := range w {
		if wi > 0 {
			idx = append(idx, i)
			b.total += wi
		}
	}
	b.feature = make([]int, len(X[0]))
	for j := range b.feature {
		b.feature[j] = j
	}
	b.build(idx, 0)
	return Tree{Nodes: b.nodes, Classes: classes}
}

func (b *treeBuilder) counts(idx []int) ([]float64, float64) {
	c := make([]float64, b.nClass)
	sum := 0.0
	for _, i := range idx {
		c[b.cls[i]] += b.w[i]
		sum += b.w[i]
	}
	return c, sum
}

func (b *treeBuilder) impurity(c []float64, sum float64) float64 {
	if sum == 0 {
		return 0
	}
	out := 0.0
	if b.p.criterion == "entropy" {
		for _, v := range c {
			if v > 0 {
				q := v / sum
				out -= q * math.Log2(q)
			}
		}
		return out
	}
	out = 1
	for _, v := range c {
		q := v / sum
		out -= q * q
	}
	return out
}

func (b *treeBuilder) leaf(c []float64) int {
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: c})
	return len(b.nodes) - 1
}

func (b *treeBuilder) build(idx []int, depth int) int {
	c, sum := b.counts(idx)
	imp := b.impurity(c, sum)
	if len(idx) < b.p.minSamplesSplit || len(idx) < 2*b.p.minSamplesLeaf ||
		sum < 2*b.p.minWeightLeaf || imp <= b.p.minImpuritySplit ||
		(b.p.maxDepth > 0 && depth >= b.p.maxDepth) {
		return b.leaf(c)
	}

	sp, ok := b.bestSplit(idx, c, sum, imp)
	if !ok {
		return b.leaf(c)
	}

	pos := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: sp.feature, Threshold: sp.threshold})
	left := b.build(sp.left, depth+1)
	right := b.build(sp.right, depth+1)
	b.nodes[pos].Left = left
	b.nodes[pos].Right = right
	return pos
}

type split struct {
	feature   int
	threshold float64
	left      []int
	right     []int
}

// bestSplit scans a random subset of maxFeatures features. When none of
// them yields a valid split the remaining features are tried as well.
func (b *treeBuilder) bestSplit(idx []int, parent []float64, sum, imp float64) (split, bool) {
	b.rng.Shuffle(len(b.feature), func(i, j int) { b.feature[i], b.feature[j] = b.feature[j], b.feature[i] })

	best := split{feature: -1}
	bestProxy := math.Inf(-1)
	var bestChildImp float64

	order := make([]int, len(idx))
	for k, f := range b.feature {
		if k >= b.p.maxFeatures && best.feature >= 0 {
			break
		}
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return less(b.X[order[a]][f], b.X[order[c]][f]) })

		left := make([]float64, b.nClass)
		wl := 0.0
		for s := 1; s < len(order); s++ {
			prev := order[s-1]
			left[b.cls[prev]] += b.w[prev]
			wl += b.w[prev]

			v0, v1 := b.X[prev][f], b.X[order[s]][f]
			if math.IsNaN(v0) || !(v0 < v1 || math.IsNaN(v1)) {
				continue
			}
			if s < b.p.minSamplesLeaf || len(order)-s < b.p.minSamplesLeaf {
				continue
			}
			wr := sum - wl
			if wl < b.p.minWeightLeaf || wr < b.p.minWeightLeaf {
				continue
			}
			right := make([]float64, b.nClass)
			for k := range right {
				right[k] = parent[k] - left[k]
			}
			il, ir := b.impurity(left, wl), b.impurity(right, wr)
			proxy := -wl*il - wr*ir
			if proxy > bestProxy {
				bestProxy = proxy
				thr := v0/2 + v1/2
				if math.IsNaN(v1) {
					thr = v0
				}
				best = split{feature: f, threshold: thr}
				best.left = append([]int(nil), order[:s]...)
				best.right = append([]int(nil), order[s:]...)
				bestChildImp = (wl*il + wr*ir) / sum
			}
		}
	}
	if best.feature < 0 {
		return split{}, false
	}
	decrease := sum / b.total * (imp - bestChildImp)
	if decrease < b.p.minImpurityDecrease {
		return split{}, false
	}
	return best, true
}

// less orders NaN after every number.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

// #endregion tree-build

// #region tree-predict
// leafValue walks the tree for one row.
func (t Tree) leafValue(x []float64) []float64 {
	return leafOf(t.Nodes, x).Value
}

func leafOf(nodes []Node, x []float64) Node {
	n := 0
	for nodes[n].Left >= 0 {
		nd := nodes[n]
		v := x[nd.Feature]
		switch {
		case math.IsNaN(v):
			if nd.DefaultLeft {
				n = nd.Left
			} else {
				n = nd.Right
			}
		case v <= nd.Threshold:
			n = nd.Left
		default:
			n = nd.Right
		}
	}
	return nodes[n]
}

// proba returns the class probabilities of one row, aligned with t.Classes.
func (t Tree) proba(x []float64) []float64 {
	v := t.leafValue(x)
	out := make([]float64, len(v))
	sum := 0.0
	for _, c := range v {
		sum += c
	}
	if sum == 0 {
		return out
	}
	for i, c := range v {
		out[i] = c / sum
	}
	return out
}

// #endregion tree-predict
