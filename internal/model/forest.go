package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
)

// #region forest
// Forest is a random forest of CART trees. With WarmStart set a refit keeps
// the fitted trees and only grows new ones up to NEstimators.
type Forest struct {
	Params config.ForestParams
	// Seed drives every tree; drawn once when RandomState is unset.
	Seed      int64
	Trees     []Tree
	Classes   []float64
	NFeatures int
}

// NewForest returns an unfitted forest.
func NewForest(p config.ForestParams) *Forest {
	return &Forest{Params: p}
}

// IncrementEstimators raises the target tree count by one.
func (f *Forest) IncrementEstimators() { f.Params.NEstimators++ }

// Fit grows trees on X and y. Labels may be any finite numbers.
func (f *Forest) Fit(X mat.Matrix, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	if f.Params.NEstimators < 1 {
		return fmt.Errorf("forest: n_estimators must be positive, got %d", f.Params.NEstimators)
	}
	rows := denseRows(X)
	nFeat := len(rows[0])

	if !f.Params.WarmStart || len(f.Trees) == 0 || f.NFeatures != nFeat {
		f.Trees = nil
		f.Classes = nil
		if f.Params.RandomState != nil {
			f.Seed = *f.Params.RandomState
		} else {
			f.Seed = time.Now().UnixNano()
		}
	}
	if len(f.Trees) > f.Params.NEstimators {
		return fmt.Errorf("forest: n_estimators=%d is below the %d trees already fitted under warm start",
			f.Params.NEstimators, len(f.Trees))
	}
	f.NFeatures = nFeat

	classes, cls, err := encodeClasses(y)
	if err != nil {
		return err
	}
	f.Classes = mergeClasses(f.Classes, classes)

	grow := f.Params.NEstimators - len(f.Trees)
	if grow == 0 {
		slog.Warn("warm start without more estimators fits no new trees", "n_estimators", f.Params.NEstimators)
		return nil
	}

	// Seeds are drawn in sequence so tree i always gets the same seed,
	// regardless of warm-start history or worker count.
	seeds := rand.New(rand.NewSource(f.Seed))
	for i := 0; i < len(f.Trees); i++ {
		seeds.Int63()
	}
	treeSeeds := make([]int64, grow)
	for i := range treeSeeds {
		treeSeeds[i] = seeds.Int63()
	}

	tp := f.treeParams(len(rows), nFeat)
	base := baseWeights(f.Params.ClassWeight, cls, classes)
	minWeightFrac := f.Params.MinWeightFractionLeaf

	trees := make([]Tree, grow)
	var g errgroup.Group
	g.SetLimit(workers(f.Params.NJobs))
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(treeSeeds[i]))
			w := f.sampleWeights(rng, base, cls, len(classes))
			p := tp
			p.minWeightLeaf = minWeightFrac * floats.Sum(w)
			trees[i] = fitTree(p, rows, cls, w, classes, rng)
			if f.Params.Verbose > 0 {
				slog.Info("tree fitted", "tree", len(f.Trees)+i+1, "of", f.Params.NEstimators, "nodes", len(trees[i].Nodes))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Trees = append(f.Trees, trees...)
	return nil
}

// Predict returns the class with the highest mean probability over all trees.
func (f *Forest) Predict(X mat.Matrix) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkPredict(X, f.NFeatures); err != nil {
		return nil, err
	}
	rows := denseRows(X)
	pos := make(map[float64]int, len(f.Classes))
	for i, c := range f.Classes {
		pos[c] = i
	}

	out := make([]float64, len(rows))
	var g errgroup.Group
	g.SetLimit(workers(f.Params.NJobs))
	for r := range rows {
		g.Go(func() error {
			acc := make([]float64, len(f.Classes))
			for _, t := range f.Trees {
				for k, p := range t.proba(rows[r]) {
					acc[pos[t.Classes[k]]] += p
				}
			}
			best := 0
			for k := range acc {
				if acc[k] > acc[best] {
					best = k
				}
			}
			out[r] = f.Classes[best]
			return nil
		})
	}
	return out, g.Wait()
}

func (f *Forest) treeParams(n, nFeat int) treeParams {
	p := treeParams{
		criterion:           f.Params.Criterion,
		minSamplesSplit:     f.Params.MinSamplesSplit.Resolve(n),
		minSamplesLeaf:      f.Params.MinSamplesLeaf.Resolve(n),
		maxFeatures:         f.Params.MaxFeatures.Resolve(nFeat),
		minImpurityDecrease: f.Params.MinImpurityDecrease,
	}
	if f.Params.MaxDepth != nil {
		p.maxDepth = *f.Params.MaxDepth
	}
	if f.Params.MinImpuritySplit != nil {
		p.minImpuritySplit = *f.Params.MinImpuritySplit
	}
	if p.minSamplesSplit < 2 {
		p.minSamplesSplit = 2
	}
	if p.minSamplesLeaf < 1 {
		p.minSamplesLeaf = 1
	}
	return p
}

// sampleWeights combines the bootstrap draw with the class weights.
func (f *Forest) sampleWeights(rng *rand.Rand, base []float64, cls []int, nClass int) []float64 {
	n := len(cls)
	w := make([]float64, n)
	if !f.Params.Bootstrap {
		copy(w, base)
		return w
	}
	for i := 0; i < n; i++ {
		w[rng.Intn(n)]++
	}
	if f.Params.ClassWeight.Mode == config.WeightBalancedSubsample {
		counts := make([]float64, nClass)
		for i, c := range w {
			counts[cls[i]] += c
		}
		for i := range w {
			if w[i] > 0 {
				w[i] *= balanced(n, nClass, counts[cls[i]])
			}
		}
		return w
	}
	for i := range w {
		w[i] *= base[i]
	}
	return w
}

// #endregion forest

// #region forest-helpers
// baseWeights returns the per-sample class weight.
func baseWeights(cw config.ClassWeight, cls []int, classes []float64) []float64 {
	w := make([]float64, len(cls))
	for i := range w {
		w[i] = 1
	}
	switch cw.Mode {
	case config.WeightBalanced, config.WeightBalancedSubsample:
		counts := make([]float64, len(classes))
		for _, c := range cls {
			counts[c]++
		}
		for i, c := range cls {
			w[i] = balanced(len(cls), len(classes), counts[c])
		}
	case config.WeightExplicit:
		for i, c := range cls {
			w[i] = cw.Weight(classes[c])
		}
	}
	return w
}

func balanced(n, nClass int, count float64) float64 {
	if count == 0 {
		return 0
	}
	return float64(n) / (float64(nClass) * count)
}

// encodeClasses returns the sorted distinct labels and every label's index.
func encodeClasses(y []float64) ([]float64, []int, error) {
	seen := make(map[float64]bool)
	var classes []float64
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("label %d is not finite", i)
		}
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	pos := make(map[float64]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	cls := make([]int, len(y))
	for i, v := range y {
		cls[i] = pos[v]
	}
	return classes, cls, nil
}

func mergeClasses(a, b []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, s := range [][]float64{a, b} {
		for _, c := range s {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Float64s(out)
	return out
}

// workers maps an n_jobs value to a worker count: nil is 1, negative counts
// back from the number of CPUs.
func workers(nJobs *int) int {
	if nJobs == nil || *nJobs == 0 {
		return 1
	}
	if *nJobs < 0 {
		n := runtime.NumCPU() + 1 + *nJobs
		if n < 1 {
			n = 1
		}
		return n
	}
	return *nJobs
}

// #endregion forest-helpers

// #region forest-codec
// forestState has Forest's fields without its methods, so gob encodes the
// fields instead of calling MarshalBinary again.
type forestState Forest

func (f *Forest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*forestState)(f)); err != nil {
		return nil, fmt.Errorf("encode forest: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Forest) UnmarshalBinary(data []byte) error {
	var out forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return fmt.Errorf("decode forest: %w", err)
	}
	*f = Forest(out)
	return nil
}

// #endregion forest-codec
