package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
)

// Supported boosting settings.
const (
	ObjectiveLogistic = "binary:logistic"
	BoosterTree       = "gbtree"
)

// #region boost
// Boost is a gradient-boosted ensemble of regression trees fitted on the
// second-order expansion of the logistic loss. Labels must be 0 or 1.
// Every Fit starts over with the current NEstimators.
type Boost struct {
	Params     config.BoostParams
	Trees      [][]Node
	BaseMargin float64
	NFeatures  int
}

// NewBoost returns an unfitted booster.
func NewBoost(p config.BoostParams) *Boost {
	return &Boost{Params: p}
}

// IncrementEstimators adds one boosting round to the next fit.
func (b *Boost) IncrementEstimators() { b.Params.NEstimators++ }

func (b *Boost) validate() error {
	p := b.Params
	switch {
	case p.Objective != ObjectiveLogistic:
		return fmt.Errorf("boost: unsupported objective %q", p.Objective)
	case p.Booster != BoosterTree:
		return fmt.Errorf("boost: unsupported booster %q", p.Booster)
	case p.NEstimators < 1:
		return fmt.Errorf("boost: n_estimators must be positive, got %d", p.NEstimators)
	case p.BaseScore <= 0 || p.BaseScore >= 1:
		return fmt.Errorf("boost: base_score must be in (0, 1), got %g", p.BaseScore)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("boost: subsample must be in (0, 1], got %g", p.Subsample)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return fmt.Errorf("boost: colsample_bytree must be in (0, 1], got %g", p.ColsampleByTree)
	case p.ColsampleByLevel <= 0 || p.ColsampleByLevel > 1:
		return fmt.Errorf("boost: colsample_bylevel must be in (0, 1], got %g", p.ColsampleByLevel)
	}
	return nil
}

// Fit trains NEstimators rounds from scratch.
func (b *Boost) Fit(X mat.Matrix, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	if err := b.validate(); err != nil {
		return err
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("boost: label %d is %g, want 0 or 1", i, v)
		}
	}

	rows := b.rows(X)
	n, nFeat := len(rows), len(rows[0])
	b.NFeatures = nFeat
	b.BaseMargin = math.Log(b.Params.BaseScore / (1 - b.Params.BaseScore))
	b.Trees = make([][]Node, 0, b.Params.NEstimators)

	seed := b.Params.RandomState
	if b.Params.Seed != nil {
		seed = *b.Params.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = b.BaseMargin
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	for round := 0; round < b.Params.NEstimators; round++ {
		for i := range rows {
			p := sigmoid(margin[i])
			w := 1.0
			if y[i] == 1 {
				w = b.Params.ScalePosWeight
			}
			grad[i] = (p - y[i]) * w
			hess[i] = math.Max(p*(1-p), 1e-16) * w
		}

		idx := make([]int, 0, n)
		for i := 0; i < n; i++ {
			if b.Params.Subsample >= 1 || rng.Float64() < b.Params.Subsample {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}

		g := &regGrower{
			b:     b,
			rows:  rows,
			grad:  grad,
			hess:  hess,
			rng:   rng,
			cols:  sampleCols(rng, allCols(nFeat), b.Params.ColsampleByTree),
			level: make(map[int][]int),
		}
		if _, err := g.grow(idx, 0); err != nil {
			return err
		}
		b.Trees = append(b.Trees, g.nodes)

		for i := range rows {
			margin[i] += leafOf(g.nodes, rows[i]).Value[0]
		}
		if !b.Params.Silent {
			slog.Info("boosting round", "round", round+1, "of", b.Params.NEstimators, "nodes", len(g.nodes))
		}
	}
	return nil
}

// Predict returns 1 where the predicted probability exceeds one half.
func (b *Boost) Predict(X mat.Matrix) ([]float64, error) {
	if b.NFeatures == 0 {
		return nil, ErrNotFitted
	}
	if err := checkPredict(X, b.NFeatures); err != nil {
		return nil, err
	}
	rows := b.rows(X)
	out := make([]float64, len(rows))
	for i, x := range rows {
		m := b.BaseMargin
		for _, t := range b.Trees {
			m += leafOf(t, x).Value[0]
		}
		if sigmoid(m) > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

// rows copies X, turning cells equal to the missing marker into NaN.
func (b *Boost) rows(X mat.Matrix) [][]float64 {
	rows := denseRows(X)
	if b.Params.Missing == nil {
		return rows
	}
	m := *b.Params.Missing
	for _, r := range rows {
		for j, v := range r {
			if v == m {
				r[j] = math.NaN()
			}
		}
	}
	return rows
}

func (b *Boost) workers() int {
	if b.Params.NThread != nil {
		return workers(b.Params.NThread)
	}
	return workers(b.Params.NJobs)
}

// #endregion boost

// #region boost-grow
type regGrower struct {
	b     *Boost
	rows  [][]float64
	grad  []float64
	hess  []float64
	rng   *rand.Rand
	cols  []int
	level map[int][]int
	nodes []Node
}

type regSplit struct {
	gain        float64
	feature     int
	threshold   float64
	defaultLeft bool
	left        []int
	right       []int
}

func (g *regGrower) leaf(G, H float64) int {
	p := g.b.Params
	w := -softThreshold(G, p.RegAlpha) / (H + p.RegLambda)
	if p.MaxDeltaStep > 0 {
		w = math.Max(-p.MaxDeltaStep, math.Min(p.MaxDeltaStep, w))
	}
	g.nodes = append(g.nodes, Node{Left: -1, Right: -1, Value: []float64{w * p.LearningRate}})
	return len(g.nodes) - 1
}

func (g *regGrower) grow(idx []int, depth int) (int, error) {
	var G, H float64
	for _, i := range idx {
		G += g.grad[i]
		H += g.hess[i]
	}
	if (g.b.Params.MaxDepth > 0 && depth >= g.b.Params.MaxDepth) || len(idx) < 2 {
		return g.leaf(G, H), nil
	}

	cols, ok := g.level[depth]
	if !ok {
		cols = sampleCols(g.rng, g.cols, g.b.Params.ColsampleByLevel)
		g.level[depth] = cols
	}

	results := make([]regSplit, len(cols))
	var eg errgroup.Group
	eg.SetLimit(g.b.workers())
	for k, f := range cols {
		eg.Go(func() error {
			results[k] = g.bestSplit(idx, f, G, H)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	best := regSplit{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && (best.feature < 0 || r.gain > best.gain) {
			best = r
		}
	}
	if best.feature < 0 || best.gain <= 0 {
		return g.leaf(G, H), nil
	}

	pos := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: best.feature, Threshold: best.threshold, DefaultLeft: best.defaultLeft})
	left, err := g.grow(best.left, depth+1)
	if err != nil {
		return 0, err
	}
	right, err := g.grow(best.right, depth+1)
	if err != nil {
		return 0, err
	}
	g.nodes[pos].Left = left
	g.nodes[pos].Right = right
	return pos, nil
}

// bestSplit scans one feature, trying the missing rows on either side.
func (g *regGrower) bestSplit(idx []int, f int, G, H float64) regSplit {
	p := g.b.Params
	score := func(gs, hs float64) float64 {
		t := softThreshold(gs, p.RegAlpha)
		return t * t / (hs + p.RegLambda)
	}
	parent := score(G, H)

	valid := make([]int, 0, len(idx))
	var missing []int
	var gMiss, hMiss float64
	for _, i := range idx {
		if math.IsNaN(g.rows[i][f]) {
			missing = append(missing, i)
			gMiss += g.grad[i]
			hMiss += g.hess[i]
			continue
		}
		valid = append(valid, i)
	}
	sort.SliceStable(valid, func(a, c int) bool { return g.rows[valid[a]][f] < g.rows[valid[c]][f] })

	best := regSplit{feature: -1}
	var gl, hl float64
	for s := 1; s < len(valid); s++ {
		prev := valid[s-1]
		gl += g.grad[prev]
		hl += g.hess[prev]
		v0, v1 := g.rows[prev][f], g.rows[valid[s]][f]
		if v0 == v1 {
			continue
		}
		for _, missLeft := range []bool{false, true} {
			GL, HL := gl, hl
			if missLeft {
				GL, HL = gl+gMiss, hl+hMiss
			}
			GR, HR := G-GL, H-HL
			if HL < p.MinChildWeight || HR < p.MinChildWeight {
				continue
			}
			gain := 0.5*(score(GL, HL)+score(GR, HR)-parent) - p.Gamma
			if best.feature < 0 || gain > best.gain {
				best = regSplit{gain: gain, feature: f, threshold: v0/2 + v1/2, defaultLeft: missLeft}
				best.left = append([]int(nil), valid[:s]...)
				best.right = append([]int(nil), valid[s:]...)
				if missLeft {
					best.left = append(best.left, missing...)
				} else {
					best.right = append(best.right, missing...)
				}
			}
		}
	}
	return best
}

// #endregion boost-grow

// #region boost-helpers
func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func softThreshold(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func allCols(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// sampleCols keeps a random share frac of cols, at least one, in ascending order.
func sampleCols(rng *rand.Rand, cols []int, frac float64) []int {
	if frac >= 1 {
		return cols
	}
	k := int(math.Max(1, math.Floor(frac*float64(len(cols)))))
	perm := rng.Perm(len(cols))[:k]
	out := make([]int, k)
	for i, p := range perm {
		out[i] = cols[p]
	}
	sort.Ints(out)
	return out
}

// #endregion boost-helpers

// #region boost-codec
// boostState is Boost without methods, for gob.
type boostState Boost

func (b *Boost) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*boostState)(b)); err != nil {
		return nil, fmt.Errorf("encode boost: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Boost) UnmarshalBinary(data []byte) error {
	var out boostState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return fmt.Errorf("decode boost: %w", err)
	}
	*b = Boost(out)
	return nil
}

// #endregion boost-codec
