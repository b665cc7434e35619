package training

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/artifact"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/eval"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// #region fakes
// countingClassifier predicts the majority label of its last fit.
type countingClassifier struct {
	fits       int
	increments int
	fitRows    []int
	majority   float64
}

func (c *countingClassifier) Fit(X mat.Matrix, y []float64) error {
	c.fits++
	r, _ := X.Dims()
	c.fitRows = append(c.fitRows, r)
	ones := 0
	for _, v := range y {
		if v == 1 {
			ones++
		}
	}
	c.majority = 0
	if 2*ones > len(y) {
		c.majority = 1
	}
	return nil
}

func (c *countingClassifier) Predict(X mat.Matrix) ([]float64, error) {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = c.majority
	}
	return out, nil
}

func (c *countingClassifier) IncrementEstimators() { c.increments++ }

type countingFactory struct {
	calls int
	last  *countingClassifier
}

func (f *countingFactory) factory() model.Factory {
	return model.Factory{
		Family: "counting",
		Params: map[string]int{"n_estimators": 1},
		New: func() (model.Classifier, error) {
			f.calls++
			f.last = &countingClassifier{}
			return f.last, nil
		},
	}
}

type recordingSink struct {
	params    map[string]string
	scalars   map[string]float64
	sequences map[string][]float64
	order     []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		params:    map[string]string{},
		scalars:   map[string]float64{},
		sequences: map[string][]float64{},
	}
}

func (r *recordingSink) LogParam(key, value string) error {
	r.params[key] = value
	r.order = append(r.order, key)
	return nil
}

func (r *recordingSink) LogScalar(key string, v float64) error {
	r.scalars[key] = v
	r.order = append(r.order, key)
	return nil
}

func (r *recordingSink) LogSequence(key string, vs []float64) error {
	r.sequences[key] = vs
	r.order = append(r.order, key)
	return nil
}

type recordingPersister struct {
	paths []string
	err   error
}

func (p *recordingPersister) Save(path string, _ artifact.Artifact) error {
	p.paths = append(p.paths, path)
	return p.err
}

// #endregion fakes

// #region helpers
func dataTable(t *testing.T, n int) (*table.Table, *table.Column) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	x0 := table.Column{Name: "x0"}
	x1 := table.Column{Name: "x1"}
	label := table.Column{Name: "is_bad"}
	for i := 0; i < n; i++ {
		y := float64(i % 2)
		v := 0.4 * rng.Float64()
		if y == 1 {
			v += 0.6
		}
		x0.Values = append(x0.Values, table.Number(v))
		x1.Values = append(x1.Values, table.Number(rng.Float64()))
		label.Values = append(label.Values, table.Number(y))
	}
	features, err := table.New(x0, x1)
	require.NoError(t, err)
	return features, &label
}

func newTestEvaluator(sink *recordingSink, p *recordingPersister) *Evaluator {
	return &Evaluator{Sink: sink, Persister: p, Gate: eval.NewHarness(eval.DefaultConfig())}
}

// #endregion helpers

// #region fold-tests
func TestKFold(t *testing.T) {
	tests := []struct {
		n, k  int
		sizes []int
	}{
		{100, 5, []int{20, 20, 20, 20, 20}},
		{10, 3, []int{4, 3, 3}},
		{7, 7, []int{1, 1, 1, 1, 1, 1, 1}},
		{11, 4, []int{3, 3, 3, 2}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.k), func(t *testing.T) {
			folds, err := KFold(tt.n, tt.k)
			require.NoError(t, err)
			require.Len(t, folds, tt.k)
			start := 0
			for i, f := range folds {
				assert.Equal(t, start, f.Start)
				assert.Equal(t, tt.sizes[i], f.Len())
				start = f.End
			}
			assert.Equal(t, tt.n, start)
		})
	}

	for _, k := range []int{-1, 0, 1, 11} {
		_, err := KFold(10, k)
		assert.True(t, errors.Is(err, ErrInvalidFoldCount), "k=%d", k)
	}
}

// #endregion fold-tests

// #region run-tests
func TestRun_FoldMode(t *testing.T) {
	features, labels := dataTable(t, 125)
	cf := &countingFactory{}
	sink := newRecordingSink()
	p := &recordingPersister{}

	_, run, err := newTestEvaluator(sink, p).Run(cf.factory(), features, labels,
		Config{TestFraction: 0.2, Folds: 5, Seed: 3, ModelName: "rf_model.sav", OutputPath: "proj/rf_model.sav"})
	require.NoError(t, err)

	assert.Equal(t, 1, cf.calls)
	assert.Equal(t, 5, cf.last.fits)
	assert.Equal(t, 5, cf.last.increments)
	assert.Equal(t, []int{80, 80, 80, 80, 80}, cf.last.fitRows)
	assert.Equal(t, 100, run.TrainRows)
	assert.Equal(t, 25, run.TestRows)

	assert.Len(t, sink.sequences["train_acc"], 5)
	assert.Len(t, sink.sequences["train_loss"], 5)
	assert.Contains(t, sink.scalars, "test_acc")
	assert.Contains(t, sink.scalars, "test_loss")
	assert.NotContains(t, sink.scalars, "train_acc")
	assert.Equal(t, "rf_model.sav", sink.params["model"])
	assert.Equal(t, "5", sink.params["folds"])
	assert.Equal(t, []string{"model", "folds", "train_acc", "train_loss", "test_acc", "test_loss"}, sink.order)
	assert.Equal(t, []string{"proj/rf_model.sav"}, p.paths)
}

func TestRun_HoldoutFitsOnce(t *testing.T) {
	features, labels := dataTable(t, 50)
	cf := &countingFactory{}
	sink := newRecordingSink()

	_, run, err := newTestEvaluator(sink, &recordingPersister{}).Run(cf.factory(), features, labels,
		Config{TestFraction: 0.2, ModelName: "m.sav"})
	require.NoError(t, err)

	assert.Equal(t, 1, cf.last.fits)
	assert.Equal(t, 0, cf.last.increments)
	assert.Equal(t, []int{40}, cf.last.fitRows)
	assert.Equal(t, 0, run.Folds)
	assert.Contains(t, sink.scalars, "train_acc")
	assert.Contains(t, sink.scalars, "train_loss")
	assert.Empty(t, sink.sequences)
	assert.NotContains(t, sink.params, "folds")
}

func TestRun_TestRowsRoundUp(t *testing.T) {
	features, labels := dataTable(t, 11)
	cf := &countingFactory{}
	_, run, err := newTestEvaluator(newRecordingSink(), &recordingPersister{}).Run(cf.factory(), features, labels,
		Config{TestFraction: 0.2, ModelName: "m.sav"})
	require.NoError(t, err)
	assert.Equal(t, 3, run.TestRows)
	assert.Equal(t, 8, run.TrainRows)
}

func TestRun_EagerChecks(t *testing.T) {
	features, labels := dataTable(t, 20)
	empty, err := table.New(table.Column{Name: "x0"})
	require.NoError(t, err)
	noFeatures, err := table.New()
	require.NoError(t, err)
	short := &table.Column{Name: "is_bad", Values: labels.Values[:5]}
	text, err := table.New(table.Column{Name: "x0", Values: append([]table.Value{table.Text("high")}, labels.Values[1:]...)})
	require.NoError(t, err)

	tests := []struct {
		name     string
		features *table.Table
		labels   *table.Column
		cfg      Config
		want     error
	}{
		{"no rows", empty, &table.Column{Name: "is_bad"}, Config{TestFraction: 0.2}, ErrDataset},
		{"nil features", nil, labels, Config{TestFraction: 0.2}, ErrDataset},
		{"no feature columns", noFeatures, labels, Config{TestFraction: 0.2}, ErrDataset},
		{"no labels", features, nil, Config{TestFraction: 0.2}, ErrDataset},
		{"label length", features, short, Config{TestFraction: 0.2}, ErrDataset},
		{"text feature", text, labels, Config{TestFraction: 0.2}, ErrDataset},
		{"zero test fraction", features, labels, Config{TestFraction: 0}, ErrDataset},
		{"full test fraction", features, labels, Config{TestFraction: 1}, ErrDataset},
		{"too many folds", features, labels, Config{TestFraction: 0.2, Folds: 17}, ErrInvalidFoldCount},
		{"one fold", features, labels, Config{TestFraction: 0.2, Folds: 1}, ErrInvalidFoldCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf := &countingFactory{}
			_, _, err := newTestEvaluator(newRecordingSink(), &recordingPersister{}).Run(cf.factory(), tt.features, tt.labels, tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.Equal(t, 0, cf.calls, "factory must not be used")
		})
	}
}

func TestRun_TextFeatureNamesCell(t *testing.T) {
	_, labels := dataTable(t, 3)
	features, err := table.New(table.Column{Name: "x0", Values: []table.Value{table.Number(1), table.Text("high"), table.Number(2)}})
	require.NoError(t, err)

	_, _, err = newTestEvaluator(newRecordingSink(), &recordingPersister{}).Run((&countingFactory{}).factory(), features, labels,
		Config{TestFraction: 0.3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row 1 column "x0"`)
}

func TestRun_PersistFailureSkipsMetrics(t *testing.T) {
	features, labels := dataTable(t, 20)
	sink := newRecordingSink()
	boom := errors.New("disk full")

	_, _, err := newTestEvaluator(sink, &recordingPersister{err: boom}).Run((&countingFactory{}).factory(), features, labels,
		Config{TestFraction: 0.2, ModelName: "m.sav"})
	assert.True(t, errors.Is(err, boom))
	assert.Empty(t, sink.order)
}

func TestRun_SeedFixesSplit(t *testing.T) {
	features, labels := dataTable(t, 40)
	cfg := Config{TestFraction: 0.25, Folds: 3, Seed: 9, ModelName: "rf_model.sav"}
	p, err := config.ParseForest(config.Raw{"n_estimators": "2", "random_state": "4"})
	require.NoError(t, err)

	_, a, err := newTestEvaluator(newRecordingSink(), &recordingPersister{}).Run(model.ForestFactory(p), features, labels, cfg)
	require.NoError(t, err)
	_, b, err := newTestEvaluator(newRecordingSink(), &recordingPersister{}).Run(model.ForestFactory(p), features, labels, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_ForestGrowsPerFold(t *testing.T) {
	features, labels := dataTable(t, 120)
	p, err := config.ParseForest(config.Raw{"n_estimators": "2", "random_state": "1", "max_features": "None"})
	require.NoError(t, err)

	art, run, err := newTestEvaluator(newRecordingSink(), &recordingPersister{}).Run(model.ForestFactory(p), features, labels,
		Config{TestFraction: 0.2, Folds: 5, Seed: 2, ModelName: "rf_model.sav"})
	require.NoError(t, err)

	f := art.Model.(*model.Forest)
	assert.Len(t, f.Trees, 6, "one tree added per fold after the first")
	assert.Equal(t, 7, f.Params.NEstimators)
	assert.Equal(t, model.FamilyForest, art.Family)
	assert.Equal(t, 1.0, run.TestAccuracy)
	assert.True(t, run.Gate.Passed)
}

// #endregion run-tests
