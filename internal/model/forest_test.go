package model

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
)

// #region helpers
// separable returns n rows where feature 0 alone decides the label and
// feature 1 is noise.
func separable(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = float64(i % 2)
		x0 := 0.4 * rng.Float64()
		if y[i] == 1 {
			x0 += 0.6
		}
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.Float64())
	}
	return X, y
}

func accuracy(t *testing.T, want, got []float64) float64 {
	t.Helper()
	require.Len(t, got, len(want))
	hits := 0
	for i := range want {
		if want[i] == got[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

func forestParams(t *testing.T, raw config.Raw) config.ForestParams {
	t.Helper()
	p, err := config.ParseForest(raw)
	require.NoError(t, err)
	return p
}

// #endregion helpers

// #region forest-tests
func TestForest_LearnsSeparableData(t *testing.T) {
	X, y := separable(60, 1)
	f := NewForest(forestParams(t, config.Raw{"n_estimators": "5", "random_state": "3", "max_features": "None"}))
	require.NoError(t, f.Fit(X, y))
	assert.Len(t, f.Trees, 5)
	assert.Equal(t, []float64{0, 1}, f.Classes)

	testX, testY := separable(40, 2)
	pred, err := f.Predict(testX)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(t, testY, pred))
}

func TestForest_WarmStartGrowsOneTree(t *testing.T) {
	X, y := separable(50, 4)
	f := NewForest(forestParams(t, config.Raw{"n_estimators": "2", "random_state": "7"}))
	require.NoError(t, f.Fit(X, y))
	before := append([]Tree(nil), f.Trees...)

	f.IncrementEstimators()
	require.NoError(t, f.Fit(X, y))
	require.Len(t, f.Trees, 3)
	assert.Equal(t, before, f.Trees[:2], "warm start keeps fitted trees")

	cold := NewForest(forestParams(t, config.Raw{"n_estimators": "3", "random_state": "7"}))
	require.NoError(t, cold.Fit(X, y))
	assert.Equal(t, cold.Trees, f.Trees, "tree seeds do not depend on growth history")
}

func TestForest_NoWarmStartRefits(t *testing.T) {
	X, y := separable(50, 4)
	f := NewForest(forestParams(t, config.Raw{"n_estimators": "2", "random_state": "7", "warm_start": "False"}))
	require.NoError(t, f.Fit(X, y))
	f.IncrementEstimators()
	require.NoError(t, f.Fit(X, y))
	assert.Len(t, f.Trees, 3)
}

func TestForest_WarmStartWithoutGrowth(t *testing.T) {
	X, y := separable(30, 5)
	f := NewForest(forestParams(t, config.Raw{"n_estimators": "2", "random_state": "1"}))
	require.NoError(t, f.Fit(X, y))
	require.NoError(t, f.Fit(X, y))
	assert.Len(t, f.Trees, 2)

	f.Params.NEstimators = 1
	assert.Error(t, f.Fit(X, y))
}

func TestForest_ParallelMatchesSerial(t *testing.T) {
	X, y := separable(80, 9)
	serial := NewForest(forestParams(t, config.Raw{"n_estimators": "6", "random_state": "11"}))
	parallel := NewForest(forestParams(t, config.Raw{"n_estimators": "6", "random_state": "11", "n_jobs": "4"}))
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, parallel.Fit(X, y))
	assert.Equal(t, serial.Trees, parallel.Trees)
}

func TestForest_PredictErrors(t *testing.T) {
	f := NewForest(forestParams(t, config.Raw{"n_estimators": "2"}))
	_, err := f.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, ErrNotFitted))

	X, y := separable(20, 1)
	require.NoError(t, f.Fit(X, y))
	_, err = f.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, ErrShape))

	err = f.Fit(X, y[:5])
	assert.True(t, errors.Is(err, ErrShape))
}

func TestBaseWeights(t *testing.T) {
	cls := []int{0, 0, 0, 1}
	classes := []float64{0, 1}

	w := baseWeights(config.ClassWeight{}, cls, classes)
	assert.Equal(t, []float64{1, 1, 1, 1}, w)

	w = baseWeights(config.ClassWeight{Mode: config.WeightBalanced}, cls, classes)
	assert.InDeltaSlice(t, []float64{4.0 / 6, 4.0 / 6, 4.0 / 6, 2}, w, 1e-12)

	cw, err := config.ParseClassWeight("class_weight", `{"1": 3}`)
	require.NoError(t, err)
	w = baseWeights(cw, cls, classes)
	assert.Equal(t, []float64{1, 1, 1, 3}, w)
}

func TestWorkers(t *testing.T) {
	one, four, minusOne := 1, 4, -1
	assert.Equal(t, 1, workers(nil))
	assert.Equal(t, 1, workers(&one))
	assert.Equal(t, 4, workers(&four))
	assert.GreaterOrEqual(t, workers(&minusOne), 1)
}

func TestForest_MarshalRoundTrip(t *testing.T) {
	X, y := separable(40, 3)
	f := NewForest(forestParams(t, config.Raw{"n_estimators": "3", "random_state": "5"}))
	require.NoError(t, f.Fit(X, y))

	blob, err := f.MarshalBinary()
	require.NoError(t, err)
	restored, err := Decode(FamilyForest, blob)
	require.NoError(t, err)

	want, err := f.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, f.Seed, restored.(*Forest).Seed)
}

func TestDecode_UnknownFamily(t *testing.T) {
	_, err := Decode("svm", nil)
	assert.True(t, errors.Is(err, ErrUnknownFamily))

	_, err = Decode(FamilyForest, []byte("not gob"))
	assert.Error(t, err)
}

// #endregion forest-tests
