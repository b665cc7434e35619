package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
)

type plainClassifier struct{}

func (plainClassifier) Fit(mat.Matrix, []float64) error { return nil }

func (plainClassifier) Predict(X mat.Matrix) ([]float64, error) {
	r, _ := X.Dims()
	return make([]float64, r), nil
}

func fittedForest(t *testing.T) (*model.Forest, *mat.Dense) {
	t.Helper()
	p, err := config.ParseForest(config.Raw{"n_estimators": "3", "random_state": "1"})
	require.NoError(t, err)
	X := mat.NewDense(6, 1, []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9})
	y := []float64{0, 0, 0, 1, 1, 1}
	f := model.NewForest(p)
	require.NoError(t, f.Fit(X, y))
	return f, X
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "rf_model.sav", ResolvePath("", "rf_model.sav"))
	assert.Equal(t, filepath.Join("proj", "rf_model.sav"), ResolvePath("proj", "rf_model.sav"))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	f, X := fittedForest(t)
	a, err := New(model.FamilyForest, "rf_model.sav", f.Params, f)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "rf_model.sav")
	require.NoError(t, FileStore{}.Save(path, a))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.FamilyForest, got.Family)
	assert.Equal(t, "rf_model.sav", got.Name)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))

	var params map[string]any
	require.NoError(t, json.Unmarshal(got.Params, &params))
	assert.Equal(t, 3.0, params["n_estimators"])

	want, err := f.Predict(X)
	require.NoError(t, err)
	pred, err := got.Model.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, pred)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files remain")
}

func TestSave_Unserializable(t *testing.T) {
	a, err := New("plain", "m.sav", nil, plainClassifier{})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "m.sav")
	require.Error(t, Save(path, a))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.sav"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "junk.sav")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
