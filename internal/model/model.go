// Package model holds the classifier families the trainer can fit. Every
// classifier works on gonum matrices and serializes itself with gob so an
// artifact can be restored without knowing the family up front.
package model

import (
	"encoding"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Family names.
const (
	FamilyForest = "forest"
	FamilyBoost  = "boost"
	FamilyRemote = "remote"
)

var (
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("model is not fitted")
	// ErrShape is returned when inputs disagree on their dimensions.
	ErrShape = errors.New("shape mismatch")
	// ErrUnknownFamily is returned for a family name with no implementation.
	ErrUnknownFamily = errors.New("unknown model family")
)

// #region contracts
// Classifier is the capability the trainer needs from a model.
type Classifier interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
}

// GrowableEnsemble is implemented by ensembles whose estimator count can be
// raised between fits.
type GrowableEnsemble interface {
	IncrementEstimators()
}

// Persistable is a classifier that can be written into an artifact.
type Persistable interface {
	Classifier
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Factory builds fresh classifiers of one family.
type Factory struct {
	Family string
	// Params are the typed hyperparameters, stored with the artifact.
	Params any
	New    func() (Classifier, error)
}

// #endregion contracts

// #region decode
// Decode restores a classifier of the named family from its MarshalBinary form.
func Decode(family string, blob []byte) (Classifier, error) {
	var c Persistable
	switch family {
	case FamilyForest:
		c = &Forest{}
	case FamilyBoost:
		c = &Boost{}
	case FamilyRemote:
		c = &Remote{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	if err := c.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", family, err)
	}
	return c, nil
}

// #endregion decode

// #region helpers
// denseRows copies a matrix into row slices.
func denseRows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = X.At(i, j)
		}
		out[i] = row
	}
	return out
}

func checkFit(X mat.Matrix, y []float64) error {
	if X == nil {
		return fmt.Errorf("%w: nil feature matrix", ErrShape)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("%w: empty feature matrix %dx%d", ErrShape, r, c)
	}
	if r != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShape, r, len(y))
	}
	return nil
}

func checkPredict(X mat.Matrix, nFeatures int) error {
	if X == nil {
		return fmt.Errorf("%w: nil feature matrix", ErrShape)
	}
	if _, c := X.Dims(); c != nFeatures {
		return fmt.Errorf("%w: fitted on %d features, got %d", ErrShape, nFeatures, c)
	}
	return nil
}

// #endregion helpers
