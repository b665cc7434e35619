package training

import (
	"errors"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/artifact"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/eval"
)

var (
	// ErrDataset is returned for input data that cannot be trained on.
	ErrDataset = errors.New("invalid dataset")
	// ErrInvalidFoldCount is returned when the fold count does not fit the training rows.
	ErrInvalidFoldCount = errors.New("invalid fold count")
)

// #region config
// Config controls one evaluation.
type Config struct {
	// TestFraction of the rows is held out, rounded up. Must be in (0, 1).
	TestFraction float64
	// Folds enables k-fold cross-validation on the training rows; 0 disables it.
	Folds      int
	Seed       int64
	ModelName  string
	OutputPath string
}

// #endregion config

// #region fold
// Fold is the validation range [Start, End) of one cross-validation fold.
// The training rows of the fold are everything outside it.
type Fold struct {
	Start int
	End   int
}

// Len returns the number of validation rows.
func (f Fold) Len() int { return f.End - f.Start }

// #endregion fold

// #region run
// Run holds the metrics of one evaluation. In fold mode the train slices
// hold one value per fold; in holdout mode exactly one.
type Run struct {
	Folds         int
	TrainAccuracy []float64
	TrainLoss     []float64
	TestAccuracy  float64
	TestLoss      float64
	TrainRows     int
	TestRows      int
	Gate          eval.Result
}

// #endregion run

// Persister stores a fitted artifact.
type Persister interface {
	Save(path string, a artifact.Artifact) error
}
