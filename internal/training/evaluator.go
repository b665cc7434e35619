// Package training fits a classifier family on a feature table with a
// holdout split and optional k-fold cross-validation.
package training

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/artifact"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/eval"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/logging"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// #region evaluator
// Evaluator trains and scores one classifier per Run call.
type Evaluator struct {
	Sink      logging.Sink
	Persister Persister
	// Gate is optional; a failing gate is logged, not returned.
	Gate   *eval.Harness
	Logger *slog.Logger
}

// NewEvaluator returns an evaluator saving artifacts to disk with the
// default quality gate.
func NewEvaluator(sink logging.Sink, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		Sink:      sink,
		Persister: artifact.FileStore{},
		Gate:      eval.NewHarness(eval.DefaultConfig()),
		Logger:    logger,
	}
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// #endregion evaluator

// #region run
// Run splits the rows, fits a classifier from factory, records the metrics
// to the sink and persists the fitted model. Every input check runs before
// the factory is used.
func (e *Evaluator) Run(factory model.Factory, features *table.Table, labels *table.Column, cfg Config) (artifact.Artifact, Run, error) {
	X, y, err := dataset(features, labels)
	if err != nil {
		return artifact.Artifact{}, Run{}, err
	}
	n := len(y)

	if !(cfg.TestFraction > 0 && cfg.TestFraction < 1) {
		return artifact.Artifact{}, Run{}, fmt.Errorf("%w: test fraction %g is outside (0, 1)", ErrDataset, cfg.TestFraction)
	}
	nTest := int(math.Ceil(cfg.TestFraction * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return artifact.Artifact{}, Run{}, fmt.Errorf("%w: %d rows leave %d for training and %d for testing",
			ErrDataset, n, nTrain, nTest)
	}

	var folds []Fold
	if cfg.Folds != 0 {
		if folds, err = KFold(nTrain, cfg.Folds); err != nil {
			return artifact.Artifact{}, Run{}, err
		}
	}

	perm := rand.New(rand.NewSource(cfg.Seed)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]
	trainX, trainY := subset(X, y, trainIdx)
	testX, testY := subset(X, y, testIdx)

	m, err := factory.New()
	if err != nil {
		return artifact.Artifact{}, Run{}, fmt.Errorf("new %s classifier: %w", factory.Family, err)
	}
	if c, ok := m.(io.Closer); ok {
		defer c.Close()
	}

	run := Run{Folds: len(folds), TrainRows: nTrain, TestRows: nTest}
	log := e.logger()
	log.Info("training started", "family", factory.Family, "rows", n, "train", nTrain, "test", nTest, "folds", len(folds))

	if len(folds) > 0 {
		for i, f := range folds {
			acc, loss, err := fitFold(m, trainX, trainY, f)
			if err != nil {
				return artifact.Artifact{}, Run{}, fmt.Errorf("fold %d: %w", i+1, err)
			}
			run.TrainAccuracy = append(run.TrainAccuracy, acc)
			run.TrainLoss = append(run.TrainLoss, loss)
			log.Info("fold scored", "fold", i+1, "of", len(folds), "accuracy", acc, "loss", loss)
		}
	} else {
		if err := m.Fit(trainX, trainY); err != nil {
			return artifact.Artifact{}, Run{}, fmt.Errorf("fit: %w", err)
		}
		acc, loss, err := score(m, trainX, trainY)
		if err != nil {
			return artifact.Artifact{}, Run{}, fmt.Errorf("score train: %w", err)
		}
		run.TrainAccuracy = []float64{acc}
		run.TrainLoss = []float64{loss}
	}

	if run.TestAccuracy, run.TestLoss, err = score(m, testX, testY); err != nil {
		return artifact.Artifact{}, Run{}, fmt.Errorf("score test: %w", err)
	}
	e.check(&run)

	art, err := artifact.New(factory.Family, cfg.ModelName, factory.Params, m)
	if err != nil {
		return artifact.Artifact{}, Run{}, err
	}
	path := cfg.OutputPath
	if path == "" {
		path = cfg.ModelName
	}
	if e.Persister != nil {
		if err := e.Persister.Save(path, art); err != nil {
			return artifact.Artifact{}, Run{}, fmt.Errorf("persist model: %w", err)
		}
	}
	if err := e.emit(cfg, run); err != nil {
		return art, run, fmt.Errorf("log metrics: %w", err)
	}
	return art, run, nil
}

// #endregion run

// #region run-helpers
// fitFold fits on every training row outside f, grows the ensemble by one
// estimator and scores the validation range.
func fitFold(m model.Classifier, X *mat.Dense, y []float64, f Fold) (float64, float64, error) {
	n, _ := X.Dims()
	idx := make([]int, 0, n-f.Len())
	for i := 0; i < n; i++ {
		if i < f.Start || i >= f.End {
			idx = append(idx, i)
		}
	}
	foldX, foldY := subset(X, y, idx)
	if err := m.Fit(foldX, foldY); err != nil {
		return 0, 0, fmt.Errorf("fit: %w", err)
	}
	if g, ok := m.(model.GrowableEnsemble); ok {
		g.IncrementEstimators()
	}

	valIdx := make([]int, 0, f.Len())
	for i := f.Start; i < f.End; i++ {
		valIdx = append(valIdx, i)
	}
	valX, valY := subset(X, y, valIdx)
	return score(m, valX, valY)
}

func score(m model.Classifier, X mat.Matrix, y []float64) (float64, float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, 0, fmt.Errorf("predict: %w", err)
	}
	acc, err := eval.Accuracy(y, pred)
	if err != nil {
		return 0, 0, err
	}
	loss, err := eval.MSE(y, pred)
	if err != nil {
		return 0, 0, err
	}
	return acc, loss, nil
}

func (e *Evaluator) check(run *Run) {
	log := e.logger()
	if e.Gate != nil {
		run.Gate = e.Gate.Run(run.TestAccuracy, run.TestLoss)
		if !run.Gate.Passed {
			log.Warn("quality gate failed", "reason", run.Gate.Reason)
		}
	}
	if run.Folds == 0 && run.TrainAccuracy[0] < run.TestAccuracy {
		log.Warn("train accuracy below test accuracy", "train", run.TrainAccuracy[0], "test", run.TestAccuracy)
	}
}

func (e *Evaluator) emit(cfg Config, run Run) error {
	sink := e.Sink
	if sink == nil {
		sink = logging.Discard{}
	}
	if err := sink.LogParam("model", cfg.ModelName); err != nil {
		return err
	}
	if run.Folds > 0 {
		if err := sink.LogParam("folds", strconv.Itoa(run.Folds)); err != nil {
			return err
		}
		if err := sink.LogSequence("train_acc", run.TrainAccuracy); err != nil {
			return err
		}
		if err := sink.LogSequence("train_loss", run.TrainLoss); err != nil {
			return err
		}
	} else {
		if err := sink.LogScalar("train_acc", run.TrainAccuracy[0]); err != nil {
			return err
		}
		if err := sink.LogScalar("train_loss", run.TrainLoss[0]); err != nil {
			return err
		}
	}
	if err := sink.LogScalar("test_acc", run.TestAccuracy); err != nil {
		return err
	}
	return sink.LogScalar("test_loss", run.TestLoss)
}

// #endregion run-helpers
