package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/artifact"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/features"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/logging"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/tracking"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/training"
)

// #region family-options
// FamilyOptions returns the options a family accepts on top of
// config.CommonOptions.
func FamilyOptions(family string) ([]config.Option, error) {
	switch family {
	case model.FamilyForest:
		return config.ForestOptions, nil
	case model.FamilyBoost:
		return config.BoostOptions, nil
	case model.FamilyRemote:
		return config.RemoteOptions, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownFamily, family)
	}
}

// resolveOptions fills defaults and pins every unset seed to a drawn value,
// so the stored options replay the run exactly. The shared seed also seeds
// boost sampling.
func resolveOptions(family string, raw config.Raw, draw func() int64) (config.Raw, error) {
	familyOpts, err := FamilyOptions(family)
	if err != nil {
		return nil, err
	}
	out := raw.WithDefaults(append(append([]config.Option(nil), config.CommonOptions...), familyOpts...))
	pin := func(name string) error {
		v, err := config.ParseOptionalInt64(name, out[name])
		if err != nil {
			return err
		}
		if v == nil {
			out[name] = strconv.FormatInt(draw(), 10)
		}
		return nil
	}
	if err := pin("seed"); err != nil {
		return nil, err
	}
	if family == model.FamilyForest {
		if err := pin("random_state"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// #endregion family-options

// #region train
// Train runs one tracked training run: it resolves the options, loads the
// processed data, fits and scores the family and persists the model.
func Train(opts TrainOptions) (TrainResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	raw, err := resolveOptions(opts.Family, opts.Options, src.Int63)
	if err != nil {
		return TrainResult{}, err
	}
	common, err := config.ParseCommon(raw, raw["output_model"])
	if err != nil {
		return TrainResult{}, err
	}
	folds := 0
	if common.Folds != nil {
		if *common.Folds == 0 {
			return TrainResult{}, fmt.Errorf("%w: x_val=0", training.ErrInvalidFoldCount)
		}
		folds = *common.Folds
	}
	factory, err := model.FactoryFor(opts.Family, raw)
	if err != nil {
		return TrainResult{}, err
	}

	result := TrainResult{
		Seed:         *common.Seed,
		ArtifactPath: artifact.ResolvePath(common.ProjectDir, common.OutputModel),
	}
	sinks := logging.Multi{}

	var store *tracking.Store
	if opts.TrackingDB != "" {
		if store, err = tracking.NewStore(opts.TrackingDB); err != nil {
			return TrainResult{}, fmt.Errorf("open tracking db: %w", err)
		}
		defer store.Close()

		rec, err := store.CreateRun(tracking.RunRecord{
			Family:    opts.Family,
			ModelName: common.OutputModel,
			DataPath:  common.Data,
			Options:   raw,
			Seed:      result.Seed,
			Folds:     folds,
			TestSize:  common.TestSize,
		})
		if err != nil {
			return TrainResult{}, err
		}
		result.RunID = rec.RunID
		sinks = append(sinks, logging.SQLiteExperiment{DB: store.DB(), RunID: rec.RunID})
	}
	sinks = append(sinks, logging.SlogExperiment{Logger: log, RunID: result.RunID})

	if opts.TrackingDSN != "" {
		db, err := logging.OpenPostgres(opts.TrackingDSN)
		if err != nil {
			return result, finish(store, result, err)
		}
		pg := logging.NewGormExperiment(db, result.RunID)
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	feats, labels, err := features.LoadProcessed(common.Data)
	if err != nil {
		return result, finish(store, result, err)
	}

	ev := training.NewEvaluator(sinks, log)
	_, run, err := ev.Run(factory, feats, labels, training.Config{
		TestFraction: common.TestSize,
		Folds:        folds,
		Seed:         result.Seed,
		ModelName:    common.OutputModel,
		OutputPath:   result.ArtifactPath,
	})
	result.Run = run
	if err != nil {
		return result, finish(store, result, err)
	}
	if err := finish(store, result, nil); err != nil {
		return result, err
	}
	log.Info("training finished", "run_id", result.RunID, "artifact", result.ArtifactPath,
		"test_acc", run.TestAccuracy, "test_loss", run.TestLoss)
	return result, nil
}

// finish records the outcome of a tracked run and returns runErr, joined
// with any tracking failure.
func finish(store *tracking.Store, result TrainResult, runErr error) error {
	if store == nil || result.RunID == "" {
		return runErr
	}
	if runErr != nil {
		if err := store.FinishRun(result.RunID, tracking.StatusFailed, "", runErr.Error()); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}
	return store.FinishRun(result.RunID, tracking.StatusSucceeded, result.ArtifactPath, "")
}

// #endregion train
