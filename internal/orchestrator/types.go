package orchestrator

import (
	"log/slog"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/training"
)

// Preprocessing output locations.
const (
	DefaultOutDir = "example-lendingclub"
	ProcessedFile = "processed_data_set.csv"
)

// #region options
// PreprocessOptions configure one preprocessing pass.
type PreprocessOptions struct {
	DataPath string
	// PipelinePath is a YAML pipeline spec; empty uses the LendingClub pipeline.
	PipelinePath string
	// OutDir defaults to DefaultOutDir.
	OutDir string
	Logger *slog.Logger
}

// TrainOptions configure one training run.
type TrainOptions struct {
	Family string
	// Options are the raw option values by name; unset options take their defaults.
	Options config.Raw
	// TrackingDB is the SQLite tracking database; empty disables tracking.
	TrackingDB string
	// TrackingDSN mirrors metrics into Postgres when set.
	TrackingDSN string
	Logger      *slog.Logger
}

// #endregion options

// #region results
// TrainResult describes a finished training run.
type TrainResult struct {
	RunID        string
	ArtifactPath string
	Seed         int64
	Run          training.Run
}

// #endregion results
