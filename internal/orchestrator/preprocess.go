package orchestrator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/features"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// #region preprocess
// Preprocess reads the raw CSV, runs the feature pipeline and writes the
// processed table to OutDir/processed_data_set.csv. It returns the written path.
func Preprocess(opts PreprocessOptions) (string, features.Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	pipeline := features.LendingClub()
	if opts.PipelinePath != "" {
		p, err := features.LoadSpec(opts.PipelinePath)
		if err != nil {
			return "", features.Result{}, err
		}
		pipeline = p
	}
	pipeline.Logger = log

	raw, err := table.ReadCSVFile(opts.DataPath)
	if err != nil {
		return "", features.Result{}, fmt.Errorf("read raw data: %w", err)
	}
	res, err := pipeline.Apply(raw)
	if err != nil {
		return "", features.Result{}, fmt.Errorf("apply pipeline: %w", err)
	}
	out, err := res.Table()
	if err != nil {
		return "", features.Result{}, err
	}

	dir := opts.OutDir
	if dir == "" {
		dir = DefaultOutDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", features.Result{}, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, ProcessedFile)
	if err := table.WriteCSVFile(path, out); err != nil {
		return "", features.Result{}, fmt.Errorf("write processed data: %w", err)
	}

	log.Info("preprocessed", "rows", out.Rows(), "columns", out.Width(), "labeled", res.Labels != nil, "path", path)
	return path, res, nil
}

// #endregion preprocess
