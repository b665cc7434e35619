package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/logging"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/orchestrator"
)

type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// #endregion main

// #region command
func newRootCmd() *cobra.Command {
	var opts orchestrator.PreprocessOptions
	var logFormat, logLevel string

	cmd := &cobra.Command{
		Use:           "preprocess",
		Short:         "Turn the raw LendingClub loan CSV into the processed training table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if opts.DataPath == "" {
				return usageError{errors.New("--data is required")}
			}
			log, err := logging.NewLogger(os.Stderr, logFormat, logLevel)
			if err != nil {
				return usageError{err}
			}
			slog.SetDefault(log)
			opts.Logger = log

			path, res, err := orchestrator.Preprocess(opts)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d rows, %d features, labeled=%v)\n",
				path, res.Features.Rows(), res.Features.Width(), res.Labels != nil)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	f := cmd.Flags()
	f.StringVar(&opts.DataPath, "data", "", "raw loan CSV")
	f.StringVar(&opts.PipelinePath, "pipeline", "", "YAML pipeline spec, default is the built-in LendingClub pipeline")
	f.StringVar(&opts.OutDir, "out-dir", orchestrator.DefaultOutDir, "directory the processed CSV is written to")
	f.StringVar(&logFormat, "log-format", logging.FormatText, "log format: text or json")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	return cmd
}

// #endregion command
