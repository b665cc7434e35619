package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/logging"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/orchestrator"
)

// usageError marks bad invocations, which exit with status 2.
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

// #region commands
type globalFlags struct {
	db        string
	dsn       string
	params    string
	set       []string
	logFormat string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "train",
		Short:         "Train a loan default classifier on a processed dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&g.db, "db", envOr("LCT_TRACKING_DB", "runs.db"), "tracking database, empty to disable tracking")
	pf.StringVar(&g.dsn, "dsn", envOr("LCT_TRACKING_DSN", ""), "postgres DSN metrics are mirrored to")
	pf.StringVar(&g.params, "params", "", "YAML file of option values; flags win")
	pf.StringArrayVar(&g.set, "set", nil, "extra option as name=value, repeatable")
	pf.StringVar(&g.logFormat, "log-format", logging.FormatText, "log format: text or json")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	for _, family := range []struct{ name, short string }{
		{model.FamilyForest, "Train a random forest"},
		{model.FamilyBoost, "Train a gradient boosted tree ensemble"},
		{model.FamilyRemote, "Train through the remote model service"},
	} {
		root.AddCommand(newFamilyCmd(family.name, family.short, g))
	}
	return root
}

func newFamilyCmd(family, short string, g *globalFlags) *cobra.Command {
	familyOpts, _ := orchestrator.FamilyOptions(family)
	values := make(map[string]*string)

	cmd := &cobra.Command{
		Use:   family,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := collectOptions(cmd, values, g)
			if err != nil {
				return err
			}
			log, err := logging.NewLogger(os.Stderr, g.logFormat, g.logLevel)
			if err != nil {
				return usageError{err}
			}
			slog.SetDefault(log)

			res, err := orchestrator.Train(orchestrator.TrainOptions{
				Family:      family,
				Options:     raw,
				TrackingDB:  g.db,
				TrackingDSN: g.dsn,
				Logger:      log,
			})
			if err != nil {
				if res.RunID != "" {
					return fmt.Errorf("run %s: %w", res.RunID, err)
				}
				return err
			}
			printResult(res)
			return nil
		},
	}
	for _, o := range append(append([]config.Option(nil), config.CommonOptions...), familyOpts...) {
		// boost reuses the common seed option
		if _, ok := values[o.Name]; ok {
			continue
		}
		values[o.Name] = cmd.Flags().String(o.Name, o.Default, o.Usage)
	}
	return cmd
}

// #endregion commands

// #region options
// collectOptions layers the params file, --set values and explicitly given
// flags, later sources winning. Unset options keep their defaults downstream.
func collectOptions(cmd *cobra.Command, values map[string]*string, g *globalFlags) (config.Raw, error) {
	raw := config.Raw{}
	if g.params != "" {
		fromFile, err := config.LoadParamsFile(g.params)
		if err != nil {
			return nil, err
		}
		raw = raw.Merge(fromFile)
	}
	for _, kv := range g.set {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, usageError{fmt.Errorf("--set %q: want name=value", kv)}
		}
		raw[name] = value
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if v, ok := values[f.Name]; ok {
			raw[f.Name] = *v
		}
	})
	return raw, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion options

// #region output
func printResult(res orchestrator.TrainResult) {
	run := res.Run
	if res.RunID != "" {
		fmt.Printf("Run:        %s\n", res.RunID)
	}
	fmt.Printf("Artifact:   %s\n", res.ArtifactPath)
	fmt.Printf("Seed:       %d\n", res.Seed)
	fmt.Printf("Rows:       %d train / %d test\n", run.TrainRows, run.TestRows)
	if run.Folds > 0 {
		fmt.Printf("Folds:      %d\n", run.Folds)
		for i := range run.TrainAccuracy {
			fmt.Printf("  fold %-3d  acc %.4f  loss %.4f\n", i, run.TrainAccuracy[i], run.TrainLoss[i])
		}
	} else if len(run.TrainAccuracy) > 0 {
		fmt.Printf("Train:      acc %.4f  loss %.4f\n", run.TrainAccuracy[0], run.TrainLoss[0])
	}
	fmt.Printf("Test:       acc %.4f  loss %.4f\n", run.TestAccuracy, run.TestLoss)

	gate := "pass"
	if !run.Gate.Passed {
		gate = run.Gate.Reason
	}
	fmt.Printf("Gate:       %s\n", gate)
}

// #endregion output
