package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/checkpoint"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/experiment"
	"github.com/logflow/conformflow/pkg/telemetry"
	"github.com/logflow/conformflow/pkg/tui"
	"github.com/logflow/conformflow/pkg/writer"
)

// matrixFlags select part of the experiment matrix.
type matrixFlags struct {
	datasets []string
	prefixes []int
	tiers    []string
}

func (f *matrixFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.datasets, "dataset", "d", nil, "Datasets to run (default: config, then all)")
	cmd.Flags().IntSliceVarP(&f.prefixes, "prefix", "p", nil, "Prefix lengths (default: per dataset)")
	cmd.Flags().StringSliceVarP(&f.tiers, "tier", "t", nil, "Formula tiers, e.g. 10%,25% (default: all)")
}

// plan expands the selected matrix.
func (a *app) plan(f matrixFlags) ([]experiment.Run, error) {
	m := experiment.Matrix{Datasets: f.datasets, Tiers: f.tiers}
	if len(m.Datasets) == 0 {
		m.Datasets = a.cfg.Experiment.Datasets
	}
	if len(f.prefixes) > 0 {
		names := m.Datasets
		if len(names) == 0 {
			for _, d := range experiment.Datasets() {
				names = append(names, d.Name)
			}
		}
		m.Prefixes = make(map[string][]int, len(names))
		for _, name := range names {
			m.Prefixes[name] = f.prefixes
		}
	}
	return experiment.Plan(m)
}

func (a *app) planCmd() *cobra.Command {
	var f matrixFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the runs of the experiment matrix and their checkpoint IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.plan(f)
			if err != nil {
				return err
			}
			tui.PrintPlan(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var (
		f       matrixFlags
		resume  bool
		dataDir string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the experiment matrix",
		Long: `Run dataset × prefix × tier × search. For every dataset and prefix length the
log is encoded and a classifier trained once; for every tier the population is
checked once; then each counterfactual search writes its artifacts.

Logs are read from <data-dir>/<dataset>/full.xes. Automata are taken from
<models_dir>/<dataset>/<tier>.dot|.yaml when present, otherwise the tier
formula is evaluated directly.

Examples:
  conformflow run
  conformflow run --dataset synthetic_data --prefix 7 --tier 10%
  conformflow run --config experiment.yaml --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			runs, err := a.plan(f)
			if err != nil {
				return err
			}
			if dataDir == "" {
				dataDir = a.cfg.Experiment.DataDir
			}

			backend, err := checkpoint.Open(ctx, a.cfg.CheckpointOptions())
			if err != nil {
				return err
			}
			if backend != nil {
				defer a.closeQuietly(backend, "checkpoint backend")
				a.logger.Info("checkpoints enabled", zap.String("backend", backend.Name()))
			} else if resume {
				a.logger.Warn("resume requested without a checkpoint backend; every run executes")
			}

			var sink *writer.DuckDBSink
			if path := a.cfg.Output.DuckDB; path != "" {
				sink, err = writer.OpenDuckDB(path, a.cfg.WriterConfig())
				if err != nil {
					return cferrors.Wrap(err, cferrors.CodeDuckDBWrite, "open results database").WithContext("path", path)
				}
				defer a.closeQuietly(sink, "results database")
			}

			metrics := telemetry.NewRunMetrics()
			driver, err := experiment.NewDriver(a.cfg.ExperimentSettings(), experiment.DriverOptions{
				DataDir:     dataDir,
				Logger:      a.logger,
				Checkpoints: backend,
				Sink:        sink,
				Writer:      a.cfg.WriterConfig(),
				Resume:      resume,
				OnReport: func(r experiment.Report) {
					metrics.Observe(r.Duration, r.Explanation.Counterfactuals, r.Skipped, nil)
					tui.PrintRunReport(out, r)
				},
			})
			if err != nil {
				return err
			}

			a.logger.Info("experiment starting", zap.Int("runs", len(runs)), zap.String("data_dir", dataDir))
			if _, err := driver.Execute(ctx, runs); err != nil {
				metrics.Observe(0, 0, false, err)
				tui.PrintRunTotals(out, metrics.Summary())
				return err
			}
			tui.PrintRunTotals(out, metrics.Summary())

			if sink != nil {
				rows, err := sink.Summary(ctx)
				if err != nil {
					return cferrors.Wrap(err, cferrors.CodeDuckDBWrite, "summarize results database")
				}
				tui.PrintSinkSummary(out, rows)
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip runs whose checkpoint is complete")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory holding <dataset>/full.xes (default from config)")
	return cmd
}
