package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/automaton"
	"github.com/logflow/conformflow/pkg/checkpoint"
	"github.com/logflow/conformflow/pkg/conformance"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/eventlog"
	"github.com/logflow/conformflow/pkg/ltlf"
	"github.com/logflow/conformflow/pkg/tui"
	"github.com/logflow/conformflow/pkg/writer"
)

// checkFlags are shared by check and watch.
type checkFlags struct {
	log        string
	automaton  string
	formula    string
	jobs       int
	acceptance string
	out        string
	duckdb     string
	labelAttr  string
	rawLabels  bool
	quiet      bool
}

func (f *checkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.log, "log", "l", "", "Event log (XES, CSV, JSONL, XLSX; .gz accepted)")
	cmd.Flags().StringVarP(&f.automaton, "automaton", "a", "", "Automaton file (.dot, .gv, .yaml)")
	cmd.Flags().StringVarP(&f.formula, "formula", "f", "", "LTLf formula evaluated directly")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", -1, "Concurrent workers (0 = one per CPU, default from config)")
	cmd.Flags().StringVar(&f.acceptance, "acceptance", "", "Acceptance mode: end or visit (default from config)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write verdicts to a .parquet or .csv file")
	cmd.Flags().StringVar(&f.duckdb, "duckdb", "", "Append verdicts to a DuckDB database")
	cmd.Flags().StringVar(&f.labelAttr, "label-attribute", "", "Trace attribute holding the outcome label")
	cmd.Flags().BoolVar(&f.rawLabels, "raw-labels", false, "Keep activity names as written instead of normalizing them")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "No progress bar")

	cmd.MarkFlagRequired("log")
	cmd.MarkFlagsMutuallyExclusive("automaton", "formula")
	cmd.MarkFlagsOneRequired("automaton", "formula")
}

func (a *app) checkCmd() *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every trace of a log against an automaton or formula",
		Long: `Run every trace of an event log through a DFA or an LTLf formula and report
which cases conform.

Activity names are normalized (lowercased, separators removed) so that
"O_SENT-COMPLETE" matches the proposition osentcomplete.

Examples:
  conformflow check -l claims.xes -f "G(contacthospital -> X(acceptclaim | rejectclaim))"
  conformflow check -l claims.xes -a process_models/claims/10%.dot -o verdicts.parquet
  conformflow check -l claims.csv -a model.yaml --acceptance visit --duckdb runs.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.check(cmd.Context(), f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tui.PrintConformanceSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// check loads the log, builds the acceptor, checks every trace and writes
// the requested outputs.
func (a *app) check(ctx context.Context, f checkFlags, progress io.Writer) (tui.ConformanceSummary, error) {
	start := time.Now()

	modeName := f.acceptance
	if modeName == "" {
		modeName = a.cfg.Conformance.Acceptance
	}
	mode, err := conformance.ParseAcceptanceMode(modeName)
	if err != nil {
		return tui.ConformanceSummary{}, cferrors.Wrap(err, cferrors.CodeInvalidEnum, "invalid acceptance mode")
	}
	jobs := f.jobs
	if jobs < 0 {
		jobs = a.cfg.Conformance.Jobs
	}

	opts := eventlog.DefaultOptions()
	opts.NormalizeLabels = !f.rawLabels
	opts.Logger = a.logger
	if f.labelAttr != "" {
		opts.LabelAttribute = f.labelAttr
	}
	log, err := eventlog.Load(ctx, f.log, opts)
	if err != nil {
		return tui.ConformanceSummary{}, err
	}

	acc, source, err := buildAcceptor(f.automaton, f.formula, log.Alphabet(), mode)
	if err != nil {
		return tui.ConformanceSummary{}, err
	}
	if _, ok := acc.(*conformance.FormulaAcceptor); ok && mode == conformance.AcceptOnVisit {
		a.logger.Warn("formula acceptor evaluates whole traces; acceptance mode ignored")
	}

	co := conformance.Options{Jobs: jobs, Logger: a.logger}
	if !f.quiet {
		co.Progress = tui.CheckProgress(progress, "checking")
	}
	rs, err := conformance.CheckLog(ctx, log, acc, co)
	if err != nil {
		return tui.ConformanceSummary{}, err
	}

	if f.out != "" {
		if err := writer.WriteResultsTo(f.out, rs, a.cfg.WriterConfig()); err != nil {
			return tui.ConformanceSummary{}, cferrors.Wrap(err, cferrors.CodeWriteFailed, "write verdicts").
				WithContext("path", f.out)
		}
	}

	dbPath := f.duckdb
	if dbPath == "" {
		dbPath = a.cfg.Output.DuckDB
	}
	if dbPath != "" {
		if err := a.storeVerdicts(ctx, dbPath, checkKey(f.log, source), rs); err != nil {
			return tui.ConformanceSummary{}, err
		}
	}

	return tui.ConformanceSummary{
		LogPath:  f.log,
		Source:   source,
		Mode:     mode,
		Results:  rs,
		Output:   f.out,
		Duration: time.Since(start),
	}, nil
}

func (a *app) storeVerdicts(ctx context.Context, path, key string, rs *conformance.ResultSet) error {
	sink, err := writer.OpenDuckDB(path, a.cfg.WriterConfig())
	if err != nil {
		return cferrors.Wrap(err, cferrors.CodeDuckDBWrite, "open results database").WithContext("path", path)
	}
	defer a.closeQuietly(sink, "results database")

	if err := sink.Append(ctx, key, rs); err != nil {
		return cferrors.Wrap(err, cferrors.CodeDuckDBWrite, "store verdicts").WithContext("path", path)
	}
	a.logger.Info("verdicts stored", zap.String("db", path), zap.String("run", key), zap.Int("cases", rs.Len()))
	return nil
}

// checkKey names an ad-hoc check in the results database. The same log
// and model always map to the same key.
func checkKey(logPath, source string) string {
	return "check/" + checkpoint.RunID(filepath.Base(logPath)+"|"+source)
}

// buildAcceptor loads automatonPath when set and parses formula otherwise.
// alphabet expands DOT guards into explicit transitions.
func buildAcceptor(automatonPath, formula string, alphabet []string, mode conformance.AcceptanceMode) (conformance.Acceptor, string, error) {
	if automatonPath != "" {
		dfa, err := automaton.Load(automatonPath, alphabet)
		if err != nil {
			return nil, "", err
		}
		if err := dfa.Validate(); err != nil {
			return nil, "", err
		}
		return conformance.NewWalker(dfa, mode), automatonPath, nil
	}
	if formula == "" {
		return nil, "", fmt.Errorf("an automaton or a formula is required")
	}
	f, err := ltlf.Parse(formula)
	if err != nil {
		return nil, "", err
	}
	return conformance.NewFormulaAcceptor(f), f.String(), nil
}
