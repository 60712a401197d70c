package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/automaton"
	"github.com/logflow/conformflow/pkg/checkpoint"
	"github.com/logflow/conformflow/pkg/conformance"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/encoding"
	"github.com/logflow/conformflow/pkg/eventlog"
	"github.com/logflow/conformflow/pkg/explain"
	"github.com/logflow/conformflow/pkg/ltlf"
	"github.com/logflow/conformflow/pkg/predictive"
	"github.com/logflow/conformflow/pkg/writer"
)

// FormulaSource marks runs checked by evaluating the formula directly
// because no automaton file exists.
const FormulaSource = "formula"

// Report summarises one run.
type Report struct {
	Run     Run
	RunID   string
	Skipped bool

	Metrics predictive.Metrics
	Params  predictive.Params

	Cases           int
	Accepted        int
	AutomatonSource string

	Queries     int
	Background  int
	Explanation explain.Summary

	Duration time.Duration
}

// DriverOptions wires the driver's collaborators. Every field is optional.
type DriverOptions struct {
	// DataDir holds one directory per dataset with a full.xes log.
	DataDir string

	Logger      *zap.Logger
	Checkpoints checkpoint.Backend
	Sink        *writer.DuckDBSink

	// Writer configures Parquet output. A zero value writes uncompressed.
	Writer writer.Config

	// Resume skips runs whose checkpoint is complete.
	Resume bool

	// OnReport is called after every run, skipped ones included.
	OnReport func(Report)

	// Progress is handed to each conformance pass.
	Progress func(done, total int)
}

// Driver executes runs sequentially.
type Driver struct {
	settings Settings
	opts     DriverOptions
	logger   *zap.Logger
}

// NewDriver validates settings up front so configuration errors abort
// before any data is read.
func NewDriver(s Settings, opts DriverOptions) (*Driver, error) {
	sample := s
	sample.DataPath = filepath.Join(opts.DataDir, "sample")
	sample.PrefixLength = 1
	if _, err := NewConfig(sample); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{settings: s, opts: opts, logger: logger}, nil
}

// DataPath returns the log location of a dataset.
func (d *Driver) DataPath(dataset string) string {
	return filepath.Join(d.opts.DataDir, dataset, "full.xes")
}

func (d *Driver) configFor(dataset string, prefix int) (Config, error) {
	s := d.settings
	s.DataPath = d.DataPath(dataset)
	s.PrefixLength = prefix
	return NewConfig(s)
}

// Execute runs every descriptor in order. Data loading, encoding and
// training happen once per (dataset, prefix); conformance once per tier.
// The first failure stops execution and is returned with the reports so
// far.
func (d *Driver) Execute(ctx context.Context, runs []Run) ([]Report, error) {
	var reports []Report
	emit := func(r Report) {
		reports = append(reports, r)
		if d.opts.OnReport != nil {
			d.opts.OnReport(r)
		}
	}

	for _, group := range groupRuns(runs, func(r Run) string {
		return r.Dataset + "/" + strconv.Itoa(r.PrefixLength)
	}) {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		pending, err := d.pending(ctx, group)
		if err != nil {
			return reports, err
		}
		if len(pending) == 0 {
			for _, r := range group {
				emit(Report{Run: r, RunID: r.ID(), Skipped: true})
			}
			continue
		}
		if err := d.executeGroup(ctx, group, pending, emit); err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// pending returns the IDs of runs in group that still need to execute.
func (d *Driver) pending(ctx context.Context, group []Run) (map[string]bool, error) {
	out := make(map[string]bool, len(group))
	for _, r := range group {
		if d.opts.Resume && d.opts.Checkpoints != nil {
			cp, err := d.opts.Checkpoints.Load(ctx, r.ID())
			switch {
			case err == nil && cp.Complete():
				continue
			case err != nil && !errors.Is(err, os.ErrNotExist):
				return nil, fmt.Errorf("load checkpoint %s: %w", r.Key(), err)
			}
		}
		out[r.ID()] = true
	}
	return out, nil
}

// prepared is the per (dataset, prefix) state shared by its tiers.
type prepared struct {
	cfg       Config
	table     *encoding.Table
	encoded   *encoding.Table
	encoder   *encoding.LabelEncoder
	test      *encoding.Table
	predicted []int
	tuned     *predictive.Tuned
	metrics   predictive.Metrics
}

func (d *Driver) prepare(ctx context.Context, cfg Config, dataset string) (*prepared, error) {
	logOpts := eventlog.DefaultOptions()
	logOpts.LabelAttribute = cfg.LabelAttribute
	logOpts.Logger = d.logger
	log, err := eventlog.Load(ctx, cfg.DataPath, logOpts)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cferrors.FileNotFound(cfg.DataPath, err)
		}
		return nil, cferrors.Wrapf(err, cferrors.CodeParseFailed, "load %s", dataset)
	}

	table, err := encoding.SimpleIndex(log, encoding.Options{
		PrefixLength:   cfg.PrefixLength,
		Padding:        cfg.Padding,
		LabelAttribute: cfg.LabelAttribute,
	})
	if err != nil {
		return nil, cferrors.Wrap(err, cferrors.CodeEncodingFailed, "encode prefixes")
	}
	enc := encoding.NewLabelEncoder()
	enc.Fit(table)
	encoded, err := enc.Encode(table)
	if err != nil {
		return nil, cferrors.Wrap(err, cferrors.CodeEncodingFailed, "label-encode prefixes")
	}

	if cfg.Output != "" {
		if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
			return nil, cferrors.Wrap(err, cferrors.CodeWriteFailed, "create output dir")
		}
		path := filepath.Join(cfg.Output, fmt.Sprintf("%s_%d.parquet", dataset, cfg.PrefixLength))
		if err := writer.WriteTableParquetFile(path, table, d.opts.Writer); err != nil {
			return nil, cferrors.Wrap(err, cferrors.CodeWriteFailed, "write prefix table")
		}
	}

	train, val, test, err := encoding.Split(encoded, cfg.Split.Train, cfg.Split.Val, cfg.Split.Test)
	if err != nil {
		return nil, cferrors.Wrap(err, cferrors.CodeEncodingFailed, "split")
	}
	trainSet, err := toDataset(train)
	if err != nil {
		return nil, err
	}
	valSet, err := toDataset(val)
	if err != nil {
		return nil, err
	}
	testSet, err := toDataset(test)
	if err != nil {
		return nil, err
	}

	tuned, err := predictive.Tune(cfg.Model, trainSet, valSet, predictive.TuneOptions{
		MaxEvaluations: cfg.Epochs,
		Target:         cfg.Target,
		Seed:           cfg.Seed,
	})
	if err != nil {
		return nil, cferrors.Wrap(err, cferrors.CodeModelFailed, "train model")
	}

	predicted := tuned.Model.Predict(testSet.X)
	metrics := predictive.Evaluate(testSet.Y, predicted, tuned.Model.PredictProba(testSet.X))
	d.logger.Info("model trained",
		zap.String("dataset", dataset),
		zap.Int("prefix_length", cfg.PrefixLength),
		zap.Stringer("model", cfg.Model),
		zap.Int("train", len(trainSet.Y)),
		zap.Int("test", len(testSet.Y)),
		zap.Float64("auc", metrics.AUC),
		zap.Float64("f1", metrics.F1),
	)

	return &prepared{
		cfg:       cfg,
		table:     table,
		encoded:   encoded,
		encoder:   enc,
		test:      test,
		predicted: predicted,
		tuned:     tuned,
		metrics:   metrics,
	}, nil
}

func toDataset(t *encoding.Table) (predictive.Dataset, error) {
	X, err := encoding.Features(t)
	if err != nil {
		return predictive.Dataset{}, cferrors.Wrap(err, cferrors.CodeEncodingFailed, "features")
	}
	y, err := encoding.Targets(t)
	if err != nil {
		return predictive.Dataset{}, cferrors.Wrap(err, cferrors.CodeEncodingFailed, "targets")
	}
	return predictive.Dataset{X: X, Y: y}, nil
}

func (d *Driver) executeGroup(ctx context.Context, group []Run, pending map[string]bool, emit func(Report)) error {
	first := group[0]
	cfg, err := d.configFor(first.Dataset, first.PrefixLength)
	if err != nil {
		return err
	}
	prep, err := d.prepare(ctx, cfg, first.Dataset)
	if err != nil {
		return err
	}
	explainer, err := explain.New(cfg.Explainer)
	if err != nil {
		return err
	}

	for _, tierRuns := range groupRuns(group, Run.TierKey) {
		todo := false
		for _, r := range tierRuns {
			todo = todo || pending[r.ID()]
		}
		if !todo {
			for _, r := range tierRuns {
				emit(Report{Run: r, RunID: r.ID(), Skipped: true})
			}
			continue
		}

		pass, err := d.checkTier(ctx, prep, tierRuns[0])
		if err != nil {
			return err
		}
		for _, r := range tierRuns {
			if !pending[r.ID()] {
				emit(Report{Run: r, RunID: r.ID(), Skipped: true})
				continue
			}
			rep, err := d.executeRun(ctx, prep, pass, explainer, r)
			if err != nil {
				return err
			}
			emit(rep)
		}
	}
	return nil
}

// tierPass is the conformance outcome shared by the runs of one tier.
type tierPass struct {
	acceptor   conformance.Acceptor
	source     string
	results    *conformance.ResultSet
	queries    *encoding.Table
	background *encoding.Table
}

func (d *Driver) checkTier(ctx context.Context, prep *prepared, r Run) (*tierPass, error) {
	formula, err := ltlf.Parse(r.Tier.Formula)
	if err != nil {
		return nil, cferrors.Wrapf(err, cferrors.CodeFormulaSyntax, "tier %s", r.Tier.Name)
	}
	population, err := encoding.ToLog(prep.table)
	if err != nil {
		return nil, cferrors.Wrap(err, cferrors.CodeEncodingFailed, "build population")
	}
	acc, source, err := LoadAcceptor(prep.cfg.ModelsDir, r.Dataset, r.Tier.Name, formula, population.Alphabet(), prep.cfg.Acceptance)
	if err != nil {
		return nil, err
	}
	rs, err := conformance.CheckLog(ctx, population, acc, conformance.Options{
		Jobs:     prep.cfg.Jobs,
		Progress: d.opts.Progress,
		Logger:   d.logger,
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("conformance checked",
		zap.String("tier", r.TierKey()),
		zap.String("automaton", source),
		zap.Int("cases", rs.Len()),
		zap.Int("accepted", rs.AcceptedCount()),
	)

	if d.opts.Sink != nil {
		if err := d.opts.Sink.Append(ctx, r.TierKey(), rs); err != nil {
			return nil, cferrors.Wrap(err, cferrors.CodeDuckDBWrite, "store conformance results")
		}
	}
	if prep.cfg.Output != "" {
		name := fmt.Sprintf("conformance_%s_%d_%s.parquet", r.Dataset, r.PrefixLength, r.Tier.Name)
		if err := writer.WriteResultsFile(filepath.Join(prep.cfg.Output, name), rs, d.opts.Writer); err != nil {
			return nil, cferrors.Wrap(err, cferrors.CodeWriteFailed, "write conformance results")
		}
	}

	accepted := rs.AcceptedSet()
	background, err := prep.encoded.FilterIDs(accepted)
	if err != nil {
		return nil, err
	}
	queries, err := correctRegular(prep.test, prep.predicted)
	if err != nil {
		return nil, err
	}
	if queries, err = queries.FilterIDs(accepted); err != nil {
		return nil, err
	}

	return &tierPass{acceptor: acc, source: source, results: rs, queries: queries, background: background}, nil
}

// correctRegular keeps test rows predicted correctly as the regular class.
func correctRegular(test *encoding.Table, predicted []int) (*encoding.Table, error) {
	labels, err := encoding.Targets(test)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i, y := range labels {
		if y == 0 && predicted[i] == 0 {
			keep = append(keep, i)
		}
	}
	return test.Select(keep), nil
}

func (d *Driver) executeRun(ctx context.Context, prep *prepared, pass *tierPass, explainer explain.Explainer, r Run) (Report, error) {
	ctx, span := otel.Tracer("conformflow/experiment").Start(ctx, "experiment.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.key", r.Key()),
		attribute.String("run.dataset", r.Dataset),
		attribute.Int("run.prefix_length", r.PrefixLength),
		attribute.String("run.tier", r.Tier.Name),
		attribute.String("run.search", r.Search.String()),
	)

	start := time.Now()
	cp := checkpoint.New(r.Key())
	cp.SetMetadata("dataset", r.Dataset)
	cp.SetMetadata("tier", r.Tier.Name)
	cp.SetMetadata("search", r.Search.String())
	d.saveCheckpoint(ctx, cp)

	cfs, err := explainer.Explain(ctx, explain.Request{
		Dataset:      r.Dataset,
		PrefixLength: r.PrefixLength,
		Tier:         r.Tier.Name,
		Queries:      pass.queries,
		Background:   pass.background,
		Model:        prep.tuned.Model,
		Encoder:      prep.encoder,
		Acceptor:     pass.acceptor,
		Search:       r.Search,
		TotalCFs:     prep.cfg.TotalCFs,
		ResultDir:    prep.cfg.Results,
		Logger:       d.logger,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cp.Fail(err)
		d.saveCheckpoint(ctx, cp)
		return Report{}, fmt.Errorf("run %s: %w", r.Key(), err)
	}

	summary := explain.Summarize(pass.queries.Len(), cfs)
	cp.SetMetadata("counterfactuals", strconv.Itoa(summary.Counterfactuals))
	cp.SetPhase(checkpoint.PhaseComplete)
	d.saveCheckpoint(ctx, cp)

	return Report{
		Run:             r,
		RunID:           cp.ID,
		Metrics:         prep.metrics,
		Params:          prep.tuned.Params,
		Cases:           pass.results.Len(),
		Accepted:        pass.results.AcceptedCount(),
		AutomatonSource: pass.source,
		Queries:         pass.queries.Len(),
		Background:      pass.background.Len(),
		Explanation:     summary,
		Duration:        time.Since(start),
	}, nil
}

// saveCheckpoint logs instead of failing; a lost checkpoint only costs a
// re-run on resume.
func (d *Driver) saveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) {
	if d.opts.Checkpoints == nil {
		return
	}
	if err := d.opts.Checkpoints.Save(ctx, cp); err != nil {
		d.logger.Warn("checkpoint save failed",
			zap.String("run", cp.RunKey),
			zap.String("backend", d.opts.Checkpoints.Name()),
			zap.Error(err),
		)
	}
}

// LoadAcceptor returns a walker over <modelsDir>/<dataset>/<tier>.dot|yaml
// when such a file exists, and a direct formula evaluator otherwise. The
// second result names the source. DOT guards are expanded over alphabet,
// the formula's atoms and the padding activity, so every activity a
// population or candidate can contain has its transitions.
func LoadAcceptor(modelsDir, dataset, tier string, f *ltlf.Formula, alphabet []string, mode conformance.AcceptanceMode) (conformance.Acceptor, string, error) {
	if modelsDir != "" {
		if path := automaton.Find(filepath.Join(modelsDir, dataset, tier)); path != "" {
			dfa, err := automaton.Load(path, guardAlphabet(alphabet, f.Atoms()))
			var structural *automaton.ConfigError
			switch {
			case errors.As(err, &structural):
				return nil, "", cferrors.Wrap(err, cferrors.CodeMalformedAutomaton, "invalid automaton").WithContext("path", path)
			case err != nil:
				return nil, "", cferrors.Wrap(err, cferrors.CodeAutomatonParse, "load automaton").WithContext("path", path)
			}
			return conformance.NewWalker(dfa, mode), path, nil
		}
	}
	return conformance.NewFormulaAcceptor(f), FormulaSource, nil
}

// guardAlphabet is the sorted union of the activity sets plus the padding
// activity.
func guardAlphabet(sets ...[]string) []string {
	seen := map[string]struct{}{encoding.PadActivity: {}}
	for _, set := range sets {
		for _, a := range set {
			seen[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// groupRuns splits runs into consecutive groups sharing a key.
func groupRuns(runs []Run, key func(Run) string) [][]Run {
	var out [][]Run
	for i, r := range runs {
		if i == 0 || key(runs[i-1]) != key(r) {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], r)
	}
	return out
}
