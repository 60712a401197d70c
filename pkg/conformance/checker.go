package conformance

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/logflow/conformflow/internal/model"
	"github.com/logflow/conformflow/internal/pool"
	"github.com/logflow/conformflow/pkg/automaton"
)

// Result is the verdict for one trace.
type Result struct {
	CaseID     string
	Accepted   bool
	FinalState automaton.State
	Consumed   int
}

// Check runs a single trace through acc.
func Check(tr *model.Trace, acc Acceptor) Result {
	v := acc.Run(tr.Labels())
	return Result{
		CaseID:     tr.CaseID,
		Accepted:   v.Accepted,
		FinalState: v.FinalState,
		Consumed:   v.Consumed,
	}
}

// Options configures CheckLog.
type Options struct {
	// Jobs bounds the number of concurrent workers. Zero means one per CPU.
	Jobs int

	// Progress, when set, is called after each trace with the number done
	// so far. It may be called from several goroutines.
	Progress func(done, total int)

	Logger *zap.Logger
}

// CheckLog checks every trace of log on a bounded worker pool. Results are
// in log order whatever order the workers finish in.
func CheckLog(ctx context.Context, log *model.Log, acc Acceptor, opts Options) (*ResultSet, error) {
	ctx, span := otel.Tracer("conformflow/conformance").Start(ctx, "conformance.check_log")
	defer span.End()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	n := log.Len()
	results := make([]Result, n)
	var done atomic.Int64

	err := pool.Map(ctx, opts.Jobs, n, func(ctx context.Context, i int) error {
		results[i] = Check(&log.Traces[i], acc)
		d := done.Add(1)
		if opts.Progress != nil {
			opts.Progress(int(d), n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check log: %w", err)
	}

	rs := NewResultSet(results)
	span.SetAttributes(
		attribute.Int("conformance.traces", n),
		attribute.Int("conformance.accepted", rs.AcceptedCount()),
	)
	logger.Debug("conformance checked",
		zap.Int("traces", n),
		zap.Int("accepted", rs.AcceptedCount()),
		zap.Int("workers", pool.Workers(opts.Jobs, n)),
	)
	return rs, nil
}
