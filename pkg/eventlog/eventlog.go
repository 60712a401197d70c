// Package eventlog loads event log files into ordered traces.
package eventlog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/conformflow/internal/model"
	"github.com/logflow/conformflow/pkg/parser"
)

// DefaultLabelAttribute is the trace attribute that carries the outcome label.
const DefaultLabelAttribute = "label"

// Options controls how a log is loaded.
type Options struct {
	// Parser configures column mapping for flat formats.
	Parser parser.Config

	// Format overrides extension-based detection when set.
	Format parser.Format

	// NormalizeLabels rewrites every activity with NormalizeLabel.
	NormalizeLabels bool

	// LabelAttribute names the trace attribute holding the outcome label.
	LabelAttribute string

	// EventBufferSize is the channel buffer between parser and assembler.
	EventBufferSize int

	Logger *zap.Logger
}

// DefaultOptions returns the options used by the experiment driver.
func DefaultOptions() Options {
	return Options{
		Parser:          parser.DefaultConfig(),
		NormalizeLabels: true,
		LabelAttribute:  DefaultLabelAttribute,
		EventBufferSize: 4096,
	}
}

func (o Options) withDefaults() Options {
	if o.LabelAttribute == "" {
		o.LabelAttribute = DefaultLabelAttribute
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 4096
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Load reads the log at path. The format comes from the file extension
// unless opts.Format is set; .gz files are decompressed on the fly.
func Load(ctx context.Context, path string, opts Options) (*model.Log, error) {
	ctx, span := otel.Tracer("conformflow/eventlog").Start(ctx, "eventlog.load")
	defer span.End()
	span.SetAttributes(attribute.String("eventlog.path", path))

	format := opts.Format
	if format == parser.FormatUnknown {
		format = parser.DetectFormat(path)
	}
	if format == parser.FormatUnknown {
		return nil, fmt.Errorf("load %q: %w", path, parser.ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log %q: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if parser.IsCompressed(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip %q: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	log, err := LoadReader(ctx, r, format, opts)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", path, err)
	}
	span.SetAttributes(
		attribute.Int("eventlog.traces", log.Len()),
		attribute.Int("eventlog.events", log.Events()),
	)
	return log, nil
}

// LoadReader parses r on one goroutine and assembles traces on another.
// Traces keep first-seen case order. Flat formats are stably sorted by
// timestamp inside each case; XES document order is kept as is.
func LoadReader(ctx context.Context, r io.Reader, format parser.Format, opts Options) (*model.Log, error) {
	opts = opts.withDefaults()

	p, err := parser.NewParser(format, opts.Parser)
	if err != nil {
		return nil, err
	}

	events := make(chan *model.Event, opts.EventBufferSize)
	asm := newAssembler(opts)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		if err := p.Parse(gctx, r, events); err != nil {
			return fmt.Errorf("parse %s: %w", format, err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				asm.add(ev)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := asm.build(!format.Ordered())
	opts.Logger.Debug("event log loaded",
		zap.String("format", format.String()),
		zap.Int("traces", log.Len()),
		zap.Int("events", log.Events()),
	)
	return log, nil
}

// assembler groups events into traces in first-seen case order.
type assembler struct {
	opts   Options
	order  []string
	traces map[string]*model.Trace
}

func newAssembler(opts Options) *assembler {
	return &assembler{
		opts:   opts,
		traces: make(map[string]*model.Trace),
	}
}

func (a *assembler) add(ev *model.Event) {
	if a.opts.NormalizeLabels && !ev.CaseOnly {
		ev.Activity = NormalizeLabel(ev.Activity)
	}

	tr, ok := a.traces[ev.CaseID]
	if !ok {
		tr = &model.Trace{CaseID: ev.CaseID}
		a.traces[ev.CaseID] = tr
		a.order = append(a.order, ev.CaseID)
	}

	for _, attr := range ev.Attributes {
		key := attr.Key
		switch {
		case strings.HasPrefix(key, parser.CasePrefix):
			key = strings.TrimPrefix(key, parser.CasePrefix)
		case key == a.opts.LabelAttribute:
		default:
			continue
		}
		if _, exists := tr.Attr(key); !exists {
			tr.Attributes = append(tr.Attributes, model.Attribute{Key: key, Value: attr.Value, Type: attr.Type})
		}
	}

	if !ev.CaseOnly {
		tr.Events = append(tr.Events, *ev)
	}
}

func (a *assembler) build(sortByTime bool) *model.Log {
	traces := make([]model.Trace, 0, len(a.order))
	for _, id := range a.order {
		tr := a.traces[id]
		if sortByTime {
			sort.SliceStable(tr.Events, func(i, j int) bool {
				return tr.Events[i].Timestamp < tr.Events[j].Timestamp
			})
		}
		traces = append(traces, *tr)
	}
	return model.NewLog(traces)
}

// Label returns the outcome label of a trace, or "" when absent.
func Label(tr *model.Trace, attr string) string {
	if attr == "" {
		attr = DefaultLabelAttribute
	}
	v, _ := tr.Attr(attr)
	return v
}
