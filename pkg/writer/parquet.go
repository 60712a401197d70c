package writer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/encoding"
)

// resultSchema is the Parquet layout of a conformance result set.
func resultSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "case_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "accepted", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
		{Name: "final_state", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "consumed", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	}, nil)
}

func newFileWriter(schema *arrow.Schema, out io.Writer, cfg Config) (*pqarrow.FileWriter, error) {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(cfg.Compression.codec()),
		parquet.WithDictionaryDefault(true),
		parquet.WithDataPageSize(1024*1024),
	)
	w, err := pqarrow.NewFileWriter(schema, out, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	return w, nil
}

// ResultWriter streams conformance results to Parquet in record batches.
type ResultWriter struct {
	cfg    Config
	schema *arrow.Schema
	writer *pqarrow.FileWriter

	caseID   *array.StringBuilder
	accepted *array.BooleanBuilder
	final    *array.StringBuilder
	consumed *array.Int64Builder

	mu       sync.Mutex
	pending  int
	written  int64
	closed   bool
}

// NewResultWriter creates a result writer on out.
func NewResultWriter(out io.Writer, cfg Config) (*ResultWriter, error) {
	cfg = cfg.withDefaults()
	schema := resultSchema()
	fw, err := newFileWriter(schema, out, cfg)
	if err != nil {
		return nil, err
	}
	alloc := memory.NewGoAllocator()
	return &ResultWriter{
		cfg:      cfg,
		schema:   schema,
		writer:   fw,
		caseID:   array.NewStringBuilder(alloc),
		accepted: array.NewBooleanBuilder(alloc),
		final:    array.NewStringBuilder(alloc),
		consumed: array.NewInt64Builder(alloc),
	}, nil
}

// Write appends results, flushing a batch whenever BatchSize rows are
// buffered.
func (w *ResultWriter) Write(results ...conformance.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("write results: writer closed")
	}

	for _, r := range results {
		w.caseID.Append(r.CaseID)
		w.accepted.Append(r.Accepted)
		if r.FinalState != "" {
			w.final.Append(string(r.FinalState))
		} else {
			w.final.AppendNull()
		}
		w.consumed.Append(int64(r.Consumed))
		w.pending++

		if w.pending >= w.cfg.BatchSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *ResultWriter) flush() error {
	if w.pending == 0 {
		return nil
	}
	cols := []arrow.Array{
		w.caseID.NewArray(),
		w.accepted.NewArray(),
		w.final.NewArray(),
		w.consumed.NewArray(),
	}
	for _, c := range cols {
		defer c.Release()
	}

	batch := array.NewRecord(w.schema, cols, int64(w.pending))
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return fmt.Errorf("write record batch: %w", err)
	}
	w.written += int64(w.pending)
	w.pending = 0
	return nil
}

// Close flushes buffered rows and finalises the Parquet footer.
func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	w.caseID.Release()
	w.accepted.Release()
	w.final.Release()
	w.consumed.Release()
	w.closed = true
	return nil
}

// RowsWritten returns the number of rows flushed so far.
func (w *ResultWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// WriteResultsFile writes a whole result set to a Parquet file.
func WriteResultsFile(path string, rs *conformance.ResultSet, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	w, err := NewResultWriter(f, cfg)
	if err != nil {
		f.Close()
		return err
	}
	if err := w.Write(rs.Results()...); err != nil {
		w.Close()
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return nil
}

// WriteTableParquet writes a string table with one UTF-8 column per table
// column.
func WriteTableParquet(out io.Writer, t *encoding.Table, cfg Config) error {
	cfg = cfg.withDefaults()
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: false}
	}
	schema := arrow.NewSchema(fields, nil)

	fw, err := newFileWriter(schema, out, cfg)
	if err != nil {
		return err
	}

	alloc := memory.NewGoAllocator()
	builders := make([]*array.StringBuilder, len(fields))
	for i := range builders {
		builders[i] = array.NewStringBuilder(alloc)
		defer builders[i].Release()
	}

	flush := func(n int) error {
		if n == 0 {
			return nil
		}
		cols := make([]arrow.Array, len(builders))
		for i, b := range builders {
			cols[i] = b.NewArray()
			defer cols[i].Release()
		}
		rec := array.NewRecord(schema, cols, int64(n))
		defer rec.Release()
		return fw.Write(rec)
	}

	pending := 0
	for _, row := range t.Rows {
		for i, v := range row {
			builders[i].Append(v)
		}
		pending++
		if pending >= cfg.BatchSize {
			if err := flush(pending); err != nil {
				fw.Close()
				return fmt.Errorf("write record batch: %w", err)
			}
			pending = 0
		}
	}
	if err := flush(pending); err != nil {
		fw.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteTableParquetFile writes t to path.
func WriteTableParquetFile(path string, t *encoding.Table, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := WriteTableParquet(f, t, cfg); err != nil {
		f.Close()
		return err
	}
	return nil
}
