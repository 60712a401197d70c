package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/logflow/conformflow/pkg/conformance"
	"github.com/logflow/conformflow/pkg/encoding"
)

// WriteTableCSV writes a header row followed by every table row.
func WriteTableCSV(out io.Writer, t *encoding.Table) error {
	w := csv.NewWriter(out)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteTableCSVFile writes t to path.
func WriteTableCSVFile(path string, t *encoding.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := WriteTableCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteResultsCSV writes conformance results as case_id, accepted,
// final_state, consumed.
func WriteResultsCSV(out io.Writer, rs *conformance.ResultSet) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"case_id", "accepted", "final_state", "consumed"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rs.Results() {
		rec := []string{r.CaseID, strconv.FormatBool(r.Accepted), string(r.FinalState), strconv.Itoa(r.Consumed)}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write result %s: %w", r.CaseID, err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteResultsCSVFile writes rs to path.
func WriteResultsCSVFile(path string, rs *conformance.ResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := WriteResultsCSV(f, rs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteResultsTo picks the format from the extension of path: .csv writes
// CSV, anything else Parquet.
func WriteResultsTo(path string, rs *conformance.ResultSet, cfg Config) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return WriteResultsCSVFile(path, rs)
	}
	return WriteResultsFile(path, rs, cfg)
}

// WriteTableTo is WriteResultsTo for encoded tables.
func WriteTableTo(path string, t *encoding.Table, cfg Config) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return WriteTableCSVFile(path, t)
	}
	return WriteTableParquetFile(path, t, cfg)
}
