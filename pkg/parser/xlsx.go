package parser

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/logflow/conformflow/internal/model"
	"github.com/xuri/excelize/v2"
)

// XLSXParser parses the first sheet of an Excel workbook. The first row is
// the header.
type XLSXParser struct {
	cfg Config
}

// NewXLSXParser creates a new XLSX parser.
func NewXLSXParser(cfg Config) *XLSXParser {
	return &XLSXParser{cfg: cfg.withDefaults()}
}

// Parse reads from an Excel file and sends parsed events to out.
// excelize needs random access, so non-file readers are buffered in memory.
func (p *XLSXParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	var (
		xlFile *excelize.File
		err    error
	)
	if f, ok := r.(*os.File); ok {
		xlFile, err = excelize.OpenFile(f.Name())
	} else {
		xlFile, err = excelize.OpenReader(r)
	}
	if err != nil {
		return fmt.Errorf("open xlsx: %w", err)
	}
	defer xlFile.Close()

	sheetName := xlFile.GetSheetName(0)
	if sheetName == "" {
		sheets := xlFile.GetSheetList()
		if len(sheets) == 0 {
			return fmt.Errorf("open xlsx: no sheets: %w", ErrMissingColumn)
		}
		sheetName = sheets[0]
	}

	rows, err := xlFile.Rows(sheetName)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return fmt.Errorf("xlsx sheet %q is empty: %w", sheetName, ErrMissingColumn)
	}
	header, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}

	caseIdx, ok := findColumn(colIdx, p.cfg.CaseIDColumn, "case_id", "Case ID", "CaseID")
	if !ok {
		return fmt.Errorf("case column %q: %w", p.cfg.CaseIDColumn, ErrMissingColumn)
	}
	actIdx, ok := findColumn(colIdx, p.cfg.ActivityColumn, "activity", "Activity")
	if !ok {
		return fmt.Errorf("activity column %q: %w", p.cfg.ActivityColumn, ErrMissingColumn)
	}
	tsIdx, ok := findColumn(colIdx, p.cfg.TimestampColumn, "timestamp", "Timestamp")
	if !ok {
		return fmt.Errorf("timestamp column %q: %w", p.cfg.TimestampColumn, ErrMissingColumn)
	}
	resIdx, _ := findColumn(colIdx, p.cfg.ResourceColumn, "resource", "Resource")

	for rows.Next() {
		if ctx.Err() != nil {
			return ErrContextCanceled
		}

		cols, err := rows.Columns()
		if err != nil || len(cols) == 0 {
			continue
		}
		if caseIdx >= len(cols) || actIdx >= len(cols) || cols[caseIdx] == "" || cols[actIdx] == "" {
			continue
		}

		ev := &model.Event{
			CaseID:   cols[caseIdx],
			Activity: cols[actIdx],
		}
		if tsIdx < len(cols) {
			if ts, err := ParseTimestamp(cols[tsIdx], p.cfg.TimestampFormat); err == nil {
				ev.Timestamp = ts
			}
		}
		if resIdx >= 0 && resIdx < len(cols) {
			ev.Resource = cols[resIdx]
		}
		for i, name := range header {
			if i == caseIdx || i == actIdx || i == tsIdx || i == resIdx || i >= len(cols) || cols[i] == "" {
				continue
			}
			ev.Attributes = append(ev.Attributes, model.Attribute{Key: name, Value: cols[i]})
		}

		if err := emit(ctx, out, ev); err != nil {
			return err
		}
	}

	return rows.Error()
}

// findColumn tries multiple column names and returns the first match.
func findColumn(colIdx map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if idx, ok := colIdx[name]; ok {
			return idx, true
		}
	}
	return -1, false
}
