package parser

import (
	"bufio"
	"context"
	"io"

	"github.com/logflow/conformflow/internal/model"
)

// CSVParser parses flat CSV event logs line by line with a byte-level
// field scanner.
type CSVParser struct {
	cfg Config
}

// NewCSVParser creates a new CSV parser.
func NewCSVParser(cfg Config) *CSVParser {
	return &CSVParser{cfg: cfg.withDefaults()}
}

// Parse implements the Parser interface. Rows with too few fields or an
// unparseable timestamp are skipped.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

	headerLine, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return err
	}
	headerLine = trimBOM(trimLineEnding(headerLine))
	if len(headerLine) == 0 {
		return ErrInvalidCSV
	}

	columns := splitFields(headerLine, p.cfg.Delimiter)
	colMap := make(map[string]int, len(columns))
	for i, col := range columns {
		colMap[col] = i
	}

	caseIdx, ok := colMap[p.cfg.CaseIDColumn]
	if !ok {
		return ErrMissingColumn
	}
	actIdx, ok := colMap[p.cfg.ActivityColumn]
	if !ok {
		return ErrMissingColumn
	}
	tsIdx, ok := colMap[p.cfg.TimestampColumn]
	if !ok {
		return ErrMissingColumn
	}
	resIdx := -1
	if i, ok := colMap[p.cfg.ResourceColumn]; ok && p.cfg.ResourceColumn != "" {
		resIdx = i
	}

	for {
		if ctx.Err() != nil {
			return ErrContextCanceled
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}

		line = trimLineEnding(line)
		if len(line) > 0 {
			fields := splitFields(line, p.cfg.Delimiter)
			if ev, ok := p.buildEvent(columns, fields, caseIdx, actIdx, tsIdx, resIdx); ok {
				if err := emit(ctx, out, ev); err != nil {
					return err
				}
			}
		}

		if err == io.EOF {
			break
		}
	}

	return nil
}

func (p *CSVParser) buildEvent(columns, fields []string, caseIdx, actIdx, tsIdx, resIdx int) (*model.Event, bool) {
	if len(fields) <= caseIdx || len(fields) <= actIdx || len(fields) <= tsIdx {
		return nil, false
	}
	ts, err := ParseTimestamp(fields[tsIdx], p.cfg.TimestampFormat)
	if err != nil {
		return nil, false
	}

	ev := &model.Event{
		CaseID:    fields[caseIdx],
		Activity:  fields[actIdx],
		Timestamp: ts,
	}
	if resIdx >= 0 && resIdx < len(fields) {
		ev.Resource = fields[resIdx]
	}

	for i, col := range columns {
		if i == caseIdx || i == actIdx || i == tsIdx || i == resIdx {
			continue
		}
		if i < len(fields) && fields[i] != "" {
			ev.Attributes = append(ev.Attributes, model.Attribute{
				Key:   col,
				Value: fields[i],
				Type:  model.AttrTypeString,
			})
		}
	}
	return ev, true
}

// CSV field scanner states.
const (
	fieldStart = iota
	inField
	inQuoted
	quoteInQuoted
)

// splitFields splits one CSV record. Quoted fields may contain the
// delimiter and doubled quotes. A stray character after a closing quote is
// kept as part of the field.
func splitFields(line []byte, delim byte) []string {
	fields := make([]string, 0, 16)
	buf := make([]byte, 0, 64)
	state := fieldStart

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch state {
		case fieldStart:
			switch c {
			case '"':
				state = inQuoted
			case delim:
				fields = append(fields, "")
			default:
				buf = append(buf, c)
				state = inField
			}
		case inField:
			if c == delim {
				fields = append(fields, string(buf))
				buf = buf[:0]
				state = fieldStart
			} else {
				buf = append(buf, c)
			}
		case inQuoted:
			if c == '"' {
				state = quoteInQuoted
			} else {
				buf = append(buf, c)
			}
		case quoteInQuoted:
			switch c {
			case '"':
				buf = append(buf, '"')
				state = inQuoted
			case delim:
				fields = append(fields, string(buf))
				buf = buf[:0]
				state = fieldStart
			default:
				buf = append(buf, c)
				state = inField
			}
		}
	}
	fields = append(fields, string(buf))
	return fields
}

// trimLineEnding removes trailing \n and \r characters.
func trimLineEnding(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

func trimBOM(line []byte) []byte {
	if len(line) >= 3 && line[0] == 0xEF && line[1] == 0xBB && line[2] == 0xBF {
		return line[3:]
	}
	return line
}
