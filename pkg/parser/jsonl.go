package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/logflow/conformflow/internal/model"
)

// JSONLParser parses newline-delimited JSON. Each line is one event object;
// keys are mapped through the configured column names.
type JSONLParser struct {
	cfg Config
}

// NewJSONLParser creates a new JSONL parser.
func NewJSONLParser(cfg Config) *JSONLParser {
	return &JSONLParser{cfg: cfg.withDefaults()}
}

// Parse implements the Parser interface. Blank lines and lines that do not
// start an object are skipped.
func (p *JSONLParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

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

		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] == '{' {
			ev, ok := p.decode(line)
			if ok {
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

func (p *JSONLParser) decode(line []byte) (*model.Event, bool) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}

	ev := &model.Event{}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := obj[key]
		if raw == nil {
			continue
		}
		value, typ := jsonScalar(raw)

		switch key {
		case p.cfg.CaseIDColumn:
			ev.CaseID = value
		case p.cfg.ActivityColumn:
			ev.Activity = value
		case p.cfg.TimestampColumn:
			if ts, err := ParseTimestamp(value, p.cfg.TimestampFormat); err == nil {
				ev.Timestamp = ts
			}
		case p.cfg.ResourceColumn:
			ev.Resource = value
		default:
			ev.Attributes = append(ev.Attributes, model.Attribute{Key: key, Value: value, Type: typ})
		}
	}

	if ev.CaseID == "" || ev.Activity == "" {
		return nil, false
	}
	return ev, true
}

func jsonScalar(v any) (string, model.AttrType) {
	switch x := v.(type) {
	case string:
		return x, model.AttrTypeString
	case bool:
		if x {
			return "true", model.AttrTypeBool
		}
		return "false", model.AttrTypeBool
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return x.String(), model.AttrTypeInt
		}
		return x.String(), model.AttrTypeFloat
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), model.AttrTypeString
		}
		return string(b), model.AttrTypeString
	}
}
