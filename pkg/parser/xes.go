package parser

import (
	"bufio"
	"bytes"
	"context"
	"html"
	"io"
	"strconv"

	"github.com/logflow/conformflow/internal/model"
)

// CasePrefix is prepended to trace-level attribute keys when they are
// copied onto events.
const CasePrefix = "case:"

// XML element names
var (
	xmlTrace  = []byte("trace")
	xmlEvent  = []byte("event")
	xmlGlobal = []byte("global")
	xmlString = []byte("string")
	xmlDate   = []byte("date")
	xmlInt    = []byte("int")
	xmlFloat  = []byte("float")
	xmlBool   = []byte("boolean")
	xmlID     = []byte("id")
)

var (
	keyPrefix   = []byte(`key="`)
	valuePrefix = []byte(`value="`)
)

type xesState uint8

const (
	stateLog xesState = iota
	stateGlobal
	stateTrace
	stateEvent
)

// XESParser implements streaming XES parsing using a tag-level state machine.
// Events are buffered per trace so that trace attributes declared after the
// first event still reach every event of the case.
type XESParser struct {
	cfg Config
}

// NewXESParser creates a new XES parser.
func NewXESParser(cfg Config) *XESParser {
	return &XESParser{cfg: cfg.withDefaults()}
}

type xesTrace struct {
	caseID string
	attrs  []model.Attribute
	events []*model.Event
}

// Parse implements the Parser interface.
func (p *XESParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

	state := stateLog
	var trace *xesTrace
	var current *model.Event
	traceNo := 0
	sawLog := false

	for {
		if ctx.Err() != nil {
			return ErrContextCanceled
		}

		tag, err := reader.ReadBytes('>')
		if err != nil && err != io.EOF {
			return err
		}
		if len(tag) == 0 && err == io.EOF {
			break
		}

		if i := bytes.IndexByte(tag, '<'); i >= 0 {
			tag = tag[i:]
		} else {
			tag = nil
		}

		switch {
		case len(tag) == 0:

		case isOpenTag(tag, []byte("log")):
			sawLog = true

		case isOpenTag(tag, xmlGlobal):
			if !isSelfClosing(tag) {
				state = stateGlobal
			}

		case isCloseTag(tag, xmlGlobal):
			state = stateLog

		case state == stateGlobal:

		case isOpenTag(tag, xmlTrace):
			state = stateTrace
			traceNo++
			trace = &xesTrace{}

		case isCloseTag(tag, xmlTrace):
			if trace == nil {
				return ErrInvalidXES
			}
			if trace.caseID == "" {
				trace.caseID = strconv.Itoa(traceNo)
			}
			if len(trace.events) == 0 {
				marker := &model.Event{CaseID: trace.caseID, Attributes: trace.attrs, CaseOnly: true}
				if err := emit(ctx, out, marker); err != nil {
					return err
				}
			}
			for _, ev := range trace.events {
				ev.CaseID = trace.caseID
				ev.Attributes = append(ev.Attributes, trace.attrs...)
				if err := emit(ctx, out, ev); err != nil {
					return err
				}
			}
			trace = nil
			state = stateLog

		case isOpenTag(tag, xmlEvent):
			if trace == nil {
				return ErrInvalidXES
			}
			current = &model.Event{}
			if isSelfClosing(tag) {
				trace.events = append(trace.events, current)
				current = nil
			} else {
				state = stateEvent
			}

		case isCloseTag(tag, xmlEvent):
			if current != nil && trace != nil {
				trace.events = append(trace.events, current)
			}
			current = nil
			state = stateTrace

		case state == stateTrace && isAttributeTag(tag):
			key, value, ok := extractAttribute(tag)
			if !ok {
				break
			}
			if key == model.KeyConceptName {
				trace.caseID = value
			}
			trace.attrs = append(trace.attrs, model.Attribute{
				Key:   CasePrefix + key,
				Value: value,
				Type:  attributeType(tag),
			})

		case state == stateEvent && isAttributeTag(tag):
			p.setEventAttribute(tag, current)
		}

		if err == io.EOF {
			break
		}
	}

	if !sawLog {
		return ErrInvalidXES
	}
	return nil
}

// isOpenTag checks if tag opens the given element.
func isOpenTag(tag, element []byte) bool {
	if len(tag) < len(element)+2 || tag[0] != '<' {
		return false
	}
	if !bytes.HasPrefix(tag[1:], element) {
		return false
	}
	next := 1 + len(element)
	if next >= len(tag) {
		return true
	}
	c := tag[next]
	return c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/'
}

// isCloseTag checks if tag is </element>.
func isCloseTag(tag, element []byte) bool {
	if len(tag) < len(element)+3 || tag[0] != '<' || tag[1] != '/' {
		return false
	}
	return bytes.HasPrefix(tag[2:], element)
}

func isSelfClosing(tag []byte) bool {
	return len(tag) >= 2 && tag[len(tag)-2] == '/'
}

// isAttributeTag checks if tag is an XES attribute element.
func isAttributeTag(tag []byte) bool {
	return isOpenTag(tag, xmlString) ||
		isOpenTag(tag, xmlDate) ||
		isOpenTag(tag, xmlInt) ||
		isOpenTag(tag, xmlFloat) ||
		isOpenTag(tag, xmlBool) ||
		isOpenTag(tag, xmlID)
}

// extractAttribute extracts key and value from an XES attribute element.
func extractAttribute(tag []byte) (key, value string, ok bool) {
	k := attrValue(tag, keyPrefix)
	v := attrValue(tag, valuePrefix)
	if k == nil || v == nil {
		return "", "", false
	}
	return html.UnescapeString(string(k)), html.UnescapeString(string(v)), true
}

func attrValue(tag, prefix []byte) []byte {
	idx := bytes.Index(tag, prefix)
	if idx < 0 {
		return nil
	}
	start := idx + len(prefix)
	end := bytes.IndexByte(tag[start:], '"')
	if end < 0 {
		return nil
	}
	return tag[start : start+end]
}

func (p *XESParser) setEventAttribute(tag []byte, ev *model.Event) {
	if ev == nil {
		return
	}
	key, value, ok := extractAttribute(tag)
	if !ok {
		return
	}

	switch key {
	case model.KeyConceptName:
		ev.Activity = value
	case model.KeyTimestamp:
		if ts, err := ParseTimestamp(value, p.cfg.TimestampFormat); err == nil {
			ev.Timestamp = ts
		}
	case model.KeyResource:
		ev.Resource = value
	default:
		ev.Attributes = append(ev.Attributes, model.Attribute{
			Key:   key,
			Value: value,
			Type:  attributeType(tag),
		})
	}
}

// attributeType determines the attribute type from the XML element name.
func attributeType(tag []byte) model.AttrType {
	switch {
	case isOpenTag(tag, xmlDate):
		return model.AttrTypeTimestamp
	case isOpenTag(tag, xmlInt):
		return model.AttrTypeInt
	case isOpenTag(tag, xmlFloat):
		return model.AttrTypeFloat
	case isOpenTag(tag, xmlBool):
		return model.AttrTypeBool
	default:
		return model.AttrTypeString
	}
}
