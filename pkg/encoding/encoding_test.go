package encoding

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/logflow/conformflow/internal/model"
)

func makeLog() *model.Log {
	mk := func(id, label string, acts ...string) model.Trace {
		tr := model.Trace{CaseID: id, Attributes: []model.Attribute{{Key: "label", Value: label}}}
		for _, a := range acts {
			tr.Events = append(tr.Events, model.Event{CaseID: id, Activity: a})
		}
		return tr
	}
	return model.NewLog([]model.Trace{
		mk("10", "regular", "register", "check", "accept"),
		mk("2", "deviant", "register", "reject"),
		mk("3", "regular", "register", "check", "check", "accept"),
	})
}

func TestSimpleIndex(t *testing.T) {
	tbl, err := SimpleIndex(makeLog(), Options{PrefixLength: 3, Padding: true})
	if err != nil {
		t.Fatalf("SimpleIndex() error = %v", err)
	}
	wantCols := []string{"trace_id", "prefix_1", "prefix_2", "prefix_3", "label"}
	if !reflect.DeepEqual(tbl.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", tbl.Columns, wantCols)
	}
	want := [][]string{
		{"10", "register", "check", "accept", "regular"},
		{"2", "register", "reject", "0", "deviant"},
		{"3", "register", "check", "check", "regular"},
	}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Errorf("Rows = %v, want %v", tbl.Rows, want)
	}
}

func TestSimpleIndex_NoPadding(t *testing.T) {
	tbl, err := SimpleIndex(makeLog(), Options{PrefixLength: 3})
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := tbl.Column(ColTraceID)
	if !reflect.DeepEqual(ids, []string{"10", "3"}) {
		t.Errorf("trace ids = %v, want [10 3]", ids)
	}
}

func TestSimpleIndex_InvalidPrefix(t *testing.T) {
	if _, err := SimpleIndex(makeLog(), Options{}); !errors.Is(err, ErrInvalidPrefix) {
		t.Errorf("SimpleIndex() error = %v, want %v", err, ErrInvalidPrefix)
	}
}

func TestLabelEncoder_RoundTrip(t *testing.T) {
	tbl, err := SimpleIndex(makeLog(), Options{PrefixLength: 4, Padding: true})
	if err != nil {
		t.Fatal(err)
	}
	enc := NewLabelEncoder()
	enc.Fit(tbl)

	encoded, err := enc.Encode(tbl)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded.Rows[1][3] != "0" {
		t.Errorf("padding code = %q, want 0", encoded.Rows[1][3])
	}
	if encoded.Rows[0][0] != "10" {
		t.Errorf("trace_id changed to %q", encoded.Rows[0][0])
	}

	decoded, err := enc.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(decoded.Rows, tbl.Rows) {
		t.Errorf("Decode(Encode(t)) = %v, want %v", decoded.Rows, tbl.Rows)
	}
}

func TestLabelEncoder_LabelCodes(t *testing.T) {
	tbl := NewTable(ColTraceID, ColLabel)
	_ = tbl.Append([]string{"1", "deviant"}, []string{"2", "regular"})
	enc := NewLabelEncoder()
	enc.Fit(tbl)
	if c, _ := enc.Code(ColLabel, "regular"); c != 0 {
		t.Errorf("Code(regular) = %d, want 0", c)
	}
	if c, _ := enc.Code(ColLabel, "deviant"); c != 1 {
		t.Errorf("Code(deviant) = %d, want 1", c)
	}

	tbl2 := NewTable(ColTraceID, ColLabel)
	_ = tbl2.Append([]string{"1", "true"}, []string{"2", "false"})
	enc.Fit(tbl2)
	if got := enc.Categories(ColLabel); !reflect.DeepEqual(got, []string{"false", "true"}) {
		t.Errorf("Categories(label) = %v, want [false true]", got)
	}
}

func TestLabelEncoder_Unknown(t *testing.T) {
	tbl := NewTable(ColTraceID, "prefix_1", ColLabel)
	_ = tbl.Append([]string{"1", "a", "regular"})
	enc := NewLabelEncoder()
	enc.Fit(tbl)

	other := NewTable(ColTraceID, "prefix_1", ColLabel)
	_ = other.Append([]string{"2", "zzz", "regular"})
	if _, err := enc.Encode(other); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Encode() error = %v, want %v", err, ErrUnknownCategory)
	}

	bad := NewTable(ColTraceID, "prefix_1", ColLabel)
	_ = bad.Append([]string{"2", "9", "0"})
	if _, err := enc.Decode(bad); !errors.Is(err, ErrUnknownCode) {
		t.Errorf("Decode() error = %v, want %v", err, ErrUnknownCode)
	}
}

func TestSplit(t *testing.T) {
	tbl := NewTable(ColTraceID)
	for i := 0; i < 20; i++ {
		_ = tbl.Append([]string{fmt.Sprint(i)})
	}
	train, val, test, err := Split(tbl, 0.7, 0.15, 0.15)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if train.Len() != 14 || val.Len() != 3 || test.Len() != 3 {
		t.Errorf("Split() sizes = %d/%d/%d, want 14/3/3", train.Len(), val.Len(), test.Len())
	}
	if val.Rows[0][0] != "14" || test.Rows[0][0] != "17" {
		t.Errorf("split is not sequential: val starts %q, test starts %q", val.Rows[0][0], test.Rows[0][0])
	}

	if _, _, _, err := Split(tbl, 0.8, 0.2, 0.2); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("Split(>1) error = %v, want %v", err, ErrInvalidSplit)
	}
	if _, _, _, err := Split(tbl, -0.1, 0.5, 0.5); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("Split(negative) error = %v, want %v", err, ErrInvalidSplit)
	}
}

func TestToLog(t *testing.T) {
	tbl := NewTable(ColTraceID, "prefix_1", "prefix_2", ColLabel)
	_ = tbl.Append(
		[]string{"10", "register", "accept", "regular"},
		[]string{"2", "register", "0", "deviant"},
		[]string{"2", "duplicate", "row", "deviant"},
	)
	log, err := ToLog(tbl)
	if err != nil {
		t.Fatalf("ToLog() error = %v", err)
	}
	if log.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", log.Len())
	}
	first := log.Traces[0]
	if first.CaseID != "2" {
		t.Errorf("first trace = %q, want 2 (numeric order)", first.CaseID)
	}
	if got := first.Labels(); !reflect.DeepEqual(got, []string{"register", "other"}) {
		t.Errorf("Labels() = %v, want [register other]", got)
	}
	if v, _ := first.Attr("label"); v != "true" {
		t.Errorf("label = %q, want true", v)
	}
	if v, _ := log.Traces[1].Attr("label"); v != "false" {
		t.Errorf("label = %q, want false", v)
	}
	third := log.Traces[1].Events[0].Timestamp
	if want := PopulationStart.Add(2 * time.Hour).UnixNano(); third != want {
		t.Errorf("third event timestamp = %d, want %d", third, want)
	}
}

func TestFeaturesAndTargets(t *testing.T) {
	tbl := NewTable(ColTraceID, "prefix_1", "prefix_2", ColLabel)
	_ = tbl.Append([]string{"a", "1", "2", "0"}, []string{"b", "3", "0", "1"})
	X, err := Features(tbl)
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	if !reflect.DeepEqual(X, [][]float64{{1, 2}, {3, 0}}) {
		t.Errorf("Features() = %v", X)
	}
	y, err := Targets(tbl)
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}
	if !reflect.DeepEqual(y, []int{0, 1}) {
		t.Errorf("Targets() = %v, want [0 1]", y)
	}
}

func TestConcatMismatch(t *testing.T) {
	if _, err := Concat(NewTable("a"), NewTable("b")); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Concat() error = %v, want %v", err, ErrShapeMismatch)
	}
}
