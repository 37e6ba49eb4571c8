package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/billscout/internal/explorer"
	"github.com/jmylchreest/billscout/pkg/billing"
)

var started = time.Date(2024, time.September, 1, 9, 0, 0, 0, time.UTC)

func record(m time.Month, amount string, kind billing.Kind) billing.Record {
	return billing.Record{
		Date:        time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString(amount),
		Kind:        kind,
		Description: "Monthly bill",
		Source:      billing.SourceTable,
	}
}

func okResult() explorer.Result {
	h := billing.NewHistory([]billing.Record{
		record(time.July, "120", billing.KindBill),
		record(time.August, "131.2", billing.KindBill),
	}, "12-34567-89").WithStrategy("markup")
	return explorer.Result{History: h, Stop: explorer.StopEarly, Visited: 2, Duration: 4210 * time.Millisecond}
}

func testReport(label string) Report {
	return NewReport("01J0000000000000000000000", label, "https://portal.example.com/login", started, okResult(), nil)
}

// --- Report Tests ---

func TestNewReport_Success(t *testing.T) {
	r := testReport("home")

	if r.Status != StatusOK {
		t.Errorf("expected status %q, got %q", StatusOK, r.Status)
	}
	if len(r.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(r.Records))
	}
	if r.Records[0].Date != "2024-08-01" || r.Records[0].Amount != "131.20" {
		t.Errorf("expected newest record first with fixed amount, got %+v", r.Records[0])
	}
	if r.Current == nil || r.Current.Amount != "131.20" {
		t.Errorf("expected current 131.20, got %+v", r.Current)
	}
	if r.Previous == nil || r.Previous.Amount != "120.00" {
		t.Errorf("expected previous 120.00, got %+v", r.Previous)
	}
	if r.Duration != "4.21s" {
		t.Errorf("expected duration 4.21s, got %s", r.Duration)
	}
}

func TestNewReport_Statuses(t *testing.T) {
	empty := explorer.Result{History: billing.Sentinel(billing.ReasonNoLinks), Stop: explorer.StopNoCandidates}

	noData := NewReport("id", "", "https://portal.example.com", started, empty, nil)
	if noData.Status != StatusNoData || noData.Reason != billing.ReasonNoLinks {
		t.Errorf("expected no_data with reason, got %q (%q)", noData.Status, noData.Reason)
	}
	if noData.Records == nil {
		t.Error("expected empty records slice, not nil")
	}

	failed := NewReport("id", "", "https://portal.example.com", started, empty, errors.New("login failed"))
	if failed.Status != StatusError || failed.Error != "login failed" {
		t.Errorf("expected error status, got %q (%q)", failed.Status, failed.Error)
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Formats(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
		{FormatText, "*output.TextWriter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			var got string
			switch w.(type) {
			case *JSONWriter:
				got = "*output.JSONWriter"
			case *JSONLWriter:
				got = "*output.JSONLWriter"
			case *YAMLWriter:
				got = "*output.YAMLWriter"
			case *TextWriter:
				got = "*output.TextWriter"
			}
			if got != tt.want {
				t.Errorf("expected %s, got %T", tt.want, w)
			}
		})
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("jsonl"); err != nil || f != FormatJSONL {
		t.Errorf("expected jsonl, got %q (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_SingleReportIsObject(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")

	if err := w.Write(testReport("home")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.Label != "home" || got.AccountNumber != "12-34567-89" {
		t.Errorf("unexpected report: %+v", got)
	}
	if !strings.Contains(buf.String(), `"amount": "131.20"`) {
		t.Errorf("expected amounts as fixed-point strings, got %s", buf.String())
	}
}

func TestJSONWriter_MultipleReportsAreArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	if err := w.WriteAll([]Report{testReport("a"), testReport("b")}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(got) != 2 || got[0].Label != "a" || got[1].Label != "b" {
		t.Errorf("unexpected reports: %+v", got)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 1 {
		t.Errorf("expected compact single line, got %d lines", len(lines))
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, false, "").Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("expected [], got %q", got)
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_StreamsLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := w.Write(testReport("first")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected Write to flush immediately")
	}
	if err := w.Write(testReport("second")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var r Report
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestJSONLWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONLWriter(buf).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_RoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	if err := w.WriteAll([]Report{testReport("a"), testReport("b")}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got []Report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(got))
	}
	if got[0].Current == nil || got[0].Current.Amount != "131.20" {
		t.Errorf("expected current amount to survive, got %+v", got[0].Current)
	}
}

// --- TextWriter Tests ---

func TestTextWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTextWriter(buf)

	if err := w.Write(testReport("home")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	empty := explorer.Result{History: billing.Sentinel(billing.ReasonBlocked), Visited: 1}
	if err := w.Write(NewReport("id", "", "https://portal.example.com", started, empty, nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"home [ok] 2 records, 2 pages in 4.21s",
		"current:  131.20 on 2024-08-01",
		"https://portal.example.com [no_data] 0 records, 1 page",
		"reason:   " + billing.ReasonBlocked,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

// --- Option Tests ---

func TestWriterOptions(t *testing.T) {
	cfg := &writerConfig{pretty: true}
	WithPretty(false)(cfg)
	WithIndent("\t")(cfg)

	if cfg.pretty {
		t.Error("WithPretty(false) did not unset pretty")
	}
	if cfg.indent != "\t" {
		t.Errorf("expected indent '\\t', got %q", cfg.indent)
	}
}
