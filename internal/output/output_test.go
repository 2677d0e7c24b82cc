package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

func testRecords() []listing.Joined {
	return []listing.Joined{
		listing.Join(listing.Listing{PartitionKey: "blr", Title: "Go Dev", DetailURL: "https://x/1", IsWalkIn: true},
			&listing.Detail{Description: "line one\nline, two", WalkInTime: "10 AM", WalkInVenue: "Hall B"}),
		listing.Join(listing.Listing{PartitionKey: "pune", Title: "QA", DetailURL: "https://x/2"}, nil),
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatCSV, "csv"},
		{"", "csv"},
		{FormatJSON, "json"},
		{FormatJSONL, "jsonl"},
		{FormatYAML, "yaml"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			var got string
			switch w.(type) {
			case *CSVWriter[listing.Joined]:
				got = "csv"
			case *JSONWriter[listing.Joined]:
				got = "json"
			case *JSONLWriter[listing.Joined]:
				got = "jsonl"
			case *YAMLWriter[listing.Joined]:
				got = "yaml"
			}
			if got != tt.want {
				t.Errorf("NewWriter(%q) = %T, want %s writer", tt.format, w, tt.want)
			}
		})
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("xml"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out.csv":        FormatCSV,
		"OUT.JSON":       FormatJSON,
		"dir/out.ndjson": FormatJSONL,
		"out.jsonl":      FormatJSONL,
		"out.yml":        FormatYAML,
		"out.txt":        "",
		"no-extension":   "",
	}
	for in, want := range tests {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- CSVWriter Tests ---

func TestCSVWriter_HeaderAndRows(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewCSVWriter[listing.Joined](buf, listing.Header)
	if err := w.WriteAll(testRecords()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(listing.Header, ",") {
		t.Errorf("header = %v, want %v", rows[0], listing.Header)
	}
	if rows[1][11] != "line one\nline, two" {
		t.Errorf("description round trip = %q", rows[1][11])
	}
	if rows[2][11] != listing.NotAvailable {
		t.Errorf("unmatched description = %q, want %q", rows[2][11], listing.NotAvailable)
	}
}

func TestCSVWriter_EmptyDatasetStillHasHeader(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewCSVWriter[listing.Joined](buf, listing.Header)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(listing.Header, ",") {
		t.Errorf("output = %q, want header only", got)
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_OutputsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter[listing.Joined](buf, true, "  ")
	for _, r := range testRecords() {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []listing.Joined
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a single JSON array: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[0].WalkInVenue != "Hall B" {
		t.Errorf("unexpected records: %+v", got)
	}
	if !strings.Contains(buf.String(), `"detail_url"`) {
		t.Error("expected snake_case keys")
	}
}

func TestJSONWriter_Compact(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter[listing.Joined](buf, false, "")
	_ = w.WriteAll(testRecords())
	_ = w.Close()

	if strings.Count(strings.TrimSpace(buf.String()), "\n") != 0 {
		t.Errorf("compact output should be one line, got %q", buf.String())
	}
}

func TestJSONWriter_EmptyDataset(t *testing.T) {
	buf := &bytes.Buffer{}
	_ = NewJSONWriter[listing.Joined](buf, true, "  ").Close()
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("output = %q, want []", got)
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_OneRecordPerLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter[listing.Joined](buf)
	if err := w.WriteAll(testRecords()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec listing.Joined
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}
	if rec.PartitionKey != "pune" {
		t.Errorf("PartitionKey = %q, want %q", rec.PartitionKey, "pune")
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_Sequence(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter[listing.Joined](buf)
	_ = w.WriteAll(testRecords())
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []listing.Joined
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(got) != 2 || !got[0].IsWalkIn {
		t.Errorf("unexpected records: %+v", got)
	}
}

// --- RecordWriter Tests ---

func TestRecordWriter_DetailStreamCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewRecordWriter[listing.Detail](buf, FormatCSV, listing.DetailHeader)
	if err != nil {
		t.Fatalf("NewRecordWriter() error = %v", err)
	}
	details := []listing.Detail{
		{DetailURL: "https://x/1", Description: "desc", WalkInTime: "N/A", WalkInVenue: "N/A", Attempts: 1},
		{DetailURL: "https://x/2", Description: listing.DescriptionFailed, Attempts: 3, Failed: true},
	}
	if err := w.WriteAll(details); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "detail_url" || rows[2][1] != listing.DescriptionFailed || rows[2][5] != "true" {
		t.Errorf("unexpected rows %q", rows)
	}
}

func TestRecordWriter_ListingStreamJSONL(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewRecordWriter[listing.Listing](buf, FormatJSONL, listing.ListingHeader)
	if err != nil {
		t.Fatalf("NewRecordWriter() error = %v", err)
	}
	if err := w.WriteAll([]listing.Listing{{PartitionKey: "blr", DetailURL: "https://x/1"}}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}

	var got listing.Listing
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.PartitionKey != "blr" || got.DetailURL != "https://x/1" {
		t.Errorf("unexpected listing %+v", got)
	}
}

// --- MultiWriter Tests ---

func TestMultiWriter_FansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	m := MultiWriter{NewJSONLWriter[listing.Joined](a), NewCSVWriter[listing.Joined](b, listing.Header)}

	if err := m.WriteAll(testRecords()); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

// --- PostgresWriter Tests ---

func TestUpsertSQL(t *testing.T) {
	q := upsertSQL("jobs")
	if !strings.Contains(q, `INSERT INTO "jobs"`) {
		t.Errorf("table not quoted: %s", q)
	}
	if !strings.Contains(q, "ON CONFLICT (partition_key, detail_url) DO UPDATE") {
		t.Errorf("missing upsert clause: %s", q)
	}
	if strings.Count(q, "$") != 13 {
		t.Errorf("expected 13 placeholders, got %d", strings.Count(q, "$"))
	}
}

func TestPostgresWriter_Integration(t *testing.T) {
	dsn := os.Getenv("JOBSWEEP_TEST_POSTGRES_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("JOBSWEEP_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	w, err := NewPostgresWriter(ctx, PostgresConfig{DSN: dsn, Table: "jobsweep_test", BatchSize: 1, RunID: "test"})
	if err != nil {
		t.Fatalf("NewPostgresWriter() error = %v", err)
	}
	recs := testRecords()
	if err := w.WriteAll(append(recs, recs...)); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
