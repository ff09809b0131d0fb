package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/pii"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	engine := pii.NewEngine(zap.NewNop())
	return NewPipeline(engine, pii.DefaultSettings(), DefaultConfig(), zap.NewNop())
}

func TestProcessFileCSV(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "corpus.csv")
	output := filepath.Join(dir, "out.csv")

	content := "id,text\n" +
		"doc-1,Statement of John Doe regarding the incident.\n" +
		"doc-2,John Doe repeated his account to maria@example.com.\n"
	if err := os.WriteFile(input, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	p := newTestPipeline(t)
	result, err := p.ProcessFile(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.TotalRecords != 2 || result.ProcessedOK != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.TotalEntities == 0 {
		t.Fatal("expected entities to be found")
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(rows) != 3 { // header + 2 records
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for _, row := range rows[1:] {
		if !strings.Contains(row[1], "[PERSON-A]") {
			t.Errorf("row %q missing shared person token: %q", row[0], row[1])
		}
		if strings.Contains(row[1], "John Doe") {
			t.Errorf("row %q still contains the original name", row[0])
		}
	}
	if !strings.Contains(rows[2][1], "[EMAIL-1]") {
		t.Errorf("email not replaced: %q", rows[2][1])
	}
}

func TestProcessFileJSONLines(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "corpus.json")
	output := filepath.Join(dir, "out.json")

	content := `{"id":"a","text":"Contact petra.klein@example.org for details."}` + "\n" +
		`{"id":"b","text":"No sensitive content here."}` + "\n"
	if err := os.WriteFile(input, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	p := newTestPipeline(t)
	result, err := p.ProcessFile(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.TotalRecords != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var first, second DocumentRecord
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if !strings.Contains(first.Text, "[EMAIL-1]") {
		t.Errorf("email not replaced: %q", first.Text)
	}
	if second.Text != "No sensitive content here." {
		t.Errorf("clean text modified: %q", second.Text)
	}
}

func TestValidateRecordSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "corpus.csv")
	output := filepath.Join(dir, "out.csv")

	content := "id,text\n" +
		"doc-1,   \n" +
		"doc-2,Real content from jan@example.com.\n"
	if err := os.WriteFile(input, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	p := newTestPipeline(t)
	result, err := p.ProcessFile(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.TotalRecords != 1 {
		t.Errorf("blank record not skipped: %+v", result)
	}
}

func TestDetectFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"corpus.csv":     FormatCSV,
		"corpus.parquet": FormatParquet,
		"corpus.json":    FormatJSON,
		"corpus.jsonl":   FormatJSON,
		"corpus":         FormatCSV,
	}
	for name, want := range cases {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestDefaultOutputNaming(t *testing.T) {
	// Round-trip through the pipeline keeps the input untouched.
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(input, []byte("id,text\n1,hello\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	p := newTestPipeline(t)
	if _, err := p.ProcessFile(context.Background(), input, filepath.Join(dir, "out.csv")); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	data, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	if string(data) != "id,text\n1,hello\n" {
		t.Error("input file was modified")
	}
}
