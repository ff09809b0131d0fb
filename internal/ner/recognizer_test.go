package ner

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/pii"
)

func TestSplitWords(t *testing.T) {
	t.Run("WordsAndPunctuation", func(t *testing.T) {
		spans := splitWords("John Smith, plaintiff.")
		want := []struct {
			text  string
			start int
			end   int
		}{
			{"John", 0, 4},
			{"Smith", 5, 10},
			{",", 10, 11},
			{"plaintiff", 12, 21},
			{".", 21, 22},
		}
		if len(spans) != len(want) {
			t.Fatalf("got %d spans, want %d: %v", len(spans), len(want), spans)
		}
		for i, w := range want {
			if spans[i].text != w.text || spans[i].start != w.start || spans[i].end != w.end {
				t.Errorf("span %d = %+v, want %+v", i, spans[i], w)
			}
		}
	})

	t.Run("TrailingWord", func(t *testing.T) {
		spans := splitWords("hello world")
		if len(spans) != 2 || spans[1].text != "world" || spans[1].end != 11 {
			t.Fatalf("unexpected spans: %v", spans)
		}
	})
}

func TestTokenizer(t *testing.T) {
	tok, err := NewTokenizer("", 8)
	if err != nil {
		t.Fatalf("NewTokenizer: %v", err)
	}

	t.Run("PadsToMaxLength", func(t *testing.T) {
		in, err := tok.Tokenize("one two")
		if err != nil {
			t.Fatalf("Tokenize: %v", err)
		}
		if len(in.InputIDs) != 8 || len(in.AttentionMask) != 8 || len(in.Offsets) != 8 {
			t.Fatalf("inputs not padded to max length: %d/%d/%d",
				len(in.InputIDs), len(in.AttentionMask), len(in.Offsets))
		}
		// CLS + 2 words + SEP
		if in.Length != 4 {
			t.Errorf("Length = %d, want 4", in.Length)
		}
		if in.Truncated {
			t.Error("short input reported truncated")
		}
		if in.Offsets[1] != [2]int{0, 3} || in.Offsets[2] != [2]int{4, 7} {
			t.Errorf("unexpected word offsets: %v", in.Offsets[:4])
		}
	})

	t.Run("Truncates", func(t *testing.T) {
		in, err := tok.Tokenize("a b c d e f g h i j")
		if err != nil {
			t.Fatalf("Tokenize: %v", err)
		}
		if !in.Truncated {
			t.Error("long input not reported truncated")
		}
		if len(in.InputIDs) != 8 {
			t.Errorf("len(InputIDs) = %d, want 8", len(in.InputIDs))
		}
	})

	t.Run("RejectsEmpty", func(t *testing.T) {
		if _, err := tok.Tokenize("   "); err == nil {
			t.Error("expected error for blank input")
		}
	})
}

func TestDecodeSpans(t *testing.T) {
	text := "John Smith works"
	tok := &TokenizedInput{
		Offsets: [][2]int{{0, 0}, {0, 4}, {5, 10}, {11, 16}, {0, 0}},
	}

	t.Run("FoldsBIOIntoSpan", func(t *testing.T) {
		preds := []TokenPrediction{
			{Label: labelO},
			{Label: labelBPerson, Score: 0.9},
			{Label: labelIPerson, Score: 0.8},
			{Label: labelO, Score: 0.99},
			{Label: labelO},
		}
		got := decodeSpans(text, tok, preds)
		if len(got) != 1 {
			t.Fatalf("got %d entities, want 1: %v", len(got), got)
		}
		e := got[0]
		if e.Text != "John Smith" || e.Start != 0 || e.End != 10 || e.Type != pii.Person {
			t.Errorf("unexpected entity: %+v", e)
		}
		if math.Abs(e.Confidence-0.85) > 1e-6 {
			t.Errorf("Confidence = %f, want mean 0.85", e.Confidence)
		}
		if e.Source != pii.SourceRecognizer {
			t.Errorf("Source = %q, want recognizer", e.Source)
		}
	})

	t.Run("TypeChangeClosesSpan", func(t *testing.T) {
		preds := []TokenPrediction{
			{Label: labelO},
			{Label: labelBPerson, Score: 0.9},
			{Label: labelBOrganization, Score: 0.7},
			{Label: labelO},
			{Label: labelO},
		}
		got := decodeSpans(text, tok, preds)
		if len(got) != 2 {
			t.Fatalf("got %d entities, want 2: %v", len(got), got)
		}
		if got[0].Type != pii.Person || got[0].Text != "John" {
			t.Errorf("first entity = %+v", got[0])
		}
		if got[1].Type != pii.Organization || got[1].Text != "Smith" {
			t.Errorf("second entity = %+v", got[1])
		}
	})

	t.Run("DanglingIOpensSpan", func(t *testing.T) {
		preds := []TokenPrediction{
			{Label: labelO},
			{Label: labelILocation, Score: 0.6},
			{Label: labelO},
			{Label: labelO},
			{Label: labelO},
		}
		got := decodeSpans(text, tok, preds)
		if len(got) != 1 || got[0].Type != pii.Location || got[0].Text != "John" {
			t.Fatalf("unexpected entities: %v", got)
		}
	})
}

func TestHeuristicTagger(t *testing.T) {
	tagger := newHeuristicTagger()

	cases := []struct {
		name     string
		text     string
		wantText string
		wantType pii.EntityType
	}{
		{"RoleIntroducesPerson", "The plaintiff John Doe submitted evidence.", "John Doe", pii.Person},
		{"EmployerIsOrganization", "She was employed by Acme Holdings until 2020.", "Acme Holdings", pii.Organization},
		{"ResidenceIsLocation", "The witness, residing in Amsterdam, appeared in person.", "Amsterdam", pii.Location},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tagger.Tag(tc.text)
			found := false
			for _, e := range got {
				if e.Text == tc.wantText && e.Type == tc.wantType {
					found = true
					if e.Source != pii.SourceRecognizer {
						t.Errorf("Source = %q, want recognizer", e.Source)
					}
					if e.Confidence <= 0 || e.Confidence >= 0.75 {
						t.Errorf("fallback confidence %f outside expected band", e.Confidence)
					}
				}
			}
			if !found {
				t.Errorf("entity %q (%s) not found in %v", tc.wantText, tc.wantType, got)
			}
		})
	}

	t.Run("NoCueNoEntity", func(t *testing.T) {
		if got := tagger.Tag("Nothing of interest happens here."); len(got) != 0 {
			t.Errorf("expected no entities, got %v", got)
		}
	})

	t.Run("CaptureStopsAtLowercase", func(t *testing.T) {
		// Lowercase words after the name must never extend the span.
		const text = "Plaintiff John Doe submitted evidence to the court."
		got := tagger.Tag(text)
		if len(got) != 1 {
			t.Fatalf("expected one entity, got %v", got)
		}
		if got[0].Text != "John Doe" {
			t.Errorf("Text = %q, want %q", got[0].Text, "John Doe")
		}
		if got[0].Start != 10 || got[0].End != 18 {
			t.Errorf("span = [%d,%d), want [10,18)", got[0].Start, got[0].End)
		}
	})
}

func TestRecognizerFallback(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.ModelPath = "/nonexistent/model.onnx"

	t.Run("FallbackServesDetections", func(t *testing.T) {
		r, err := NewRecognizer(cfg, zap.NewNop(), nil)
		if err != nil {
			t.Fatalf("NewRecognizer: %v", err)
		}
		if !r.Ready() {
			t.Fatal("recognizer with fallback should be ready")
		}
		got, err := r.Detect(context.Background(), "The defendant Jane Roe denied the claim.", "en")
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if len(got) == 0 {
			t.Fatal("expected fallback detection")
		}
	})

	t.Run("DisabledFallbackNotReady", func(t *testing.T) {
		cfg := cfg
		cfg.UseFallback = false
		r, err := NewRecognizer(cfg, zap.NewNop(), nil)
		if err != nil {
			t.Fatalf("NewRecognizer: %v", err)
		}
		if r.Ready() {
			t.Error("recognizer without backend or fallback should not be ready")
		}
		if _, err := r.Detect(context.Background(), "some text", "en"); err == nil {
			t.Error("expected error from unready recognizer")
		}
	})

	t.Run("EmptyTextNoError", func(t *testing.T) {
		r, err := NewRecognizer(cfg, zap.NewNop(), nil)
		if err != nil {
			t.Fatalf("NewRecognizer: %v", err)
		}
		got, err := r.Detect(context.Background(), "  ", "en")
		if err != nil || got != nil {
			t.Errorf("Detect(blank) = %v, %v; want nil, nil", got, err)
		}
	})
}
