package ner

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Tokenizer converts text to model inputs while keeping byte offsets so
// that token-level labels can be projected back onto the original text.
// It performs word-level tokenization; subword splitting is left to the
// model's vocabulary coverage.
type Tokenizer struct {
	Vocab         map[string]int
	SpecialTokens map[string]int
	MaxLength     int
}

// BERT-style special token IDs.
var defaultSpecialTokens = map[string]int{
	"[PAD]": 0,
	"[UNK]": 100,
	"[CLS]": 101,
	"[SEP]": 102,
}

// NewTokenizer builds a tokenizer, loading a vocab file when one exists
// next to the model. A missing vocab is not an error: out-of-vocabulary
// words map to [UNK], which is sufficient for label projection because
// spans are recovered from offsets, not from token identity.
func NewTokenizer(vocabPath string, maxLength int) (*Tokenizer, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("max length must be positive, got %d", maxLength)
	}
	t := &Tokenizer{
		Vocab:         make(map[string]int),
		SpecialTokens: defaultSpecialTokens,
		MaxLength:     maxLength,
	}
	if vocabPath == "" {
		return t, nil
	}
	f, err := os.Open(vocabPath)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	id := 0
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			t.Vocab[word] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}
	return t, nil
}

// wordSpan is a token candidate with its byte range in the source text.
type wordSpan struct {
	text  string
	start int
	end   int
}

// splitWords segments text into words and standalone punctuation, keeping
// byte offsets. Offsets index the original (case-preserved) text.
func splitWords(text string) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			if start >= 0 {
				spans = append(spans, wordSpan{text[start:i], start, i})
				start = -1
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			if start >= 0 {
				spans = append(spans, wordSpan{text[start:i], start, i})
				start = -1
			}
			end := i + len(string(r))
			spans = append(spans, wordSpan{text[i:end], i, end})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{text[start:], start, len(text)})
	}
	return spans
}

// Tokenize converts text to padded model inputs.
func (t *Tokenizer) Tokenize(text string) (*TokenizedInput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot tokenize empty text")
	}

	words := splitWords(text)

	// Start with [CLS]
	tokenIDs := []int32{int32(t.SpecialTokens["[CLS]"])}
	attentionMask := []int32{1}
	offsets := [][2]int{{0, 0}}

	truncated := false
	for _, w := range words {
		if len(tokenIDs) >= t.MaxLength-1 {
			truncated = true
			break
		}
		if id, ok := t.Vocab[strings.ToLower(w.text)]; ok {
			tokenIDs = append(tokenIDs, int32(id))
		} else {
			tokenIDs = append(tokenIDs, int32(t.SpecialTokens["[UNK]"]))
		}
		attentionMask = append(attentionMask, 1)
		offsets = append(offsets, [2]int{w.start, w.end})
	}

	// Add [SEP]
	tokenIDs = append(tokenIDs, int32(t.SpecialTokens["[SEP]"]))
	attentionMask = append(attentionMask, 1)
	offsets = append(offsets, [2]int{0, 0})

	length := len(tokenIDs)

	// Pad to max length
	for len(tokenIDs) < t.MaxLength {
		tokenIDs = append(tokenIDs, int32(t.SpecialTokens["[PAD]"]))
		attentionMask = append(attentionMask, 0)
		offsets = append(offsets, [2]int{0, 0})
	}

	return &TokenizedInput{
		InputIDs:      tokenIDs,
		AttentionMask: attentionMask,
		TokenTypeIDs:  make([]int32, t.MaxLength),
		Offsets:       offsets,
		Length:        length,
		OriginalText:  text,
		Truncated:     truncated,
	}, nil
}
