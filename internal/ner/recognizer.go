package ner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/cache"
	"github.com/lexredact/lexredact/internal/pii"
)

// Recognizer finds contextual entities (people, organizations, locations,
// dates) that have no fixed written form. It runs a token-classification
// model when a backend is available and falls back to contextual cue rules
// otherwise. It implements pii.Recognizer.
type Recognizer struct {
	config    ModelConfig
	logger    *zap.Logger
	backend   InferenceBackend
	tokenizer *Tokenizer
	fallback  *heuristicTagger
	cache     *cache.DetectionCache

	mu         sync.RWMutex
	detections int64
	startTime  time.Time
}

// NewRecognizer builds a recognizer. A nil detection cache disables
// caching. When the model backend cannot be initialized (wrong build tags,
// missing model file) and UseFallback is set, the cue-rule fallback serves
// detections instead; with UseFallback off the recognizer reports not ready
// and the engine degrades to pattern-only results.
func NewRecognizer(config ModelConfig, logger *zap.Logger, detectionCache *cache.DetectionCache) (*Recognizer, error) {
	r := &Recognizer{
		config:    config,
		logger:    logger,
		cache:     detectionCache,
		startTime: time.Now(),
	}

	backend := NewInferenceBackend(logger, config.ModelPath)
	if backend != nil && backend.IsReady() {
		tokenizer, err := NewTokenizer(vocabPathFor(config.ModelPath), config.MaxLength)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
		}
		r.backend = backend
		r.tokenizer = tokenizer
		logger.Info("NER model backend ready",
			zap.String("model", config.ModelPath),
			zap.Int("max_length", config.MaxLength))
	} else if config.UseFallback {
		r.fallback = newHeuristicTagger()
		logger.Info("NER model backend unavailable, using cue-rule fallback",
			zap.String("model", config.ModelPath))
	} else {
		logger.Warn("NER model backend unavailable and fallback disabled",
			zap.String("model", config.ModelPath))
	}

	return r, nil
}

// vocabPathFor returns the vocab file expected next to the model.
func vocabPathFor(modelPath string) string {
	if modelPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(modelPath), "vocab.txt")
}

// Ready reports whether the recognizer can serve detections.
func (r *Recognizer) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.backend != nil && r.backend.IsReady() {
		return true
	}
	return r.fallback != nil
}

// Detect returns contextual entities found in the text. Results are cached
// per (language, text) when a detection cache is configured.
func (r *Recognizer) Detect(ctx context.Context, text, language string) ([]pii.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if !r.Ready() {
		return nil, fmt.Errorf("recognizer not ready")
	}

	if r.cache != nil {
		if entities, ok := r.cache.Get(ctx, language, text); ok {
			return entities, nil
		}
	}

	start := time.Now()
	var entities []pii.Entity
	var err error
	if r.backend != nil && r.backend.IsReady() {
		entities, err = r.detectModel(ctx, text)
	} else {
		entities = r.fallback.Tag(text)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.detections++
	r.mu.Unlock()

	r.logger.Debug("NER detection completed",
		zap.Int("entities", len(entities)),
		zap.String("language", language),
		zap.Duration("duration", time.Since(start)))

	if r.cache != nil {
		// Best effort; a failed write must not fail the detection.
		_ = r.cache.Set(ctx, language, text, entities)
	}
	return entities, nil
}

// detectModel tokenizes the text, runs the backend and projects BIO labels
// back onto byte spans.
func (r *Recognizer) detectModel(ctx context.Context, text string) ([]pii.Entity, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	tok, err := r.tokenizer.Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}
	preds, err := r.backend.TagBatch(ctx, []*TokenizedInput{tok})
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(preds) != 1 {
		return nil, fmt.Errorf("unexpected prediction count %d", len(preds))
	}
	return decodeSpans(text, tok, preds[0]), nil
}

// decodeSpans folds per-token BIO predictions into entity spans. A span
// runs from the first byte of its B- token to the last byte of the final
// I- token; its confidence is the mean of the member token scores.
func decodeSpans(text string, tok *TokenizedInput, preds []TokenPrediction) []pii.Entity {
	var out []pii.Entity

	var (
		curType  pii.EntityType
		curStart int
		curEnd   int
		scoreSum float64
		tokens   int
	)
	flush := func() {
		if tokens == 0 {
			return
		}
		out = append(out, pii.Entity{
			Type:       curType,
			Text:       text[curStart:curEnd],
			Start:      curStart,
			End:        curEnd,
			Confidence: scoreSum / float64(tokens),
			Source:     pii.SourceRecognizer,
		})
		tokens = 0
	}

	for i, p := range preds {
		if i >= len(tok.Offsets) {
			break
		}
		off := tok.Offsets[i]
		if off[0] == 0 && off[1] == 0 {
			// special or padding token
			continue
		}

		t, tagged := labelType[p.Label]
		switch {
		case !tagged:
			flush()
		case beginsEntity(p.Label) || tokens == 0 || t != curType:
			flush()
			curType = t
			curStart = off[0]
			curEnd = off[1]
			scoreSum = float64(p.Score)
			tokens = 1
		default:
			curEnd = off[1]
			scoreSum += float64(p.Score)
			tokens++
		}
	}
	flush()
	return out
}

// Close releases the backend if one was initialized.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend != nil {
		err := r.backend.Close()
		r.backend = nil
		return err
	}
	return nil
}
