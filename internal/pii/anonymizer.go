package pii

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"
)

// Recognizer is the contextual entity recognizer collaborator. It returns
// Person/Organization/Location spans with confidence scores and may report
// unavailability; the engine treats failures as degradation, never as a
// caller-visible error.
type Recognizer interface {
	Detect(ctx context.Context, text, language string) ([]Entity, error)
	Ready() bool
}

// AuditSink receives the per-call summary after each engine operation.
// Implementations must not block the caller for long; the engine only emits.
type AuditSink interface {
	Record(ctx context.Context, summary Summary)
}

// NoopSink discards audit summaries.
type NoopSink struct{}

// Record implements AuditSink.
func (NoopSink) Record(context.Context, Summary) {}

// Engine orchestrates detection, linking, token assignment, and rewriting.
// The replacement map is injected so independent sessions never interfere.
type Engine struct {
	detector     *PatternDetector
	recognizer   Recognizer
	replacements *ReplacementMap
	mode         DetectionMode
	sink         AuditSink
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecognizer attaches a contextual entity recognizer.
func WithRecognizer(r Recognizer) EngineOption {
	return func(e *Engine) { e.recognizer = r }
}

// WithMode sets the detection mode. Default is Hybrid.
func WithMode(m DetectionMode) EngineOption {
	return func(e *Engine) { e.mode = m }
}

// WithAuditSink attaches a sink for per-call summaries.
func WithAuditSink(s AuditSink) EngineOption {
	return func(e *Engine) { e.sink = s }
}

// NewEngine creates an engine with a fresh replacement map.
func NewEngine(logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		detector:     NewPatternDetector(logger),
		replacements: NewReplacementMap(),
		mode:         Hybrid,
		sink:         NoopSink{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the configured detection mode.
func (e *Engine) Mode() DetectionMode { return e.mode }

// Anonymize detects, links, and rewrites PII in a single text. Arbitrary
// input always yields a result; an empty entity-type set yields the text
// unchanged.
func (e *Engine) Anonymize(ctx context.Context, text string, settings Settings) Result {
	start := time.Now()

	detected, lawSpans := e.detect(ctx, text, settings)
	surviving := e.filter(detected, lawSpans, settings)
	result := e.replace(text, surviving, settings)

	e.emit(ctx, "anonymize", result.Entities, time.Since(start))
	return result
}

// AnonymizeBatch anonymizes texts in input order against one shared
// replacement map, so a canonical entity in text i and text j receives the
// identical token. Detection runs concurrently; linking and token
// assignment are applied sequentially in input order so allocation is
// deterministic.
func (e *Engine) AnonymizeBatch(ctx context.Context, texts []string, settings Settings) []Result {
	start := time.Now()

	type detection struct {
		entities []Entity
		lawSpans []Entity
	}
	detections := make([]detection, len(texts))

	var wg sync.WaitGroup
	for i := range texts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ents, laws := e.detect(ctx, texts[i], settings)
			detections[i] = detection{entities: ents, lawSpans: laws}
		}(i)
	}
	wg.Wait()

	results := make([]Result, len(texts))
	var all []Entity
	for i := range texts {
		surviving := e.filter(detections[i].entities, detections[i].lawSpans, settings)
		results[i] = e.replace(texts[i], surviving, settings)
		all = append(all, results[i].Entities...)
	}

	e.emit(ctx, "anonymize_batch", all, time.Since(start))
	return results
}

// DetectOnly runs detection and merging without assigning replacements or
// rewriting, for preview and review flows. Law entities are included.
func (e *Engine) DetectOnly(ctx context.Context, text, language string, mode DetectionMode) []Entity {
	start := time.Now()

	language = e.resolveLanguage(text, language)
	var pattern []Entity
	if mode != RecognizerOnly {
		pattern = e.detector.Detect(text, language)
	}
	recognized := e.recognize(ctx, text, language, mode)
	merged := Merge(pattern, recognized, mode)

	e.emit(ctx, "detect", merged, time.Since(start))
	return merged
}

// Clear resets the replacement map and statistics. Idempotent.
func (e *Engine) Clear() {
	e.replacements.Clear()
	e.logger.Info("Replacement map cleared")
}

// Stats returns entity statistics accumulated since the last Clear.
func (e *Engine) Stats() Statistics {
	return e.replacements.Stats()
}

// DefaultSettings exposes the engine's default anonymization settings.
func (e *Engine) DefaultSettings() Settings { return DefaultSettings() }

// EntityTypes lists every supported entity type.
func (e *Engine) EntityTypes() []EntityType { return AllEntityTypes }

// detect runs the configured detectors and returns the merged entity list
// plus the legal-reference whitelist spans for this text.
func (e *Engine) detect(ctx context.Context, text string, settings Settings) (entities, lawSpans []Entity) {
	language := e.resolveLanguage(text, settings.Language)

	mode := e.mode
	var pattern []Entity
	if mode != RecognizerOnly {
		pattern = e.detector.Detect(text, language)
	}

	recognized := e.recognize(ctx, text, language, mode)
	merged := Merge(pattern, recognized, mode)

	// The whitelist comes from the pattern detector regardless of mode, so
	// legal citations survive even pure recognizer runs.
	lawSpans = e.detector.DetectLegal(text, language)
	return merged, lawSpans
}

// recognize calls the contextual recognizer when the mode requires it.
// Unavailability degrades to nil output with a logged warning.
func (e *Engine) recognize(ctx context.Context, text, language string, mode DetectionMode) []Entity {
	if mode == PatternOnly {
		return nil
	}
	if e.recognizer == nil || !e.recognizer.Ready() {
		e.logger.Warn("Contextual recognizer unavailable, degrading to pattern detection")
		return nil
	}
	entities, err := e.recognizer.Detect(ctx, text, language)
	if err != nil {
		e.logger.Warn("Contextual recognizer failed, degrading to pattern detection",
			zap.Error(err))
		return nil
	}
	for i := range entities {
		entities[i].Source = SourceRecognizer
	}
	return entities
}

// filter applies the settings' type set and confidence threshold, and drops
// anything overlapping a legal-reference span when preservation is on.
func (e *Engine) filter(entities, lawSpans []Entity, settings Settings) []Entity {
	wanted := settings.typeSet()
	var out []Entity
	for _, ent := range entities {
		if ent.Type == Law || !ent.Type.ShouldAnonymize() {
			continue
		}
		if !wanted[ent.Type] {
			continue
		}
		if ent.Confidence < settings.ConfidenceThreshold {
			continue
		}
		if settings.PreserveLegalRefs && overlapsAny(ent, lawSpans) {
			continue
		}
		out = append(out, ent)
	}
	return out
}

// replace assigns tokens in start-ascending order, then rebuilds the text
// around the spans so replacements never invalidate pending offsets.
func (e *Engine) replace(text string, entities []Entity, settings Settings) Result {
	entities = sortByStart(entities)
	keys := LinkEntities(entities)

	for i := range entities {
		var token string
		if settings.ConsistentReplace {
			token = e.replacements.Assign(keys[i], entities[i].Type)
		} else {
			token = e.replacements.AssignFresh(entities[i].Type)
		}
		entities[i].Replacement = token
		e.replacements.Count(entities[i].Type)
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, ent := range entities {
		b.WriteString(text[last:ent.Start])
		b.WriteString(ent.Replacement)
		last = ent.End
	}
	b.WriteString(text[last:])

	replacements := make([]Replacement, len(entities))
	for i, ent := range entities {
		replacements[i] = Replacement{Original: ent.Text, Token: ent.Replacement}
	}

	return Result{
		OriginalText:   text,
		AnonymizedText: b.String(),
		Entities:       entities,
		Replacements:   replacements,
	}
}

// resolveLanguage maps "auto" (or empty) to a detected language, defaulting
// to English when detection is unreliable.
func (e *Engine) resolveLanguage(text, language string) string {
	if language != "" && language != "auto" {
		return language
	}
	if text == "" {
		return "en"
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() || !supportedLanguages[code] {
		return "en"
	}
	return code
}

func (e *Engine) emit(ctx context.Context, operation string, entities []Entity, elapsed time.Duration) {
	breakdown := make(map[EntityType]int)
	for _, ent := range entities {
		breakdown[ent.Type]++
	}
	e.sink.Record(ctx, Summary{
		Operation:      operation,
		EntityCount:    len(entities),
		Breakdown:      breakdown,
		ProcessingTime: elapsed,
		Timestamp:      time.Now(),
	})
}

func overlapsAny(e Entity, spans []Entity) bool {
	for _, s := range spans {
		if e.Overlaps(s) {
			return true
		}
	}
	return false
}
