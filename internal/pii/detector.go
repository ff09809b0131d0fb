package pii

import (
	"sort"

	"go.uber.org/zap"
)

// PatternDetector finds structurally regular PII and legal references with a
// fixed regex library. It is pure over its input: no shared state is read or
// written during detection.
type PatternDetector struct {
	rules  []patternRule
	logger *zap.Logger
}

// NewPatternDetector compiles the built-in rule library.
func NewPatternDetector(logger *zap.Logger) *PatternDetector {
	rules := defaultRules()
	rules = append(rules, legalRules()...)

	logger.Info("Pattern detector initialized",
		zap.Int("rules", len(rules)))

	return &PatternDetector{rules: rules, logger: logger}
}

// Detect runs every rule applicable to language over text and returns the
// overlap-resolved entity list sorted by start offset. Law entities are
// included so callers can honor the legal-reference whitelist.
func (d *PatternDetector) Detect(text, language string) []Entity {
	if text == "" {
		return nil
	}

	// Spans already holding replacement tokens from a previous run must not
	// be re-detected as fresh PII.
	tokenSpans := replacementToken.FindAllStringIndex(text, -1)

	var entities []Entity
	for i := range d.rules {
		rule := &d.rules[i]
		if !rule.appliesTo(language) {
			continue
		}
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			if insideAny(loc[0], loc[1], tokenSpans) {
				continue
			}
			entities = append(entities, Entity{
				Type:       rule.entityType,
				Text:       text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: rule.confidence,
				Source:     SourcePattern,
			})
		}
	}

	entities = append(entities, d.detectNames(text, tokenSpans)...)

	return resolvePatternOverlaps(entities)
}

// DetectLegal runs only the legal-reference rule set. The anonymizer uses
// this whitelist in every detection mode, so that a recognizer-sourced span
// overlapping a statute citation is still skipped.
func (d *PatternDetector) DetectLegal(text, language string) []Entity {
	if text == "" {
		return nil
	}
	var entities []Entity
	for _, rule := range legalRules() {
		if !rule.appliesTo(language) {
			continue
		}
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Type:       Law,
				Text:       text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: rule.confidence,
				Source:     SourcePattern,
			})
		}
	}
	return resolvePatternOverlaps(entities)
}

// detectNames emits lower-confidence Person entities for capitalized word
// sequences that pass the non-name exclusion list.
func (d *PatternDetector) detectNames(text string, tokenSpans [][]int) []Entity {
	var entities []Entity
	for _, loc := range likelyName.FindAllStringIndex(text, -1) {
		if insideAny(loc[0], loc[1], tokenSpans) {
			continue
		}
		match := text[loc[0]:loc[1]]
		if isExcludedName(match) {
			continue
		}
		entities = append(entities, Entity{
			Type:       Person,
			Text:       match,
			Start:      loc[0],
			End:        loc[1],
			Confidence: 0.75,
			Source:     SourcePattern,
		})
	}
	return entities
}

func (r *patternRule) appliesTo(language string) bool {
	if len(r.languages) == 0 {
		return true
	}
	for _, l := range r.languages {
		if l == language {
			return true
		}
	}
	return false
}

// insideAny reports whether [start,end) overlaps any span in spans.
func insideAny(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// resolvePatternOverlaps keeps at most one entity per overlapping region,
// preferring the longer span, then the higher confidence, then the more
// specific entity type.
func resolvePatternOverlaps(entities []Entity) []Entity {
	if len(entities) <= 1 {
		return entities
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].End > entities[j].End
	})

	var result []Entity
	for _, e := range entities {
		if len(result) == 0 {
			result = append(result, e)
			continue
		}
		last := &result[len(result)-1]
		if !e.Overlaps(*last) {
			result = append(result, e)
			continue
		}
		if patternWins(e, *last) {
			*last = e
		}
	}
	return result
}

// patternWins decides whether challenger replaces incumbent when two pattern
// matches overlap: longer span first, then confidence, then type priority.
func patternWins(challenger, incumbent Entity) bool {
	cl := challenger.End - challenger.Start
	il := incumbent.End - incumbent.Start
	if cl != il {
		return cl > il
	}
	if challenger.Confidence != incumbent.Confidence {
		return challenger.Confidence > incumbent.Confidence
	}
	return typePriority[challenger.Type] > typePriority[incumbent.Type]
}
