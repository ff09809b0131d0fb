package pii

import (
	"fmt"
	"time"
)

// EntityType classifies a detected span of sensitive text.
type EntityType string

const (
	Person              EntityType = "PERSON"
	Organization        EntityType = "ORGANIZATION"
	Location            EntityType = "LOCATION"
	Date                EntityType = "DATE"
	Money               EntityType = "MONEY"
	Email               EntityType = "EMAIL"
	Phone               EntityType = "PHONE"
	Case                EntityType = "CASE"
	Identification      EntityType = "IDENTIFICATION"
	TechnicalIdentifier EntityType = "TECHNICAL_IDENTIFIER"
	// Law marks legal citations. They are detected so that overlapping
	// matches can be suppressed, but they are never anonymized.
	Law EntityType = "LAW"
)

// AllEntityTypes lists every supported entity type in a stable order.
var AllEntityTypes = []EntityType{
	Person, Organization, Location, Date, Money, Email,
	Phone, Case, Identification, TechnicalIdentifier, Law,
}

var validEntityTypes = func() map[EntityType]bool {
	m := make(map[EntityType]bool, len(AllEntityTypes))
	for _, t := range AllEntityTypes {
		m[t] = true
	}
	return m
}()

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return validEntityTypes[t]
}

// UsesLetterIndex reports whether replacement tokens for this type use the
// spreadsheet-style letter sequence (A..Z, AA, AB, ...) instead of decimal
// counters.
func (t EntityType) UsesLetterIndex() bool {
	return t == Person || t == Organization
}

// ShouldAnonymize reports whether entities of this type are ever replaced.
func (t EntityType) ShouldAnonymize() bool {
	return t != Law
}

// DetectionMode selects which detectors contribute entities.
type DetectionMode string

const (
	// PatternOnly uses the regex pattern detector alone.
	PatternOnly DetectionMode = "pattern"
	// RecognizerOnly uses the contextual entity recognizer alone.
	RecognizerOnly DetectionMode = "recognizer"
	// Hybrid merges both detectors, resolving overlaps by source reliability.
	Hybrid DetectionMode = "hybrid"
)

// Valid reports whether m is a known detection mode.
func (m DetectionMode) Valid() bool {
	return m == PatternOnly || m == RecognizerOnly || m == Hybrid
}

// Source identifies which detector produced an entity.
type Source string

const (
	SourcePattern    Source = "pattern"
	SourceRecognizer Source = "recognizer"
)

// Entity is a detected span of text. Start and End are byte offsets into the
// source text (half-open, and always falling on UTF-8 rune boundaries since
// they come from regexp or token-aligned matches).
type Entity struct {
	Type        EntityType `json:"entity_type"`
	Text        string     `json:"text"`
	Start       int        `json:"start"`
	End         int        `json:"end"`
	Confidence  float64    `json:"confidence"`
	Replacement string     `json:"replacement,omitempty"`
	Source      Source     `json:"-"`
}

// Overlaps reports whether two half-open spans intersect.
func (e Entity) Overlaps(other Entity) bool {
	return e.Start < other.End && other.Start < e.End
}

// Settings controls which entities are anonymized and how.
type Settings struct {
	EntityTypes         []EntityType `json:"entity_types" mapstructure:"entity_types"`
	ConfidenceThreshold float64      `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	PreserveLegalRefs   bool         `json:"preserve_legal_references" mapstructure:"preserve_legal_references"`
	ConsistentReplace   bool         `json:"consistent_replacement" mapstructure:"consistent_replacement"`
	Language            string       `json:"language" mapstructure:"language"`
}

// DefaultSettings returns the settings used when a caller supplies none.
func DefaultSettings() Settings {
	return Settings{
		EntityTypes: []EntityType{
			Person, Organization, Location, Date,
			Email, Phone, Identification,
		},
		ConfidenceThreshold: 0.7,
		PreserveLegalRefs:   true,
		ConsistentReplace:   true,
		Language:            "en",
	}
}

// supportedLanguages are the locales the pattern library has shapes for.
// "auto" defers to per-text language detection.
var supportedLanguages = map[string]bool{
	"auto": true, "en": true, "de": true, "nl": true, "fr": true,
}

// Validate rejects malformed settings before any text is processed.
func (s Settings) Validate() error {
	for _, t := range s.EntityTypes {
		if !t.Valid() {
			return fmt.Errorf("unknown entity type: %q", t)
		}
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %v outside [0,1]", s.ConfidenceThreshold)
	}
	if s.Language != "" && !supportedLanguages[s.Language] {
		return fmt.Errorf("unsupported language: %q", s.Language)
	}
	return nil
}

func (s Settings) typeSet() map[EntityType]bool {
	set := make(map[EntityType]bool, len(s.EntityTypes))
	for _, t := range s.EntityTypes {
		set[t] = true
	}
	return set
}

// Result is the outcome of anonymizing one text.
type Result struct {
	OriginalText   string        `json:"original_text"`
	AnonymizedText string        `json:"anonymized_text"`
	Entities       []Entity      `json:"entities"`
	Replacements   []Replacement `json:"replacements"`
}

// Replacement pairs an original span text with the token that replaced it.
type Replacement struct {
	Original string `json:"original"`
	Token    string `json:"token"`
}

// Statistics accumulates per-type entity counts over the lifetime of a
// replacement map.
type Statistics struct {
	EntityCounts  map[EntityType]int64 `json:"entity_counts"`
	TotalEntities int64                `json:"total_entities"`
}

// Summary is the per-call audit record emitted after every engine operation.
type Summary struct {
	Operation      string             `json:"operation"`
	EntityCount    int                `json:"entity_count"`
	Breakdown      map[EntityType]int `json:"entity_breakdown"`
	ProcessingTime time.Duration      `json:"processing_time"`
	Timestamp      time.Time          `json:"timestamp"`
}
