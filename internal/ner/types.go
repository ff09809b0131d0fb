package ner

import (
	"time"

	"github.com/lexredact/lexredact/internal/pii"
)

// ModelConfig holds settings for the token-classification model.
type ModelConfig struct {
	ModelPath   string        `mapstructure:"model_path"`
	MaxLength   int           `mapstructure:"max_length"`
	BatchSize   int           `mapstructure:"batch_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UseFallback bool          `mapstructure:"use_fallback"`
}

// DefaultModelConfig returns sane defaults for a BERT-style NER model.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ModelPath:   "./models/ner.onnx",
		MaxLength:   256,
		BatchSize:   8,
		Timeout:     10 * time.Second,
		UseFallback: true,
	}
}

// BIO label indices emitted by the token-classification head. The label
// order matches the CoNLL-style export the model was trained with.
const (
	labelO = iota
	labelBPerson
	labelIPerson
	labelBOrganization
	labelIOrganization
	labelBLocation
	labelILocation
	labelBDate
	labelIDate
	numLabels
)

// labelType maps a B-/I- label index to the entity type it opens or extends.
// labelO maps to the empty type.
var labelType = map[int]pii.EntityType{
	labelBPerson:       pii.Person,
	labelIPerson:       pii.Person,
	labelBOrganization: pii.Organization,
	labelIOrganization: pii.Organization,
	labelBLocation:     pii.Location,
	labelILocation:     pii.Location,
	labelBDate:         pii.Date,
	labelIDate:         pii.Date,
}

// beginsEntity reports whether the label opens a new span.
func beginsEntity(label int) bool {
	switch label {
	case labelBPerson, labelBOrganization, labelBLocation, labelBDate:
		return true
	}
	return false
}

// TokenizedInput is one text prepared for model inference, with byte
// offsets kept so label spans can be projected back onto the original text.
type TokenizedInput struct {
	InputIDs      []int32
	AttentionMask []int32
	TokenTypeIDs  []int32
	Offsets       [][2]int // byte [start, end) per token; [0,0] for padding/special tokens
	Length        int
	OriginalText  string
	Truncated     bool
}

// TokenPrediction is the per-token output of a backend: an argmax label
// plus its softmax probability.
type TokenPrediction struct {
	Label int
	Score float32
}
