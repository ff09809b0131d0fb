package ner

import (
	"context"
)

// InferenceBackend defines a pluggable backend for token-classification
// inference. Implementations may use ONNX Runtime or other engines.
type InferenceBackend interface {
	// TagBatch runs a single inference for a batch of tokenized inputs and
	// returns one prediction per token (padding tokens included, aligned
	// with the input sequence).
	TagBatch(ctx context.Context, batch []*TokenizedInput) ([][]TokenPrediction, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewInferenceBackend creates a backend if supported by the current build.
// The default (no build tags) returns nil to avoid CGO dependencies.
// Note: Implementations are provided in build-tagged files, e.g., backend_onnx.go and backend_stub.go
