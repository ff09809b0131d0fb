//go:build !onnx
// +build !onnx

package ner

import (
	"go.uber.org/zap"
)

// Stub implementation used when the 'onnx' build tag is not set.
func NewInferenceBackend(logger *zap.Logger, modelPath string) InferenceBackend {
	return nil
}
