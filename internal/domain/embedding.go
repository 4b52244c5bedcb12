package domain

import (
	"context"
	"fmt"
)

// Embedder is the single-backend text vectorization contract shared between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries one backend's vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// NullVector is a vector that may be absent, in the spirit of sql.NullString.
type NullVector struct {
	Values []float32
	Valid  bool
}

// SomeVector wraps a present vector. An empty slice is treated as absent.
func SomeVector(v []float32) NullVector {
	return NullVector{Values: v, Valid: len(v) > 0}
}

// DualEmbedding is the pair of vectors produced for one text by the local and remote backends.
// Remote may be absent when the remote backend failed; that is a degraded state, not an error.
type DualEmbedding struct {
	Local  []float32
	Remote NullVector
}

// NewDualEmbedding builds a DualEmbedding; a nil or empty remote vector marks the remote side absent.
func NewDualEmbedding(local, remote []float32) DualEmbedding {
	return DualEmbedding{Local: local, Remote: SomeVector(remote)}
}

// Degraded reports whether the remote vector is missing.
func (e DualEmbedding) Degraded() bool { return !e.Remote.Valid }

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
// Used for local models that expect "query: " / "passage: " style prefixes.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
