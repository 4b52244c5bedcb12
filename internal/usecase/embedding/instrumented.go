package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// InstrumentedEmbedder wraps a backend with a per-call timeout and logging.
// Transport metrics (requests, duration, errors) are recorded in the transport packages.
type InstrumentedEmbedder struct {
	inner   domain.Embedder
	backend string
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. A zero timeout leaves the caller's deadline untouched.
func NewInstrumentedEmbedder(
	inner domain.Embedder, backend, model string,
	timeout time.Duration, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:   inner,
		backend: backend,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Embed delegates to the inner embedder under the configured timeout.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Debug("Embedding request failed",
			zap.String("backend", p.backend),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed (%s): %w", p.backend, err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("backend", p.backend),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
