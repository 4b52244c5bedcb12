package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

const backendName = "remote"

// ErrEmptyEmbedding is returned when the server answers without a vector.
var ErrEmptyEmbedding = errors.New("ollama returned no embedding")

// Embedder is the remote embedding backend backed by the Ollama /api/embed endpoint.
type Embedder struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewEmbedder creates a remote embedder for model.
func NewEmbedder(client *api.Client, model string, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{client: client, model: model, logger: logger}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: text})
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(backendName, e.model, errorType(err)).Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(backendName, e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, ErrEmptyEmbedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(backendName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(backendName, e.model).Observe(duration.Seconds())

	return domain.EmbeddingResult{
		Embedding:    resp.Embeddings[0],
		PromptTokens: resp.PromptEvalCount,
		TotalTokens:  resp.PromptEvalCount,
	}, nil
}

// HealthCheck pings the Ollama server.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}

func errorType(err error) string {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return "api_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "transport_error"
}
