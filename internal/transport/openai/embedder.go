package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

// Embedder is an embedding backend speaking the OpenAI-compatible /embeddings API.
// It serves the local sentence-embedding model (text-embeddings-inference, llama.cpp, LocalAI).
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	backend    string
	logger     *zap.Logger
}

// Config holds the embedding backend settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Backend    string // metrics label, defaults to "local"
	HTTPClient openai.HTTPDoer
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding backend.
func NewEmbedder(cfg *Config) *Embedder {
	backend := cfg.Backend
	if backend == "" {
		backend = "local"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     newClient(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		backend:    backend,
		logger:     logger,
	}
}

func newClient(apiKey, baseURL string, doer openai.HTTPDoer) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if doer != nil {
		clientCfg.HTTPClient = doer
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Embed implements domain.Embedder. Every failure wraps domain.ErrEmbedding.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.backend, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.backend, string(e.model), "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError("embedding", err, domain.ErrEmbedding)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.backend, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.backend, string(e.model), "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbedding)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.backend, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.backend, string(e.model)).Observe(duration.Seconds())

	e.logger.Debug("embedding created",
		zap.String("backend", e.backend),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
		zap.Duration("duration", duration),
	)

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
