package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

const providerName = "ollama"

// GeneratorConfig holds the chat settings.
type GeneratorConfig struct {
	Model       string
	Temperature *float32
	Logger      *zap.Logger
}

// Generator implements domain.Generator over the Ollama /api/chat endpoint.
type Generator struct {
	client      *api.Client
	model       string
	temperature *float32
	logger      *zap.Logger
}

// NewGenerator creates an Ollama generator.
func NewGenerator(client *api.Client, cfg GeneratorConfig) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Generate sends a non-streaming chat request and returns the assistant content verbatim.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    g.model,
		Messages: make([]api.Message, 0, len(req.Messages)+1),
		Stream:   &stream,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, api.Message{Role: string(domain.RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}
	if g.temperature != nil {
		chatReq.Options = map[string]any{"temperature": *g.temperature}
	}

	var reply strings.Builder
	start := time.Now()
	err := g.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(providerName, g.model, "error").Inc()
		return "", fmt.Errorf("ollama chat: %v: %w", err, domain.ErrGeneration)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(providerName, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(providerName, g.model).Observe(duration.Seconds())
	g.logger.Debug("ollama chat",
		zap.String("model", g.model),
		zap.Int("reply_len", reply.Len()),
		zap.Duration("duration", duration),
	)

	return reply.String(), nil
}

// HealthCheck pings the Ollama server.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if err := g.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}
