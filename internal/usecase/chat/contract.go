package chat

import (
	"context"
	"time"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// QueryEmbedder produces the dual embedding of a query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (domain.DualEmbedding, error)
}

// KnowledgeSource returns the knowledge base currently in service.
type KnowledgeSource interface {
	Current() *domain.KnowledgeBase
}

// Ranker scores a knowledge base against a query.
type Ranker interface {
	Rank(q domain.Query, kb *domain.KnowledgeBase, k int) ([]domain.RankedResult, float64)
}

// ContextStore persists conversation transcripts.
type ContextStore interface {
	CurrentContext(ctx context.Context, handle string) (string, error)
	Append(ctx context.Context, handle, turn string) error
	Rotate(ctx context.Context) (string, error)
	ShouldRotate(lastActivity, now time.Time) bool
}

// ReplyGenerator composes the prompt and calls the generation service.
type ReplyGenerator interface {
	Generate(ctx context.Context, question string, results []domain.RankedResult, history string) (string, error)
}
