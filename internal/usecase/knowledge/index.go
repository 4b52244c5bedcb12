package knowledge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

// KnowledgeLoader builds a knowledge base from a dataset path.
type KnowledgeLoader interface {
	Load(ctx context.Context, path string) (*domain.KnowledgeBase, error)
}

// Index serves the current knowledge base. Readers never lock; Reload swaps the
// whole knowledge base atomically and only on success.
type Index struct {
	loader KnowledgeLoader
	path   string
	logger *zap.Logger

	current  atomic.Pointer[domain.KnowledgeBase]
	reloadMu sync.Mutex
}

// NewIndex creates an index with an empty knowledge base. Call Reload before serving.
func NewIndex(loader KnowledgeLoader, path string, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{loader: loader, path: path, logger: logger}
	idx.current.Store(domain.NewKnowledgeBase(nil))
	return idx
}

// Current returns the knowledge base in service. Never nil.
func (i *Index) Current() *domain.KnowledgeBase {
	return i.current.Load()
}

// Reload rebuilds the knowledge base from the dataset path. On failure the previous
// knowledge base keeps serving. Concurrent reloads are serialized.
func (i *Index) Reload(ctx context.Context) (int, error) {
	i.reloadMu.Lock()
	defer i.reloadMu.Unlock()

	kb, err := i.loader.Load(ctx, i.path)
	if err != nil {
		i.logger.Error("Knowledge base reload failed, keeping previous",
			zap.String("path", i.path),
			zap.Int("serving", i.Current().Len()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("reload knowledge base: %w", err)
	}

	i.current.Store(kb)
	metrics.KnowledgeBaseDocuments.Set(float64(kb.Len()))
	return kb.Len(), nil
}
