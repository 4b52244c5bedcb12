package knowledge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// DocumentEmbedder vectorizes instructions at load time.
type DocumentEmbedder interface {
	Embed(ctx context.Context, text string) (domain.DualEmbedding, error)
}

// LoaderConfig holds loader settings.
type LoaderConfig struct {
	Concurrency int  // parallel embedding calls, minimum 1
	AllowEmpty  bool // accept a dataset with no records
}

// Loader builds knowledge bases from dataset files.
type Loader struct {
	embedder DocumentEmbedder
	cfg      LoaderConfig
	logger   *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(embedder DocumentEmbedder, cfg LoaderConfig, logger *zap.Logger) *Loader {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{embedder: embedder, cfg: cfg, logger: logger}
}

// Load reads the dataset at path and embeds each instruction once.
// The output is stored untouched. Any failure aborts the whole load: a partial
// knowledge base is never returned.
func (l *Loader) Load(ctx context.Context, path string) (*domain.KnowledgeBase, error) {
	records, err := ReadDataset(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 && !l.cfg.AllowEmpty {
		return nil, domain.NewDatasetLoadError(path, ErrEmptyDataset)
	}

	start := time.Now()
	kb, degraded, err := l.build(ctx, records)
	if err != nil {
		return nil, domain.NewDatasetLoadError(path, err)
	}

	l.logger.Info("Knowledge base loaded",
		zap.String("path", path),
		zap.Int("documents", kb.Len()),
		zap.Int("degraded", degraded),
		zap.Duration("duration", time.Since(start)),
	)
	return kb, nil
}

func (l *Loader) build(ctx context.Context, records []domain.Record) (*domain.KnowledgeBase, int, error) {
	docs := make([]domain.Document, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, rec := range records {
		g.Go(func() error {
			emb, err := l.embedder.Embed(gctx, rec.Instruction)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			docs[i] = domain.Document{
				ID:          i,
				Instruction: rec.Instruction,
				Output:      rec.Output,
				Embedding:   emb,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	degraded := 0
	for i := range docs {
		if docs[i].Embedding.Degraded() {
			degraded++
		}
	}
	return domain.NewKnowledgeBase(docs), degraded, nil
}
