package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

// Stage names what a DualEmbedder vectorizes. It only affects logs and metrics.
type Stage string

// Embedding stages.
const (
	StageQuery    Stage = "query"
	StageDocument Stage = "document"
)

// DualEmbedder produces a DualEmbedding from the local and remote backends.
// The local backend is mandatory; a remote failure degrades the result instead of failing it.
type DualEmbedder struct {
	local  domain.Embedder
	remote domain.Embedder
	stage  Stage
	logger *zap.Logger
}

// NewDualEmbedder creates a dual embedder. remote may be nil, in which case every
// embedding is local-only.
func NewDualEmbedder(local, remote domain.Embedder, stage Stage, logger *zap.Logger) *DualEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DualEmbedder{local: local, remote: remote, stage: stage, logger: logger}
}

// Embed vectorizes text with both backends. Errors always wrap domain.ErrEmbedding.
func (d *DualEmbedder) Embed(ctx context.Context, text string) (domain.DualEmbedding, error) {
	localRes, err := d.local.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		return domain.DualEmbedding{}, fmt.Errorf("local %s embedding: %w", d.stage, err)
	}
	if len(localRes.Embedding) == 0 {
		return domain.DualEmbedding{}, fmt.Errorf("local %s embedding is empty: %w", d.stage, domain.ErrEmbedding)
	}

	emb := domain.NewDualEmbedding(localRes.Embedding, d.embedRemote(ctx, text))
	if emb.Degraded() {
		metrics.EmbeddingDegradedTotal.WithLabelValues(string(d.stage)).Inc()
	}
	return emb, nil
}

func (d *DualEmbedder) embedRemote(ctx context.Context, text string) []float32 {
	if d.remote == nil {
		return nil
	}
	res, err := d.remote.Embed(ctx, text)
	if err != nil {
		// a cancelled caller is not a backend outage
		if ctx.Err() == nil {
			d.logger.Warn("Remote embedding unavailable, continuing local-only",
				zap.String("stage", string(d.stage)),
				zap.Error(err),
			)
		}
		return nil
	}
	return res.Embedding
}

// RemoteEnabled reports whether a remote backend is configured.
func (d *DualEmbedder) RemoteEnabled() bool { return d.remote != nil }
