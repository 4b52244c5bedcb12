package retrieval

import (
	"fmt"
	"math"
	"sort"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// NoScore is the max score reported for an empty knowledge base.
var NoScore = math.Inf(-1)

// HasScore reports whether maxScore came from at least one document.
func HasScore(maxScore float64) bool { return !math.IsInf(maxScore, -1) }

// Weights scales the local and remote cosine terms of the combined score.
type Weights struct {
	Local  float64
	Remote float64
}

// DefaultWeights is the 0.5/0.5 split.
func DefaultWeights() Weights { return Weights{Local: 0.5, Remote: 0.5} }

// Validate requires non-negative weights with a positive sum. They need not sum to 1.
func (w Weights) Validate() error {
	if w.Local < 0 || w.Remote < 0 {
		return fmt.Errorf("weights must be non-negative, got local=%v remote=%v", w.Local, w.Remote)
	}
	if w.Local+w.Remote <= 0 {
		return fmt.Errorf("weights must have a positive sum")
	}
	return nil
}

// Selector picks at most k candidate indices from scores. The order of the returned
// indices does not matter; the ranker re-sorts the selection.
type Selector func(scores []float64, k int) []int

// TopK is the exact selector: the k highest scores, ties resolved by lower index.
func TopK(scores []float64, k int) []int {
	if k <= 0 {
		return nil
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	sort.Ints(idx)
	return idx
}

// Ranker scores a knowledge base against a query with the dual-embedding model.
// It is pure: no I/O, no randomness, safe for concurrent use.
type Ranker struct {
	weights Weights
	selects Selector
}

// NewRanker creates a ranker with the exact top-K selector.
func NewRanker(w Weights) (*Ranker, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{weights: w, selects: TopK}, nil
}

// WithSelector returns a copy of the ranker that uses s for candidate selection.
func (r *Ranker) WithSelector(s Selector) *Ranker {
	cp := *r
	cp.selects = s
	return &cp
}

// Weights returns the configured weights.
func (r *Ranker) Weights() Weights { return r.weights }

// Score is the combined similarity of a query and a document embedding.
// The remote term is 0 when either side lacks a remote vector.
func (r *Ranker) Score(q, d domain.DualEmbedding) float64 {
	score := r.weights.Local * Cosine(q.Local, d.Local)
	if q.Remote.Valid && d.Remote.Valid {
		score += r.weights.Remote * Cosine(q.Remote.Values, d.Remote.Values)
	}
	return score
}

// Rank returns the min(N, k) best documents ordered by descending score and the highest
// score over the whole knowledge base. Equal scores keep dataset order. For an empty
// knowledge base the result is empty and the max score is NoScore.
func (r *Ranker) Rank(q domain.Query, kb *domain.KnowledgeBase, k int) ([]domain.RankedResult, float64) {
	n := kb.Len()
	if n == 0 {
		return []domain.RankedResult{}, NoScore
	}

	scores := make([]float64, n)
	maxScore := NoScore
	for i := range n {
		scores[i] = r.Score(q.Embedding, kb.At(i).Embedding)
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}

	k = min(k, n)
	if k <= 0 {
		return []domain.RankedResult{}, maxScore
	}

	return r.rerank(q, kb, r.selects(scores, k), k), maxScore
}

// rerank recomputes the score of each selected document and sorts descending.
func (r *Ranker) rerank(q domain.Query, kb *domain.KnowledgeBase, selected []int, k int) []domain.RankedResult {
	type candidate struct {
		pos    int
		result domain.RankedResult
	}

	cands := make([]candidate, 0, len(selected))
	seen := make(map[int]struct{}, len(selected))
	for _, i := range selected {
		if i < 0 || i >= kb.Len() {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		doc := kb.At(i)
		cands = append(cands, candidate{
			pos:    i,
			result: domain.RankedResult{Document: doc, Score: r.Score(q.Embedding, doc.Embedding)},
		})
	}

	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].result.Score != cands[b].result.Score {
			return cands[a].result.Score > cands[b].result.Score
		}
		return cands[a].pos < cands[b].pos
	})
	if len(cands) > k {
		cands = cands[:k]
	}

	out := make([]domain.RankedResult, len(cands))
	for i, c := range cands {
		out[i] = c.result
	}
	return out
}
