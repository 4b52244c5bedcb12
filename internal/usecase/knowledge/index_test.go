package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

type stubLoader struct {
	mu    sync.Mutex
	kb    *domain.KnowledgeBase
	err   error
	calls int
}

func (s *stubLoader) Load(_ context.Context, _ string) (*domain.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.kb, s.err
}

func kbOf(n int) *domain.KnowledgeBase {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{ID: i, Instruction: "q", Output: domain.TextOutput("a")}
	}
	return domain.NewKnowledgeBase(docs)
}

func TestIndex_CurrentBeforeReload(t *testing.T) {
	idx := NewIndex(&stubLoader{}, "data.json", nil)
	if idx.Current() == nil || idx.Current().Len() != 0 {
		t.Error("expected an empty, non-nil knowledge base before the first reload")
	}
}

func TestIndex_ReloadSwaps(t *testing.T) {
	loader := &stubLoader{kb: kbOf(2)}
	idx := NewIndex(loader, "data.json", nil)

	n, err := idx.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || idx.Current().Len() != 2 {
		t.Errorf("expected 2 documents, got n=%d current=%d", n, idx.Current().Len())
	}
	if got := testutil.ToFloat64(metrics.KnowledgeBaseDocuments); got != 2 {
		t.Errorf("expected gauge 2, got %v", got)
	}
}

func TestIndex_FailedReloadKeepsPrevious(t *testing.T) {
	loader := &stubLoader{kb: kbOf(3)}
	idx := NewIndex(loader, "data.json", nil)
	if _, err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("initial reload: %v", err)
	}
	before := idx.Current()

	loader.kb, loader.err = nil, domain.NewDatasetLoadError("data.json", errors.New("bad json"))
	if _, err := idx.Reload(context.Background()); !errors.Is(err, domain.ErrDatasetLoad) {
		t.Fatalf("expected ErrDatasetLoad, got %v", err)
	}
	if idx.Current() != before {
		t.Error("failed reload must keep the previous knowledge base")
	}
}

func TestIndex_ConcurrentReadsDuringReload(t *testing.T) {
	loader := &stubLoader{kb: kbOf(5)}
	idx := NewIndex(loader, "data.json", nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if kb := idx.Current(); kb == nil {
					t.Error("Current returned nil")
					return
				}
			}
		}()
	}
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = idx.Reload(context.Background())
		}()
	}
	wg.Wait()

	if loader.calls != 3 {
		t.Errorf("expected 3 reloads, got %d", loader.calls)
	}
}
