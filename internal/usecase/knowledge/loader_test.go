package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// fakeEmbedder maps text to a deterministic vector and records calls.
type fakeEmbedder struct {
	mu       sync.Mutex
	seen     []string
	failOn   string
	noRemote bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.DualEmbedding, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()

	if text == f.failOn {
		return domain.DualEmbedding{}, fmt.Errorf("local backend down: %w", domain.ErrEmbedding)
	}
	local := []float32{float32(len(text)), 1}
	if f.noRemote {
		return domain.NewDualEmbedding(local, nil), nil
	}
	return domain.NewDualEmbedding(local, []float32{1, float32(len(text))}), nil
}

const sampleDataset = `[
	{"instruction": "hours", "output": "9 to 5"},
	{"instruction": "where is the library", "output": ["next to", "the hall"]},
	{"instruction": "fees", "output": "See the bursary page."}
]`

func TestLoader_Load(t *testing.T) {
	emb := &fakeEmbedder{}
	loader := NewLoader(emb, LoaderConfig{Concurrency: 2}, nil)

	kb, err := loader.Load(context.Background(), writeDataset(t, sampleDataset))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kb.Len() != 3 {
		t.Fatalf("expected 3 documents, got %d", kb.Len())
	}

	for i, want := range []string{"hours", "where is the library", "fees"} {
		d := kb.At(i)
		if d.ID != i || d.Instruction != want {
			t.Errorf("doc %d = {%d %q}, want {%d %q}", i, d.ID, d.Instruction, i, want)
		}
		if d.Embedding.Local[0] != float32(len(want)) {
			t.Errorf("doc %d embedded the wrong text", i)
		}
	}
	if !kb.At(1).Output.Multi || kb.At(1).Output.Flatten() != "next to the hall" {
		t.Errorf("output must be stored untouched, got %+v", kb.At(1).Output)
	}

	for _, text := range emb.seen {
		if strings.Contains(text, "bursary") || strings.Contains(text, "9 to 5") {
			t.Errorf("output text must not be embedded: %q", text)
		}
	}
}

func TestLoader_ConcurrencyLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := range 20 {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"instruction": "q%d", "output": "a"}`, i)
	}
	sb.WriteString("]")

	emb := &fakeEmbedder{}
	kb, err := NewLoader(emb, LoaderConfig{Concurrency: 3}, nil).Load(context.Background(), writeDataset(t, sb.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kb.Len() != 20 {
		t.Fatalf("expected 20 documents, got %d", kb.Len())
	}
	if peak := emb.peak.Load(); peak > 3 {
		t.Errorf("expected at most 3 concurrent embeddings, saw %d", peak)
	}
	for i := range 20 {
		if kb.At(i).Instruction != fmt.Sprintf("q%d", i) {
			t.Fatalf("dataset order not preserved at %d", i)
		}
	}
}

func TestLoader_DegradedDocumentsAreKept(t *testing.T) {
	kb, err := NewLoader(&fakeEmbedder{noRemote: true}, LoaderConfig{}, nil).
		Load(context.Background(), writeDataset(t, sampleDataset))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kb.Len() != 3 || !kb.At(0).Embedding.Degraded() {
		t.Error("expected all documents loaded in degraded mode")
	}
}

func TestLoader_EmbeddingFailureAbortsLoad(t *testing.T) {
	emb := &fakeEmbedder{failOn: "fees"}
	kb, err := NewLoader(emb, LoaderConfig{Concurrency: 1}, nil).
		Load(context.Background(), writeDataset(t, sampleDataset))

	if kb != nil {
		t.Error("partial knowledge base must not be returned")
	}
	if !errors.Is(err, domain.ErrDatasetLoad) || !errors.Is(err, domain.ErrEmbedding) {
		t.Errorf("expected ErrDatasetLoad wrapping ErrEmbedding, got %v", err)
	}
}

func TestLoader_EmptyDataset(t *testing.T) {
	path := writeDataset(t, `[]`)

	_, err := NewLoader(&fakeEmbedder{}, LoaderConfig{}, nil).Load(context.Background(), path)
	if !errors.Is(err, domain.ErrDatasetLoad) || !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected empty dataset error, got %v", err)
	}

	kb, err := NewLoader(&fakeEmbedder{}, LoaderConfig{AllowEmpty: true}, nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error with AllowEmpty: %v", err)
	}
	if kb.Len() != 0 {
		t.Errorf("expected empty knowledge base, got %d", kb.Len())
	}
}

func TestLoader_UnparseableDataset(t *testing.T) {
	_, err := NewLoader(&fakeEmbedder{}, LoaderConfig{}, nil).
		Load(context.Background(), writeDataset(t, `{"broken"`))
	if !errors.Is(err, domain.ErrDatasetLoad) {
		t.Errorf("expected ErrDatasetLoad, got %v", err)
	}
}
