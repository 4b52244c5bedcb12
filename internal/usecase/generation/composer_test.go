package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hfzizz/nao-llm/internal/domain"
)

type mockGenerator struct {
	reply string
	err   error
	got   domain.GenerationRequest
	calls int
	wait  bool
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	m.calls++
	m.got = req
	if m.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

func ranked(outputs ...domain.Output) []domain.RankedResult {
	out := make([]domain.RankedResult, len(outputs))
	for i, o := range outputs {
		out[i] = domain.RankedResult{Document: &domain.Document{ID: i, Output: o}, Score: 1 - float64(i)/10}
	}
	return out
}

func TestRetrievedText(t *testing.T) {
	tests := []struct {
		name    string
		results []domain.RankedResult
		want    string
	}{
		{"none", nil, ""},
		{"single string", ranked(domain.TextOutput("x")), "x"},
		{"multi part", ranked(domain.MultiOutput("a", "b", "c")), "a b c"},
		{"mixed", ranked(domain.TextOutput("9 to 5"), domain.MultiOutput("a", "b")), "9 to 5 a b"},
		{
			"capped at three",
			ranked(domain.TextOutput("1"), domain.TextOutput("2"), domain.TextOutput("3"), domain.TextOutput("4")),
			"1 2 3",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RetrievedText(tc.results); got != tc.want {
				t.Errorf("RetrievedText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCombinedContext_EmptyRetrieval(t *testing.T) {
	history := "\nUser: hi\nNao: hello"
	if got := CombinedContext(history, RetrievedText(nil)); got != history+"\n" {
		t.Errorf("expected history plus newline, got %q", got)
	}
}

func TestPrompt_DefaultTemplate(t *testing.T) {
	c, err := NewComposer(&mockGenerator{}, Config{}, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}

	prompt, err := c.Prompt("When does it open?", ranked(domain.TextOutput("9 to 5")), "\nUser: hi\nNao: hello")
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	want := "You are Nao, a friendly chatbot from Universiti Brunei Darussalam.Keep your answer in one or two sentences.\n" +
		"Here is the conversation history: \nUser: hi\nNao: hello\n9 to 5\n\n" +
		"Question: When does it open?\n\n" +
		"Answer:"
	if prompt != want {
		t.Errorf("unexpected prompt:\ngot:  %q\nwant: %q", prompt, want)
	}
}

func TestNewComposer_InvalidTemplate(t *testing.T) {
	if _, err := NewComposer(&mockGenerator{}, Config{Template: "{{.Question"}, nil); err == nil {
		t.Fatal("expected template parse error")
	}
}

func TestPrompt_UnknownFieldFails(t *testing.T) {
	c, err := NewComposer(&mockGenerator{}, Config{Template: "{{.Nope}}"}, nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	if _, err := c.Prompt("q", nil, ""); err == nil {
		t.Fatal("expected execution error for unknown field")
	}
}

func TestGenerate_SendsPersonaAndPrompt(t *testing.T) {
	gen := &mockGenerator{reply: "<|start_header_id|>It opens at 8am."}
	c, _ := NewComposer(gen, Config{Template: "{{.Retrieved}}|{{.Question}}"}, nil)

	reply, err := c.Generate(context.Background(), "hours?", ranked(domain.TextOutput("8am")), "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != gen.reply {
		t.Errorf("reply must be returned verbatim, got %q", reply)
	}
	if gen.got.System != DefaultPersona {
		t.Errorf("unexpected system message %q", gen.got.System)
	}
	if len(gen.got.Messages) != 1 || gen.got.Messages[0].Role != domain.RoleUser {
		t.Fatalf("expected one user message, got %+v", gen.got.Messages)
	}
	if gen.got.Messages[0].Content != "8am|hours?" {
		t.Errorf("unexpected prompt %q", gen.got.Messages[0].Content)
	}
}

func TestGenerate_EmptyKnowledgeUsesOnlyContext(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	c, _ := NewComposer(gen, Config{Template: "[{{.Context}}]"}, nil)

	if _, err := c.Generate(context.Background(), "q", []domain.RankedResult{}, "history"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.got.Messages[0].Content != "[history\n]" {
		t.Errorf("unexpected prompt %q", gen.got.Messages[0].Content)
	}
}

func TestGenerate_ErrorWrapped(t *testing.T) {
	gen := &mockGenerator{err: errors.New("connection refused")}
	c, _ := NewComposer(gen, Config{}, nil)

	_, err := c.Generate(context.Background(), "q", nil, "")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one call (no retries), got %d", gen.calls)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	gen := &mockGenerator{wait: true}
	c, _ := NewComposer(gen, Config{Timeout: 20 * time.Millisecond}, nil)

	_, err := c.Generate(context.Background(), "q", nil, "")
	if !errors.Is(err, domain.ErrGeneration) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrGeneration wrapping deadline, got %v", err)
	}
}

func TestDefaultTemplate_MentionsQuestion(t *testing.T) {
	if !strings.Contains(DefaultTemplate, "{{.Question}}") || !strings.Contains(DefaultTemplate, "{{.Context}}") {
		t.Error("default template must reference context and question")
	}
}
