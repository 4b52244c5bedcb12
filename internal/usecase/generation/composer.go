package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// MaxRetrieved caps how many ranked documents reach the prompt, whatever K was.
const MaxRetrieved = 3

// DefaultPersona is the system message sent with every prompt.
const DefaultPersona = "You are Nao, a friendly chatbot from Universiti Brunei Darussalam."

// DefaultTemplate is the user prompt. Fields: .Context (history plus retrieved text),
// .Question, .History, .Retrieved.
const DefaultTemplate = `You are Nao, a friendly chatbot from Universiti Brunei Darussalam.` +
	`Keep your answer in one or two sentences.
Here is the conversation history: {{.Context}}

Question: {{.Question}}

Answer:`

// PromptData is the template input.
type PromptData struct {
	Context   string
	Question  string
	History   string
	Retrieved string
}

// Config holds composer settings. Empty strings select the defaults.
type Config struct {
	Persona  string
	Template string
	Timeout  time.Duration
}

// Composer fuses retrieved knowledge and conversation history into a prompt and
// asks the generation service for a reply.
type Composer struct {
	gen     domain.Generator
	tmpl    *template.Template
	persona string
	timeout time.Duration
	logger  *zap.Logger
}

// NewComposer parses the prompt template.
func NewComposer(gen domain.Generator, cfg Config, logger *zap.Logger) (*Composer, error) {
	if cfg.Persona == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		gen:     gen,
		tmpl:    tmpl,
		persona: cfg.Persona,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// RetrievedText flattens the outputs of at most MaxRetrieved results and joins them with a space.
func RetrievedText(results []domain.RankedResult) string {
	n := min(len(results), MaxRetrieved)
	parts := make([]string, 0, n)
	for _, r := range results[:n] {
		parts = append(parts, r.Document.Output.Flatten())
	}
	return strings.Join(parts, " ")
}

// CombinedContext appends the retrieved text to the conversation history on a new line.
func CombinedContext(history, retrieved string) string {
	return history + "\n" + retrieved
}

// Prompt renders the user prompt for question.
func (c *Composer) Prompt(question string, results []domain.RankedResult, history string) (string, error) {
	retrieved := RetrievedText(results)
	var sb strings.Builder
	err := c.tmpl.Execute(&sb, PromptData{
		Context:   CombinedContext(history, retrieved),
		Question:  question,
		History:   history,
		Retrieved: retrieved,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// Generate composes the prompt and returns the model reply verbatim.
// Failures wrap domain.ErrGeneration and are not retried.
func (c *Composer) Generate(
	ctx context.Context, question string, results []domain.RankedResult, history string,
) (string, error) {
	prompt, err := c.Prompt(question, results, history)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := c.gen.Generate(ctx, domain.GenerationRequest{
		System:   c.persona,
		Messages: []domain.Message{{Role: domain.RoleUser, Content: prompt}},
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGeneration) {
			err = fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		}
		return "", err
	}

	c.logger.Debug("Reply generated",
		zap.Int("retrieved", min(len(results), MaxRetrieved)),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("reply_len", len(reply)),
	)
	return reply, nil
}
