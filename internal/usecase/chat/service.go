package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hfzizz/nao-llm/internal/domain"
	"github.com/hfzizz/nao-llm/internal/logger"
	"github.com/hfzizz/nao-llm/internal/metrics"
	"github.com/hfzizz/nao-llm/internal/usecase/retrieval"
)

// Rotation reasons.
const (
	RotateNew      = "new"
	RotateIdle     = "idle"
	RotateFarewell = "farewell"
)

// Config holds orchestrator settings.
type Config struct {
	TopK            int
	AssistantName   string
	DefaultSession  string
	FarewellReply   string
	FarewellWords   []string // whole-utterance matches
	FarewellPhrases []string // substring matches
	FallbackReply   string
}

// Answer is the outcome of one submitted utterance.
type Answer struct {
	Session   string  // front-end session handle
	Context   string  // transcript handle the turn was written to
	Reply     string  // raw model reply, or the farewell/fallback text
	Farewell  bool    // the utterance ended the conversation
	Fallback  bool    // the pipeline failed and Reply is the generic fallback
	Retrieved int     // ranked documents passed to the composer
	MaxScore  float64 // retrieval.NoScore when the knowledge base is empty
}

// session is the per-handle conversation state. Its mutex serializes the pipeline
// for one handle: embed, rank, generate and append complete before the next turn starts.
// contextHandle is empty until the first turn rotates a transcript in.
type session struct {
	mu            sync.Mutex
	contextHandle string
	lastActivity  time.Time
}

// Service is the conversational RAG orchestrator.
type Service struct {
	embedder  QueryEmbedder
	knowledge KnowledgeSource
	ranker    Ranker
	store     ContextStore
	generator ReplyGenerator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the orchestrator.
func New(
	embedder QueryEmbedder,
	knowledge KnowledgeSource,
	ranker Ranker,
	store ContextStore,
	generator ReplyGenerator,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Nao"
	}
	if cfg.DefaultSession == "" {
		cfg.DefaultSession = "default"
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		embedder:  embedder,
		knowledge: knowledge,
		ranker:    ranker,
		store:     store,
		generator: generator,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) session(handle string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[handle]
	if !ok {
		sess = &session{}
		s.sessions[handle] = sess
	}
	return sess
}

// IsFarewell reports whether text ends the conversation.
func (s *Service) IsFarewell(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if slices.Contains(s.cfg.FarewellWords, lower) {
		return true
	}
	for _, p := range s.cfg.FarewellPhrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Submit runs one utterance through the pipeline for sessionHandle and returns the raw
// outcome. Errors: domain.ErrEmptyQuery, domain.ErrEmbedding, domain.ErrGeneration,
// domain.ErrPersistence.
func (s *Service) Submit(ctx context.Context, sessionHandle, text string) (Answer, error) {
	if strings.TrimSpace(text) == "" {
		return Answer{}, domain.ErrEmptyQuery
	}
	if sessionHandle == "" {
		sessionHandle = s.cfg.DefaultSession
	}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("session", sessionHandle))

	sess := s.session(sessionHandle)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := s.now()
	switch {
	case sess.contextHandle == "":
		if err := s.rotate(ctx, sess, RotateNew, log); err != nil {
			return Answer{Session: sessionHandle}, err
		}
	case s.store.ShouldRotate(sess.lastActivity, now):
		if err := s.rotate(ctx, sess, RotateIdle, log); err != nil {
			return Answer{Session: sessionHandle}, err
		}
	}
	sess.lastActivity = now

	ans := Answer{Session: sessionHandle, Context: sess.contextHandle, MaxScore: retrieval.NoScore}

	if s.IsFarewell(text) {
		if err := s.rotate(ctx, sess, RotateFarewell, log); err != nil {
			return ans, err
		}
		ans.Reply = s.cfg.FarewellReply
		ans.Farewell = true
		return ans, nil
	}

	history, err := s.store.CurrentContext(ctx, sess.contextHandle)
	if err != nil {
		return ans, err
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return ans, fmt.Errorf("embed query: %w", err)
	}

	results, maxScore := s.ranker.Rank(domain.Query{Text: text, Embedding: emb}, s.knowledge.Current(), s.cfg.TopK)
	ans.MaxScore = maxScore
	ans.Retrieved = len(results)
	if retrieval.HasScore(maxScore) {
		metrics.RetrievalMaxScore.Observe(maxScore)
	}

	reply, err := s.generator.Generate(ctx, text, results, history)
	if err != nil {
		return ans, err
	}
	ans.Reply = reply

	if err := s.store.Append(ctx, sess.contextHandle, FormatTurn(s.cfg.AssistantName, text, reply)); err != nil {
		return ans, err
	}
	sess.lastActivity = s.now()

	log.Debug("Turn completed",
		zap.String("context", sess.contextHandle),
		zap.Int("retrieved", ans.Retrieved),
		zap.Float64("max_score", maxScore),
		zap.Bool("degraded", emb.Degraded()),
	)
	return ans, nil
}

// Respond is Submit for front-ends: pipeline failures are logged and replaced by the
// generic fallback reply. Only domain.ErrEmptyQuery is returned.
func (s *Service) Respond(ctx context.Context, sessionHandle, text string) (Answer, error) {
	ans, err := s.Submit(ctx, sessionHandle, text)
	if err == nil {
		return ans, nil
	}
	if errors.Is(err, domain.ErrEmptyQuery) {
		return ans, err
	}

	logger.FromContextOr(ctx, s.logger).Error("Chat pipeline failed",
		zap.String("session", ans.Session),
		zap.Error(err),
	)
	ans.Reply = s.cfg.FallbackReply
	ans.Fallback = true
	return ans, nil
}

func (s *Service) rotate(ctx context.Context, sess *session, reason string, log *zap.Logger) error {
	handle, err := s.store.Rotate(ctx)
	if err != nil {
		return err
	}
	log.Info("Conversation context rotated",
		zap.String("reason", reason),
		zap.String("previous", sess.contextHandle),
		zap.String("context", handle),
	)
	sess.contextHandle = handle
	metrics.SessionRotationsTotal.WithLabelValues(reason).Inc()
	return nil
}

// Prune forgets sessions idle for longer than maxIdle. Their transcripts stay in the store.
// Sessions with a turn in flight are skipped.
func (s *Service) Prune(maxIdle time.Duration) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for handle, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if now.Sub(sess.lastActivity) > maxIdle {
			delete(s.sessions, handle)
			pruned++
		}
		sess.mu.Unlock()
	}
	return pruned
}

// Sessions returns the number of tracked sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
