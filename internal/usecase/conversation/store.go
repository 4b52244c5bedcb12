package conversation

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// DefaultIdleTimeout is the idle time after which a context is retired.
const DefaultIdleTimeout = 60 * time.Second

const lockStripes = 64

// Store owns conversation contexts: rolling transcripts addressed by handle.
// Appends to the same handle are serialized; different handles proceed in parallel.
type Store struct {
	repo        Repository
	idleTimeout time.Duration
	newHandle   func() string
	locks       [lockStripes]sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithHandleGenerator replaces the uuid handle generator.
func WithHandleGenerator(fn func() string) Option {
	return func(s *Store) { s.newHandle = fn }
}

// NewStore creates a context store. A non-positive idleTimeout means DefaultIdleTimeout.
func NewStore(repo Repository, idleTimeout time.Duration, opts ...Option) *Store {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	s := &Store{
		repo:        repo,
		idleTimeout: idleTimeout,
		newHandle:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdleTimeout returns the configured idle timeout.
func (s *Store) IdleTimeout() time.Duration { return s.idleTimeout }

func (s *Store) lock(handle string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(handle))
	return &s.locks[h.Sum32()%lockStripes]
}

// CurrentContext returns the transcript for handle, or "" if none exists yet.
func (s *Store) CurrentContext(ctx context.Context, handle string) (string, error) {
	text, err := s.repo.Load(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("%w: load %s: %w", domain.ErrPersistence, handle, err)
	}
	return text, nil
}

// Append adds turn to the transcript and persists it before returning.
func (s *Store) Append(ctx context.Context, handle, turn string) error {
	mu := s.lock(handle)
	mu.Lock()
	defer mu.Unlock()

	text, err := s.repo.Load(ctx, handle)
	if err != nil {
		return fmt.Errorf("%w: load %s: %w", domain.ErrPersistence, handle, err)
	}
	if err := s.repo.Save(ctx, handle, text+turn); err != nil {
		return fmt.Errorf("%w: save %s: %w", domain.ErrPersistence, handle, err)
	}
	return nil
}

// Rotate starts a new empty transcript under a fresh handle. Earlier transcripts are kept.
func (s *Store) Rotate(ctx context.Context) (string, error) {
	handle := s.newHandle()
	if err := s.repo.Save(ctx, handle, ""); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", domain.ErrPersistence, handle, err)
	}
	return handle, nil
}

// ShouldRotate reports whether more than the idle timeout has passed since lastActivity.
func (s *Store) ShouldRotate(lastActivity, now time.Time) bool {
	return now.Sub(lastActivity) > s.idleTimeout
}

// Ping checks the repository when it supports health checks.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.repo.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
