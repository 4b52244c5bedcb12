package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hfzizz/nao-llm/internal/db"
)

// kvStore is the consumer interface for transcript storage (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// KVRepo stores transcripts in Redis or Valkey, one string key per handle.
type KVRepo struct {
	store  kvStore
	prefix string
	ttl    time.Duration
}

// NewKVRepo creates a KV-backed repository. A zero ttl keeps transcripts forever.
func NewKVRepo(store kvStore, prefix string, ttl time.Duration) *KVRepo {
	return &KVRepo{store: store, prefix: prefix, ttl: ttl}
}

// Load returns the transcript, or "" when the handle has none.
func (r *KVRepo) Load(ctx context.Context, handle string) (string, error) {
	if err := ValidateHandle(handle); err != nil {
		return "", err
	}
	data, err := r.store.Get(ctx, r.prefix+handle)
	if errors.Is(err, db.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get transcript %s: %w", handle, err)
	}
	return string(data), nil
}

// Save replaces the transcript with a single SET.
func (r *KVRepo) Save(ctx context.Context, handle, text string) error {
	if err := ValidateHandle(handle); err != nil {
		return err
	}
	key := r.prefix + handle

	var err error
	if r.ttl > 0 {
		err = r.store.SetWithTTL(ctx, key, []byte(text), r.ttl)
	} else {
		err = r.store.Set(ctx, key, []byte(text))
	}
	if err != nil {
		return fmt.Errorf("set transcript %s: %w", handle, err)
	}
	return nil
}

// Ping checks store connectivity.
func (r *KVRepo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
