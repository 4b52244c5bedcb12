package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "transcript:"

// BadgerRepo stores transcripts in an embedded Badger database.
type BadgerRepo struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at path.
func OpenBadger(path string) (*BadgerRepo, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}
	return &BadgerRepo{db: db}, nil
}

// NewBadgerRepo wraps an already open database.
func NewBadgerRepo(db *badger.DB) *BadgerRepo {
	return &BadgerRepo{db: db}
}

func badgerKey(handle string) []byte {
	return []byte(badgerKeyPrefix + handle)
}

// Load returns the transcript, or "" when the handle has none.
func (r *BadgerRepo) Load(_ context.Context, handle string) (string, error) {
	if err := ValidateHandle(handle); err != nil {
		return "", err
	}

	var text string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(handle))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		text = string(val)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("badger get %s: %w", handle, err)
	}
	return text, nil
}

// Save replaces the transcript in one transaction.
func (r *BadgerRepo) Save(_ context.Context, handle, text string) error {
	if err := ValidateHandle(handle); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(handle), []byte(text))
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", handle, err)
	}
	return nil
}

// Ping reports whether the database is open.
func (r *BadgerRepo) Ping(_ context.Context) error {
	if r.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the database.
func (r *BadgerRepo) Close() error {
	return r.db.Close()
}
