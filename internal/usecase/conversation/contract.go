package conversation

import "context"

// Repository persists one plain-text transcript per handle.
// Load returns "" for a handle without a transcript; Save replaces the whole text.
type Repository interface {
	Load(ctx context.Context, handle string) (string, error)
	Save(ctx context.Context, handle, text string) error
}

// Pinger checks backing store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}
