package health

import "context"

// StorePinger checks conversation store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ComponentChecker checks a backend (embedding, generation) availability.
type ComponentChecker interface {
	HealthCheck(ctx context.Context) error
}
