package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status    Status
	Checks    map[string]CheckResult
	Documents int
}

// DocumentCounter reports the size of the knowledge base in service.
type DocumentCounter func() int

type component struct {
	name    string
	checker ComponentChecker
}

// Service coordinates health checks.
type Service struct {
	store      StorePinger
	components []component
	documents  DocumentCounter
	timeout    time.Duration
}

// New creates a Service. store can be nil.
func New(store StorePinger) *Service {
	return &Service{store: store, timeout: 3 * time.Second}
}

// WithComponent adds a named backend check. nil checkers are ignored.
func (s *Service) WithComponent(name string, c ComponentChecker) *Service {
	if c != nil {
		s.components = append(s.components, component{name: name, checker: c})
	}
	return s
}

// WithDocuments reports the knowledge base size alongside the checks.
// An empty knowledge base degrades the status.
func (s *Service) WithDocuments(fn DocumentCounter) *Service {
	s.documents = fn
	return s
}

// Check runs health checks against all components, each bounded by a short timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.store != nil {
		checks["context_store"] = s.run(ctx, s.store.Ping)
	}
	for _, c := range s.components {
		checks[c.name] = s.run(ctx, c.checker.HealthCheck)
	}

	report := Report{Status: Healthy, Checks: checks}
	if s.documents != nil {
		report.Documents = s.documents()
		if report.Documents == 0 {
			checks["knowledge_base"] = CheckError
		} else {
			checks["knowledge_base"] = CheckOK
		}
	}

	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}
	return report
}

func (s *Service) run(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
