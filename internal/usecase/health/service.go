package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the search index is down; reads fall back to the system of record.
	Degraded Status = "degraded"
	// Unhealthy indicates the system of record is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentIndex  = "search_index"
	ComponentRecord = "system_of_record"
)

const defaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index   Pinger
	record  Pinger
	timeout time.Duration
}

// New creates a Service.
func New(index, record Pinger) *Service {
	return &Service{index: index, record: record, timeout: defaultTimeout}
}

// Check pings both stores concurrently.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Failures are results, not errors: one down store must not cancel the other's ping.
	var indexRes, recordRes CheckResult
	var g errgroup.Group
	g.Go(func() error {
		indexRes = ping(ctx, s.index)
		return nil
	})
	g.Go(func() error {
		recordRes = ping(ctx, s.record)
		return nil
	})
	_ = g.Wait()

	status := Healthy
	switch {
	case recordRes == CheckError:
		status = Unhealthy
	case indexRes == CheckError:
		status = Degraded
	}

	return Report{
		Status: status,
		Checks: map[string]CheckResult{
			ComponentIndex:  indexRes,
			ComponentRecord: recordRes,
		},
	}
}

func ping(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
