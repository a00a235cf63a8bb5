package scopedex

import (
	"context"

	healthuc "github.com/kailas-cloud/scopedex/internal/usecase/health"
)

// HealthStatus is the aggregated state of the two backing stores.
// "degraded" means the search index is down and reads are served from Postgres.
type HealthStatus struct {
	Status string
	Checks map[string]string // "search_index" / "system_of_record" -> "ok" or "error"
}

// Serving reports whether reads and writes can still succeed.
func (h HealthStatus) Serving() bool {
	return h.Status != string(healthuc.Unhealthy)
}

// Health pings the search index and the system of record.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	out := HealthStatus{
		Status: string(report.Status),
		Checks: make(map[string]string, len(report.Checks)),
	}
	for component, res := range report.Checks {
		out.Checks[component] = string(res)
	}
	return out
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
