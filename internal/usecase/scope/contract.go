package scope

import (
	"context"

	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
)

// Cache persists computed scopes between requests.
type Cache interface {
	Get(ctx context.Context, subject string) (domscope.AccessScope, error)
	Put(ctx context.Context, s domscope.AccessScope) error
	Delete(ctx context.Context, subject string) error
}

// Resolver computes a subject's visibility from the system of record.
type Resolver interface {
	TenantsForSubject(ctx context.Context, subject string) ([]int64, error)
	BrandsForSubject(ctx context.Context, subject string) ([]int64, error)
	IsUnrestricted(ctx context.Context, subject string) (bool, error)
}
