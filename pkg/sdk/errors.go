package scopedex

import "github.com/kailas-cloud/scopedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrSystemOfRecord    = domain.ErrSystemOfRecord
	ErrUnknownEntity     = domain.ErrUnknownEntity
	ErrInvalidPayload    = domain.ErrInvalidPayload
	ErrConflict          = domain.ErrConflict
	ErrUnsupportedClause = domain.ErrUnsupportedClause
)
