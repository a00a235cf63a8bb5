// Package scope holds the cached tenant visibility of a subject.
package scope

import (
	"slices"
	"time"
)

// AccessScope is the set of tenants a subject may see. BrandIDs narrows
// brand-level entity types within those tenants.
type AccessScope struct {
	SubjectID    string        `json:"subject_id"`
	TenantIDs    []int64       `json:"tenant_ids"`
	BrandIDs     []int64       `json:"brand_ids"`
	Unrestricted bool          `json:"unrestricted"`
	FetchedAt    time.Time     `json:"fetched_at"`
	TTL          time.Duration `json:"ttl"`
}

// New builds a scope with the tenant ids de-duplicated and sorted.
func New(subject string, tenantIDs []int64, unrestricted bool, fetchedAt time.Time, ttl time.Duration) AccessScope {
	return AccessScope{
		SubjectID:    subject,
		TenantIDs:    normalize(tenantIDs),
		BrandIDs:     []int64{},
		Unrestricted: unrestricted,
		FetchedAt:    fetchedAt,
		TTL:          ttl,
	}
}

// WithBrands returns a copy of s carrying the brand ids, de-duplicated and sorted.
func (s AccessScope) WithBrands(brandIDs []int64) AccessScope {
	s.BrandIDs = normalize(brandIDs)
	return s
}

func normalize(in []int64) []int64 {
	ids := slices.Clone(in)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if ids == nil {
		ids = []int64{}
	}
	return ids
}

// Empty is a restricted scope that sees nothing.
func Empty(subject string, now time.Time) AccessScope {
	return New(subject, nil, false, now, 0)
}

// Expired reports whether the entry is past its TTL at now.
func (s AccessScope) Expired(now time.Time) bool {
	return !now.Before(s.FetchedAt.Add(s.TTL))
}

// Allows reports whether a tenant id is visible. Unrestricted scopes see every tenant.
func (s AccessScope) Allows(tenantID int64) bool {
	if s.Unrestricted {
		return true
	}
	_, found := slices.BinarySearch(s.TenantIDs, tenantID)
	return found
}

// AllowsBrand reports whether a brand id is visible. Unrestricted scopes see every brand.
func (s AccessScope) AllowsBrand(brandID int64) bool {
	if s.Unrestricted {
		return true
	}
	_, found := slices.BinarySearch(s.BrandIDs, brandID)
	return found
}

// IsEmpty reports a restricted scope with no tenants.
func (s AccessScope) IsEmpty() bool {
	return !s.Unrestricted && len(s.TenantIDs) == 0
}
