package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/scopedex/internal/db"
)

// Organizations a subject owns, plus those reachable through brand employment.
const tenantsSQL = `SELECT o.id FROM organizations o WHERE o.user_id = $1
UNION
SELECT b.organization_id FROM brands_employees be
JOIN brands b ON b.id = be.brand_id
WHERE be.employee_id = $1 AND b.organization_id IS NOT NULL
ORDER BY 1`

// Brands of the organizations a subject owns, plus the brands it is employed at.
const brandsSQL = `SELECT b.id FROM brands b
JOIN organizations o ON o.id = b.organization_id
WHERE o.user_id = $1
UNION
SELECT be.brand_id FROM brands_employees be
WHERE be.employee_id = $1
ORDER BY 1`

const unrestrictedSQL = `SELECT is_superuser FROM users WHERE id = $1`

// TenantsForSubject returns the ids of every organization the subject may see.
func (g *Gateway) TenantsForSubject(ctx context.Context, subject string) ([]int64, error) {
	return g.subjectIDs(ctx, tenantsSQL, subject)
}

// BrandsForSubject returns the ids of every brand the subject may see.
func (g *Gateway) BrandsForSubject(ctx context.Context, subject string) ([]int64, error) {
	return g.subjectIDs(ctx, brandsSQL, subject)
}

// subjectIDs runs a single-column id query keyed by the subject's user id.
func (g *Gateway) subjectIDs(ctx context.Context, sql, subject string) ([]int64, error) {
	uid, err := subjectID(subject)
	if err != nil {
		return nil, err
	}
	rows, err := g.store.Query(ctx, sql, uid)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, mapErr(err)
		}
		if len(vals) == 0 {
			continue
		}
		if id, ok := asInt64(vals[0]); ok {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return ids, nil
}

// IsUnrestricted reports whether the subject bypasses tenant filtering. Unknown subjects are restricted.
func (g *Gateway) IsUnrestricted(ctx context.Context, subject string) (bool, error) {
	uid, err := subjectID(subject)
	if err != nil {
		return false, err
	}
	var super bool
	err = g.store.QueryRow(ctx, unrestrictedSQL, uid).Scan(&super)
	if errors.Is(err, db.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return super, nil
}

// subjectID parses the user id a subject names.
func subjectID(subject string) (int64, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subject %q is not a user id: %w", subject, err)
	}
	return id, nil
}
