package record

import (
	"context"
	"strings"
	"testing"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
)

type call struct {
	sql  string
	args []any
}

// fakeStore answers queries from a list of canned results keyed by SQL prefix.
type fakeStore struct {
	calls   []call
	results map[string]*fakeRows
	rowFn   func(sql string, args []any) db.Row
	execFn  func(sql string, args []any) (int64, error)
	queryFn func(sql string, args []any) (db.Rows, error)
	txCount int
}

func (f *fakeStore) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	f.calls = append(f.calls, call{sql, args})
	if f.execFn != nil {
		return f.execFn(sql, args)
	}
	return 1, nil
}

func (f *fakeStore) Query(_ context.Context, sql string, args ...any) (db.Rows, error) {
	f.calls = append(f.calls, call{sql, args})
	if f.queryFn != nil {
		return f.queryFn(sql, args)
	}
	for prefix, r := range f.results {
		if strings.HasPrefix(sql, prefix) {
			cp := *r
			cp.pos = -1
			return &cp, nil
		}
	}
	return &fakeRows{pos: -1}, nil
}

func (f *fakeStore) QueryRow(_ context.Context, sql string, args ...any) db.Row {
	f.calls = append(f.calls, call{sql, args})
	if f.rowFn != nil {
		return f.rowFn(sql, args)
	}
	return fakeRow{err: db.ErrNoRows}
}

func (f *fakeStore) Tx(_ context.Context, fn func(q db.Querier) error) error {
	f.txCount++
	return fn(f)
}

type fakeRows struct {
	cols []string
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos], nil }
func (r *fakeRows) Columns() []string      { return r.cols }
func (r *fakeRows) Err() error             { return r.err }
func (r *fakeRows) Close()                 {}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dst ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dst {
		switch p := dst[i].(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *bool:
			*p = r.vals[i].(bool)
		}
	}
	return nil
}

func newTestGateway(t *testing.T) (*Gateway, *fakeStore) {
	t.Helper()
	fs := &fakeStore{results: map[string]*fakeRows{}}
	return New(fs), fs
}

func orgDesc() *entity.Descriptor {
	return &entity.Descriptor{
		Name:           "organizations",
		Table:          "organizations",
		Index:          "organizations",
		TenantField:    entity.IDField,
		SearchFields:   []string{"organization_name", "street_address"},
		OrderingFields: []string{entity.IDField, "organization_name"},
		Fields: []entity.Field{
			{Name: "organization_name", Rule: entity.Scalar, Kind: entity.Text},
			{Name: "status", Rule: entity.Scalar, Kind: entity.Tag},
			{Name: "confirmed", Rule: entity.Scalar, Kind: entity.Bool},
			{Name: "seats", Rule: entity.Scalar, Kind: entity.Numeric},
			{Name: "created_at", Rule: entity.Scalar, Kind: entity.Time},
			{Name: "default", Column: "is_default", Rule: entity.Scalar, Kind: entity.Bool},
		},
		Relations: []entity.Relation{{
			Name:     "location",
			Table:    "locations",
			FKColumn: "location_id",
			Fields: []entity.Field{
				{Name: "city", Rule: entity.Scalar, Kind: entity.Tag},
				{Name: "street_address", Rule: entity.Scalar, Kind: entity.Text},
			},
		}},
	}
}
