package listing

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
)

func propertyDesc() *entity.Descriptor {
	return &entity.Descriptor{
		Name:           "properties",
		Table:          "properties",
		Index:          "properties",
		TenantField:    "organization_id",
		SearchFields:   []string{"name"},
		OrderingFields: []string{entity.IDField, "name"},
		Fields: []entity.Field{
			{Name: "organization_id", Rule: entity.Reference, Kind: entity.Numeric},
			{Name: "name", Rule: entity.Scalar, Kind: entity.Text},
			{Name: "status", Rule: entity.Scalar, Kind: entity.Tag},
			{Name: "bedrooms", Rule: entity.Scalar, Kind: entity.Numeric},
		},
		Relations: []entity.Relation{{
			Name:     "location",
			Table:    "locations",
			FKColumn: "location_id",
			Fields:   []entity.Field{{Name: "city", Rule: entity.Scalar, Kind: entity.Tag}},
		}},
	}
}

type fakeCatalog struct{ desc *entity.Descriptor }

func (c fakeCatalog) Get(name string) (*entity.Descriptor, error) {
	if name != c.desc.Name {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, name)
	}
	return c.desc, nil
}

// dataset is a shared in-memory corpus both fake gateways read from.
type dataset struct {
	desc *entity.Descriptor
	rows []entity.Row
}

var cities = []string{"Lisbon", "Porto", "Metro Manila", "Faro"}

func newDataset(n, tenants int) *dataset {
	ds := &dataset{desc: propertyDesc()}
	for i := 1; i <= n; i++ {
		ds.rows = append(ds.rows, entity.Row{
			ID: int64(i),
			Values: map[string]any{
				"organization_id": map[string]any{"id": int64(i%tenants + 1)},
				"name":            fmt.Sprintf("Property %d", i),
				"status":          []string{"green", "red"}[i%2],
				"bedrooms":        int64(i % 5),
				"location_id":     int64(i % len(cities)),
			},
			Relations: map[string]map[string]any{
				"location": {"city": cities[i%len(cities)]},
			},
		})
	}
	return ds
}

// matches evaluates compiled clauses against a projected document.
func matches(doc document.Document, q query.Compiled) bool {
	for _, c := range q.Clauses {
		v, ok := doc.Get(c.Field)
		if !ok {
			return false
		}
		got := strings.ToLower(fmt.Sprint(v))
		switch c.Op {
		case query.Eq:
			if got != strings.ToLower(c.Value) {
				return false
			}
		case query.In:
			found := false
			for _, want := range c.Values {
				if got == strings.ToLower(want) {
					found = true
				}
			}
			if !found {
				return false
			}
		case query.Contains:
			if !strings.Contains(got, c.Pattern()) {
				return false
			}
		case query.StartsWith:
			if !strings.HasPrefix(got, c.Pattern()) {
				return false
			}
		default:
			n, err1 := strconv.ParseFloat(got, 64)
			bound, err2 := strconv.ParseFloat(c.Value, 64)
			if err1 != nil || err2 != nil {
				return false
			}
			if (c.Op == query.Gte && n < bound) || (c.Op == query.Gt && n <= bound) ||
				(c.Op == query.Lte && n > bound) || (c.Op == query.Lt && n >= bound) {
				return false
			}
		}
	}
	if q.Search != nil {
		hit := false
		for _, f := range q.Search.Fields {
			v, _ := doc.Get(f)
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(q.Search.Term)) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func (ds *dataset) query(q query.Compiled, offset, limit int) []int {
	var idx []int
	for i, row := range ds.rows {
		if matches(document.Project(ds.desc, row), q) {
			idx = append(idx, i)
		}
	}
	slices.SortFunc(idx, func(a, b int) int { return int(ds.rows[b].ID - ds.rows[a].ID) })
	if offset >= len(idx) {
		return nil
	}
	return idx[offset:min(offset+limit, len(idx))]
}

type fakeIndex struct {
	ds       *dataset
	err      error
	block    bool
	searches atomic.Int32
	lastQ    query.Compiled
}

func (f *fakeIndex) Search(
	ctx context.Context, _ *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]document.Document, error) {
	f.searches.Add(1)
	f.lastQ = q
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []document.Document
	for _, i := range f.ds.query(q, offset, limit) {
		out = append(out, document.Project(f.ds.desc, f.ds.rows[i]))
	}
	return out, nil
}

func (f *fakeIndex) Get(ctx context.Context, _ *entity.Descriptor, id int64) (document.Document, error) {
	if err := ctx.Err(); err != nil {
		return document.Document{}, err
	}
	if f.err != nil {
		return document.Document{}, f.err
	}
	for _, row := range f.ds.rows {
		if row.ID == id {
			return document.Project(f.ds.desc, row), nil
		}
	}
	return document.Document{}, domain.ErrNotFound
}

type fakeRecords struct {
	ds    *dataset
	err   error
	lists atomic.Int32
	gets  atomic.Int32
}

func (f *fakeRecords) List(
	_ context.Context, _ *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]entity.Row, error) {
	f.lists.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.Row
	for _, i := range f.ds.query(q, offset, limit) {
		out = append(out, f.ds.rows[i])
	}
	return out, nil
}

func (f *fakeRecords) Get(_ context.Context, _ *entity.Descriptor, id int64) (entity.Row, error) {
	f.gets.Add(1)
	if f.err != nil {
		return entity.Row{}, f.err
	}
	for _, row := range f.ds.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return entity.Row{}, domain.ErrNotFound
}

type fakeScopes struct{ scope domscope.AccessScope }

func (f fakeScopes) Get(context.Context, string) domscope.AccessScope { return f.scope }

func restricted(ids ...int64) fakeScopes {
	return fakeScopes{scope: domscope.New("7", ids, false, time.Now(), time.Hour)}
}

func unrestricted() fakeScopes {
	return fakeScopes{scope: domscope.New("1", nil, true, time.Now(), time.Hour)}
}

func newTestService(t *testing.T, ds *dataset, scopes ScopeProvider, opts ...Option) (*Service, *fakeIndex, *fakeRecords) {
	t.Helper()
	idx := &fakeIndex{ds: ds}
	rec := &fakeRecords{ds: ds}
	return New(fakeCatalog{desc: ds.desc}, idx, rec, scopes, opts...), idx, rec
}
