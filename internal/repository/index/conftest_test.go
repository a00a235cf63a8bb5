package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn      func(ctx context.Context, key, path string, data []byte) error
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	jsonGetFn      func(ctx context.Context, key string, paths ...string) ([]byte, error)
	delFn          func(ctx context.Context, key string) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn    func(ctx context.Context, name string, deleteDocs bool) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchFn       func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestGateway(t *testing.T) (*Gateway, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func propertyDesc() *entity.Descriptor {
	return &entity.Descriptor{
		Name:           "properties",
		Table:          "properties",
		Index:          "properties",
		TenantField:    "organization_id",
		SearchFields:   []string{"name"},
		OrderingFields: []string{entity.IDField, "name", "created_at"},
		Fields: []entity.Field{
			{Name: "organization_id", Rule: entity.Reference, Kind: entity.Numeric},
			{Name: "name", Rule: entity.Scalar, Kind: entity.Text},
			{Name: "status", Rule: entity.Scalar, Kind: entity.Tag},
			{Name: "active", Rule: entity.Scalar, Kind: entity.Bool},
			{Name: "created_at", Rule: entity.Scalar, Kind: entity.Time},
		},
		Relations: []entity.Relation{{
			Name:     "location",
			Table:    "locations",
			FKColumn: "location_id",
			Fields: []entity.Field{
				{Name: "city", Rule: entity.Scalar, Kind: entity.Tag},
				{Name: "latitude", Rule: entity.Scalar, Kind: entity.Numeric},
			},
		}},
	}
}
