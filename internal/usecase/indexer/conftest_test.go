package indexer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
)

func brandDesc() entity.Descriptor {
	return entity.Descriptor{
		Name:           "brands",
		Table:          "brands",
		Index:          "brands",
		TenantField:    "organization_id",
		OrderingFields: []string{entity.IDField, "name"},
		Fields: []entity.Field{
			{Name: "organization_id", Rule: entity.Reference, Kind: entity.Numeric},
			{Name: "name", Rule: entity.Scalar, Kind: entity.Text},
			{Name: "default", Column: "is_default", Rule: entity.Scalar, Kind: entity.Bool},
		},
	}
}

func newCatalog() *entity.Catalog {
	other := brandDesc()
	other.Name, other.Table, other.Index = "properties", "properties", "properties"
	c, err := entity.NewCatalog(brandDesc(), other)
	if err != nil {
		panic(err)
	}
	return c
}

// --- Mocks ---

type mockRecords struct {
	mu      sync.Mutex
	rows    map[string]map[int64]entity.Row
	nextID  int64
	err     error
	listErr error
	lists   int
	// onList runs after each List call with the lock held.
	onList func(call int)
}

func newMockRecords() *mockRecords {
	return &mockRecords{rows: map[string]map[int64]entity.Row{}, nextID: 1}
}

func (m *mockRecords) seed(entityType string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[entityType] == nil {
		m.rows[entityType] = map[int64]entity.Row{}
	}
	for i := 0; i < n; i++ {
		id := m.nextID
		m.nextID++
		m.rows[entityType][id] = entity.Row{ID: id, Values: map[string]any{
			"organization_id": int64(1),
			"name":            fmt.Sprintf("row %d", id),
		}}
	}
}

func (m *mockRecords) Create(_ context.Context, desc *entity.Descriptor, values map[string]any) (entity.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return entity.Row{}, m.err
	}
	if m.rows[desc.Name] == nil {
		m.rows[desc.Name] = map[int64]entity.Row{}
	}
	row := entity.Row{ID: m.nextID, Values: columns(desc, values)}
	m.nextID++
	m.rows[desc.Name][row.ID] = row
	return row, nil
}

func (m *mockRecords) Update(
	_ context.Context, desc *entity.Descriptor, id int64, values map[string]any,
) (entity.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return entity.Row{}, m.err
	}
	row, ok := m.rows[desc.Name][id]
	if !ok {
		return entity.Row{}, domain.ErrNotFound
	}
	for k, v := range columns(desc, values) {
		row.Values[k] = v
	}
	m.rows[desc.Name][id] = row
	return row, nil
}

func (m *mockRecords) Delete(_ context.Context, desc *entity.Descriptor, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[desc.Name][id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows[desc.Name], id)
	return nil
}

func (m *mockRecords) List(
	_ context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]entity.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.onList != nil {
		defer m.onList(m.lists)
	}
	ids := make([]int64, 0, len(m.rows[desc.Name]))
	for id := range m.rows[desc.Name] {
		if idMatches(q, id) {
			ids = append(ids, id)
		}
	}
	descending := q.Ordering != nil && q.Ordering.Desc
	sort.Slice(ids, func(i, j int) bool {
		if descending {
			return ids[i] > ids[j]
		}
		return ids[i] < ids[j]
	})
	if offset >= len(ids) {
		return nil, nil
	}
	var out []entity.Row
	for _, id := range ids[offset:min(offset+limit, len(ids))] {
		out = append(out, m.rows[desc.Name][id])
	}
	return out, nil
}

// idMatches applies the id range bounds of q.
func idMatches(q query.Compiled, id int64) bool {
	for _, c := range q.Clauses {
		if c.Field != entity.IDField {
			continue
		}
		v, _ := strconv.ParseInt(c.Value, 10, 64)
		switch c.Op {
		case query.Gt:
			if id <= v {
				return false
			}
		case query.Lte:
			if id > v {
				return false
			}
		}
	}
	return true
}

func columns(desc *entity.Descriptor, values map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range desc.Fields {
		if v, ok := values[f.Name]; ok {
			out[f.ColumnName()] = v
		}
	}
	return out
}

type mockIndex struct {
	mu        sync.Mutex
	docs      map[string]map[int64]document.Document
	err       error
	upsertErr error
	recreated []string
	ensured   map[string]bool
	batches   int
	lastCtx   context.Context
}

func newMockIndex() *mockIndex {
	return &mockIndex{docs: map[string]map[int64]document.Document{}, ensured: map[string]bool{}}
}

func (m *mockIndex) put(name string, doc document.Document) {
	if m.docs[name] == nil {
		m.docs[name] = map[int64]document.Document{}
	}
	m.docs[name][doc.ID()] = doc
}

func (m *mockIndex) Upsert(ctx context.Context, desc *entity.Descriptor, doc document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.put(desc.Name, doc)
	return nil
}

func (m *mockIndex) UpsertMany(ctx context.Context, desc *entity.Descriptor, docs []document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches++
	for _, d := range docs {
		m.put(desc.Name, d)
	}
	return nil
}

func (m *mockIndex) Delete(ctx context.Context, desc *entity.Descriptor, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCtx = ctx
	if m.err != nil {
		return m.err
	}
	if _, ok := m.docs[desc.Name][id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs[desc.Name], id)
	return nil
}

func (m *mockIndex) EnsureIndex(_ context.Context, desc *entity.Descriptor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.ensured[desc.Name] {
		return false, nil
	}
	m.ensured[desc.Name] = true
	return true, nil
}

func (m *mockIndex) Recreate(_ context.Context, desc *entity.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recreated = append(m.recreated, desc.Name)
	return nil
}

func (m *mockIndex) IDs(_ context.Context, desc *entity.Descriptor, after, upTo int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var ids []int64
	for id := range m.docs[desc.Name] {
		if id > after && id <= upTo {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[:min(limit, len(ids))], nil
}

func (m *mockIndex) has(name string, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[name][id]
	return ok
}

func (m *mockIndex) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[name])
}

type mockScopes struct {
	mu        sync.Mutex
	refreshed []string
	ctxErr    error
}

func (m *mockScopes) Refresh(ctx context.Context, subject string) domscope.AccessScope {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, subject)
	m.ctxErr = ctx.Err()
	return domscope.AccessScope{SubjectID: subject}
}
