// Package index is the search index gateway: entity-aware reads and writes over the
// Redis query engine.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
)

// store is the consumer interface for the index gateway (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
}

// defaultSort mirrors the store's default ordering so both read paths page identically.
var defaultSort = &query.Ordering{Field: entity.IDField, Desc: true}

// Gateway implements the search index side of list, retrieve and write-through.
type Gateway struct {
	store store
}

// New creates an index gateway.
func New(s store) *Gateway {
	return &Gateway{store: s}
}

// Search returns one page of documents matching every compiled clause.
// Clauses the index cannot express fail with domain.ErrUnsupportedClause.
func (g *Gateway) Search(
	ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]document.Document, error) {
	def, err := Definition(desc)
	if err != nil {
		return nil, err
	}

	res, err := g.store.Search(ctx, &db.SearchQuery{
		IndexName:    def.Name,
		Schema:       def.Schema(),
		Filters:      q,
		DefaultSort:  defaultSort,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: []string{"$"},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", desc.Name, err)
	}

	docs := make([]document.Document, 0, len(res.Entries))
	for _, entry := range res.Entries {
		doc, err := decodeEntry(desc, entry)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", desc.Name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeEntry(desc *entity.Descriptor, entry db.SearchEntry) (document.Document, error) {
	raw, ok := entry.Fields["$"]
	if !ok {
		return document.Document{}, fmt.Errorf("entry %s: missing document body", entry.Key)
	}
	doc, err := document.Decode([]byte(raw))
	if err != nil {
		return document.Document{}, fmt.Errorf("entry %s: %w", entry.Key, err)
	}
	if id, err := strconv.ParseInt(strings.TrimPrefix(entry.Key, Prefix(desc)), 10, 64); err == nil && id != doc.ID() {
		return document.Document{}, fmt.Errorf("entry %s: body id %d does not match key", entry.Key, doc.ID())
	}
	return doc, nil
}

// Get returns the indexed document with the given id.
func (g *Gateway) Get(ctx context.Context, desc *entity.Descriptor, id int64) (document.Document, error) {
	key := docKey(desc, id)
	raw, err := g.store.JSONGet(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return document.Document{}, domain.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	doc, err := document.Decode(unwrapPathResult(raw))
	if err != nil {
		return document.Document{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

// unwrapPathResult strips the single-element array JSONPath replies come wrapped in.
func unwrapPathResult(raw []byte) []byte {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 {
		return arr[0]
	}
	return raw
}

// Upsert writes the document, replacing any previous version.
func (g *Gateway) Upsert(ctx context.Context, desc *entity.Descriptor, doc document.Document) error {
	key := docKey(desc, doc.ID())
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := g.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// UpsertMany writes a batch of documents in one round-trip.
func (g *Gateway) UpsertMany(ctx context.Context, desc *entity.Descriptor, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]db.JSONSetItem, len(docs))
	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", docKey(desc, doc.ID()), err)
		}
		items[i] = db.JSONSetItem{Key: docKey(desc, doc.ID()), Path: "$", Data: data}
	}
	if err := g.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("json.set batch %s: %w", desc.Name, err)
	}
	return nil
}

// Delete removes the document. A missing document yields domain.ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, desc *entity.Descriptor, id int64) error {
	key := docKey(desc, id)
	if err := g.store.Del(ctx, key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// EnsureIndex creates the FT index when it does not exist yet. Returns true if created.
func (g *Gateway) EnsureIndex(ctx context.Context, desc *entity.Descriptor) (bool, error) {
	def, err := Definition(desc)
	if err != nil {
		return false, err
	}
	exists, err := g.store.IndexExists(ctx, def.Name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", def.Name, err)
	}
	if exists {
		return false, nil
	}
	if err := g.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return true, nil
}

// Recreate replaces the FT index definition. Documents are kept and the engine
// rescans them under the new schema.
func (g *Gateway) Recreate(ctx context.Context, desc *entity.Descriptor) error {
	def, err := Definition(desc)
	if err != nil {
		return err
	}
	if err := g.store.DropIndex(ctx, def.Name, false); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", def.Name, err)
	}
	if err := g.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// IDs returns up to limit indexed ids in (after, upTo], ascending.
func (g *Gateway) IDs(ctx context.Context, desc *entity.Descriptor, after, upTo int64, limit int) ([]int64, error) {
	def, err := Definition(desc)
	if err != nil {
		return nil, err
	}
	q := query.Compiled{}.
		With(query.Bound(entity.IDField, query.Gt, after), query.Bound(entity.IDField, query.Lte, upTo)).
		WithOrdering(&query.Ordering{Field: entity.IDField})
	res, err := g.store.Search(ctx, &db.SearchQuery{
		IndexName:    def.Name,
		Schema:       def.Schema(),
		Filters:      q,
		Limit:        limit,
		ReturnFields: []string{entity.IDField},
	})
	if err != nil {
		return nil, fmt.Errorf("scan ids %s: %w", desc.Name, err)
	}
	ids := make([]int64, 0, len(res.Entries))
	for _, entry := range res.Entries {
		id, err := strconv.ParseInt(strings.TrimPrefix(entry.Key, Prefix(desc)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("scan ids %s: key %s: %w", desc.Name, entry.Key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
