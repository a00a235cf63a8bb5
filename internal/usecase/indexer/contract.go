package indexer

import (
	"context"

	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
)

// Catalog resolves and enumerates entity types.
type Catalog interface {
	Get(name string) (*entity.Descriptor, error)
	Names() []string
}

// RecordWriter is the authoritative store.
type RecordWriter interface {
	Create(ctx context.Context, desc *entity.Descriptor, values map[string]any) (entity.Row, error)
	Update(ctx context.Context, desc *entity.Descriptor, id int64, values map[string]any) (entity.Row, error)
	Delete(ctx context.Context, desc *entity.Descriptor, id int64) error
	List(ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int) ([]entity.Row, error)
}

// IndexWriter mirrors committed writes into the search index.
type IndexWriter interface {
	Upsert(ctx context.Context, desc *entity.Descriptor, doc document.Document) error
	UpsertMany(ctx context.Context, desc *entity.Descriptor, docs []document.Document) error
	Delete(ctx context.Context, desc *entity.Descriptor, id int64) error
	EnsureIndex(ctx context.Context, desc *entity.Descriptor) (bool, error)
	Recreate(ctx context.Context, desc *entity.Descriptor) error
	IDs(ctx context.Context, desc *entity.Descriptor, after, upTo int64, limit int) ([]int64, error)
}

// ScopeRefresher recomputes a subject's access scope after a write.
type ScopeRefresher interface {
	Refresh(ctx context.Context, subject string) domscope.AccessScope
}
