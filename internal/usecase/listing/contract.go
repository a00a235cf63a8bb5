package listing

import (
	"context"

	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
)

// Catalog resolves entity types.
type Catalog interface {
	Get(name string) (*entity.Descriptor, error)
}

// IndexReader is the search index side of the read path.
type IndexReader interface {
	Search(ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int) ([]document.Document, error)
	Get(ctx context.Context, desc *entity.Descriptor, id int64) (document.Document, error)
}

// RecordReader is the system-of-record side of the read path.
type RecordReader interface {
	List(ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int) ([]entity.Row, error)
	Get(ctx context.Context, desc *entity.Descriptor, id int64) (entity.Row, error)
}

// ScopeProvider returns the tenant visibility of a subject.
type ScopeProvider interface {
	Get(ctx context.Context, subject string) domscope.AccessScope
}
