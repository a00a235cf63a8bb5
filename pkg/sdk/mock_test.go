package scopedex

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/page"
	healthuc "github.com/kailas-cloud/scopedex/internal/usecase/health"
)

// --- listingUseCase mock ---

type mockListingUC struct {
	listFn     func(ctx context.Context, subject, entityType string, params url.Values, req page.Request) (page.Response[document.Document], error)
	retrieveFn func(ctx context.Context, subject, entityType string, id int64) (document.Document, error)
}

func (m *mockListingUC) List(
	ctx context.Context, subject, entityType string, params url.Values, req page.Request,
) (page.Response[document.Document], error) {
	return m.listFn(ctx, subject, entityType, params, req)
}

func (m *mockListingUC) Retrieve(ctx context.Context, subject, entityType string, id int64) (document.Document, error) {
	return m.retrieveFn(ctx, subject, entityType, id)
}

// --- indexerUseCase mock ---

type mockIndexerUC struct {
	createFn  func(ctx context.Context, subject, entityType string, values map[string]any) (entity.Row, error)
	updateFn  func(ctx context.Context, subject, entityType string, id int64, values map[string]any) (entity.Row, error)
	deleteFn  func(ctx context.Context, subject, entityType string, id int64) error
	reindexFn func(ctx context.Context, entityType string) (int, error)
	ensureFn  func(ctx context.Context) error
}

func (m *mockIndexerUC) Create(
	ctx context.Context, subject, entityType string, values map[string]any,
) (entity.Row, error) {
	return m.createFn(ctx, subject, entityType, values)
}

func (m *mockIndexerUC) Update(
	ctx context.Context, subject, entityType string, id int64, values map[string]any,
) (entity.Row, error) {
	return m.updateFn(ctx, subject, entityType, id, values)
}

func (m *mockIndexerUC) Delete(ctx context.Context, subject, entityType string, id int64) error {
	return m.deleteFn(ctx, subject, entityType, id)
}

func (m *mockIndexerUC) Reindex(ctx context.Context, entityType string) (int, error) {
	return m.reindexFn(ctx, entityType)
}

func (m *mockIndexerUC) EnsureIndexes(ctx context.Context) error {
	return m.ensureFn(ctx)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

func testCatalog() *entity.Catalog {
	c, err := entity.NewCatalog(entity.Builtin()...)
	if err != nil {
		panic(err)
	}
	return c
}
