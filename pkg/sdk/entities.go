package scopedex

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/page"
)

// EntityService reads and writes one entity type on behalf of a subject.
type EntityService struct {
	entity   string
	label    string // metrics label, bounded to registered names
	listSvc  listingUseCase
	writeSvc indexerUseCase
	catalog  *entity.Catalog
	obs      *observer
}

// List returns one page of entities visible to subject.
// Filters use the same keys as the HTTP query string (e.g. "city__in").
// pageNum and perPage of zero mean page 1 and the default page size.
func (s *EntityService) List(
	ctx context.Context, subject string, filters url.Values, pageNum, perPage int,
) (p Page, err error) {
	start := time.Now()
	defer func() { s.obs.observe("list", s.label, start, err) }()
	ctx = s.obs.bind(ctx)

	req := page.Request{Page: pageNum, PerPage: perPage}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PerPage == 0 {
		req.PerPage = page.DefaultPerPage
	}

	resp, err := s.listSvc.List(ctx, subject, s.entity, filters, req)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", s.entity, err)
	}

	items := make([]Document, len(resp.Items))
	for i, d := range resp.Items {
		items[i] = fromDomain(d)
	}
	return Page{
		Items:    items,
		Count:    resp.Count,
		PerPage:  resp.PerPage,
		Previous: resp.Previous,
		Next:     resp.Next,
	}, nil
}

// Retrieve returns one entity by id.
func (s *EntityService) Retrieve(ctx context.Context, subject string, id int64) (doc Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("retrieve", s.label, start, err) }()
	ctx = s.obs.bind(ctx)

	d, err := s.listSvc.Retrieve(ctx, subject, s.entity, id)
	if err != nil {
		return Document{}, fmt.Errorf("retrieve %s %d: %w", s.entity, id, err)
	}
	return fromDomain(d), nil
}

// Create writes a new entity and returns its projection.
// The search index is updated after the commit; index failures are not returned.
func (s *EntityService) Create(ctx context.Context, subject string, values map[string]any) (doc Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("create", s.label, start, err) }()
	ctx = s.obs.bind(ctx)

	row, err := s.writeSvc.Create(ctx, subject, s.entity, values)
	if err != nil {
		return Document{}, err
	}
	return s.project(row)
}

// Update changes an existing entity and returns its projection.
func (s *EntityService) Update(
	ctx context.Context, subject string, id int64, values map[string]any,
) (doc Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("update", s.label, start, err) }()
	ctx = s.obs.bind(ctx)

	row, err := s.writeSvc.Update(ctx, subject, s.entity, id, values)
	if err != nil {
		return Document{}, err
	}
	return s.project(row)
}

// Delete removes an entity from the system of record and the index.
func (s *EntityService) Delete(ctx context.Context, subject string, id int64) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("delete", s.label, start, err) }()
	ctx = s.obs.bind(ctx)

	return s.writeSvc.Delete(ctx, subject, s.entity, id)
}

// Reindex rebuilds this entity's search index from the system of record.
func (s *EntityService) Reindex(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { s.obs.observe("reindex", s.label, start, err) }()
	ctx = s.obs.bind(ctx)

	return s.writeSvc.Reindex(ctx, s.entity)
}

func (s *EntityService) project(row entity.Row) (Document, error) {
	desc, err := s.catalog.Get(s.entity)
	if err != nil {
		return Document{}, err
	}
	return fromDomain(document.Project(desc, row)), nil
}
