// Package listing serves list and retrieve from the search index, falling back
// to the system of record when the index cannot answer.
package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/page"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	"github.com/kailas-cloud/scopedex/internal/logger"
)

// DefaultIndexTimeout bounds a single index read.
const DefaultIndexTimeout = 2 * time.Second

// Metrics are the optional counters the service reports to.
type Metrics struct {
	Fallback *prometheus.CounterVec   // labels: entity, op
	Duration *prometheus.HistogramVec // labels: entity, op, status
	Degraded prometheus.Counter
}

// Service implements synchronized list and retrieve.
type Service struct {
	catalog       Catalog
	index         IndexReader
	records       RecordReader
	scopes        ScopeProvider
	indexTimeout  time.Duration
	retrieveScope bool
	metrics       Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithIndexTimeout bounds each index call; the timeout counts as an index failure.
func WithIndexTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.indexTimeout = d
		}
	}
}

// WithRetrieveScope makes Retrieve hide entities outside the subject's tenants.
func WithRetrieveScope(enabled bool) Option {
	return func(s *Service) { s.retrieveScope = enabled }
}

// WithMetrics attaches counters.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a listing service.
func New(catalog Catalog, index IndexReader, records RecordReader, scopes ScopeProvider, opts ...Option) *Service {
	s := &Service{
		catalog:      catalog,
		index:        index,
		records:      records,
		scopes:       scopes,
		indexTimeout: DefaultIndexTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns one page of entities visible to subject and matching params.
// Reserved params (page, per_page, search, ordering) steer the query; all others filter.
func (s *Service) List(
	ctx context.Context, subject, entityType string, params url.Values, req page.Request,
) (page.Response[document.Document], error) {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return page.Response[document.Document]{}, err
	}
	if err := req.Validate(); err != nil {
		return page.Response[document.Document]{}, err
	}

	ctx, log := logger.With(ctx, zap.String("entity", desc.Name), zap.String("subject", subject))

	compiled := s.compile(log, desc, params)

	sc := s.scopes.Get(ctx, subject)
	if !sc.Unrestricted {
		if sc.IsEmpty() {
			log.Warn("subject has no visible tenants")
		}
		compiled = compiled.With(query.TenantClause(desc.TenantField, sc.TenantIDs))
		if desc.BrandField != "" {
			compiled = compiled.With(query.TenantClause(desc.BrandField, sc.BrandIDs))
		}
	}

	offset, limit := req.Offset(), req.PerPage

	docs, err := s.tryIndexList(ctx, desc, compiled, offset, limit)
	if err == nil {
		return page.NewResponse(docs, req), nil
	}
	if ctx.Err() != nil {
		return page.Response[document.Document]{}, ctx.Err()
	}
	s.noteFallback(log, desc, "list", err)

	docs, err = s.tryStoreList(ctx, desc, compiled, offset, limit)
	if err != nil {
		return page.Response[document.Document]{}, err
	}
	return page.NewResponse(docs, req), nil
}

func (s *Service) compile(log *zap.Logger, desc *entity.Descriptor, params url.Values) query.Compiled {
	compiled := query.CompileValues(params)
	for _, key := range compiled.Degraded() {
		log.Warn("query parameter degraded to raw equality", zap.String("key", key))
		if s.metrics.Degraded != nil {
			s.metrics.Degraded.Inc()
		}
	}

	if o := query.ParseOrdering(params.Get(query.ParamOrdering)); o != nil {
		if desc.IsOrderable(o.Field) {
			compiled = compiled.WithOrdering(o)
		} else {
			log.Warn("ordering dropped", zap.String("field", o.Field))
		}
	}
	return compiled.WithSearch(params.Get(query.ParamSearch), desc.SearchFields)
}

func (s *Service) tryIndexList(
	ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]document.Document, error) {
	ictx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	defer cancel()

	start := time.Now()
	docs, err := s.index.Search(ictx, desc, q, offset, limit)
	s.observe(desc, "list", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return docs, nil
}

func (s *Service) tryStoreList(
	ctx context.Context, desc *entity.Descriptor, q query.Compiled, offset, limit int,
) ([]document.Document, error) {
	rows, err := s.records.List(ctx, desc, q, offset, limit)
	if err != nil {
		return nil, storeErr(ctx, fmt.Sprintf("list %s", desc.Name), err)
	}
	docs := make([]document.Document, len(rows))
	for i, row := range rows {
		docs[i] = document.Project(desc, row)
	}
	return docs, nil
}

// Retrieve returns one entity by id, from the index when possible.
func (s *Service) Retrieve(ctx context.Context, subject, entityType string, id int64) (document.Document, error) {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return document.Document{}, err
	}
	log := logger.FromContext(ctx).With(zap.String("entity", desc.Name), zap.Int64("id", id))

	doc, err := s.tryIndexGet(ctx, desc, id)
	if err != nil {
		if ctx.Err() != nil {
			return document.Document{}, ctx.Err()
		}
		s.noteFallback(log, desc, "retrieve", err)
		doc, err = s.tryStoreGet(ctx, desc, id)
		if err != nil {
			return document.Document{}, err
		}
	}

	if s.retrieveScope && !s.visible(ctx, subject, desc, doc) {
		return document.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

func (s *Service) tryIndexGet(ctx context.Context, desc *entity.Descriptor, id int64) (document.Document, error) {
	ictx, cancel := context.WithTimeout(ctx, s.indexTimeout)
	defer cancel()

	start := time.Now()
	doc, err := s.index.Get(ictx, desc, id)
	s.observe(desc, "retrieve", start, err)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return doc, nil
}

func (s *Service) tryStoreGet(ctx context.Context, desc *entity.Descriptor, id int64) (document.Document, error) {
	row, err := s.records.Get(ctx, desc, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return document.Document{}, domain.ErrNotFound
		}
		return document.Document{}, storeErr(ctx, fmt.Sprintf("get %s %d", desc.Name, id), err)
	}
	return document.Project(desc, row), nil
}

func (s *Service) visible(ctx context.Context, subject string, desc *entity.Descriptor, doc document.Document) bool {
	sc := s.scopes.Get(ctx, subject)
	if sc.Unrestricted {
		return true
	}
	tenant, ok := doc.Int(desc.TenantField)
	if !ok || !sc.Allows(tenant) {
		return false
	}
	if desc.BrandField == "" {
		return true
	}
	brand, ok := doc.Int(desc.BrandField)
	return ok && sc.AllowsBrand(brand)
}

func (s *Service) noteFallback(log *zap.Logger, desc *entity.Descriptor, op string, err error) {
	if errors.Is(err, domain.ErrUnsupportedClause) || errors.Is(err, domain.ErrNotFound) {
		log.Info("serving from system of record", zap.String("op", op), zap.Error(err))
	} else {
		log.Warn("search index unavailable, serving from system of record", zap.String("op", op), zap.Error(err))
	}
	if s.metrics.Fallback != nil {
		s.metrics.Fallback.WithLabelValues(desc.Name, op).Inc()
	}
}

func (s *Service) observe(desc *entity.Descriptor, op string, start time.Time, err error) {
	if s.metrics.Duration == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.Duration.WithLabelValues(desc.Name, op, status).Observe(time.Since(start).Seconds())
}

// storeErr keeps cancellation visible and tags everything else as a system-of-record failure.
func storeErr(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, domain.ErrSystemOfRecord) || errors.Is(err, domain.ErrInvalidPayload) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %w", what, domain.ErrSystemOfRecord, err)
}
