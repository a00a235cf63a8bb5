// Package indexer writes to the system of record and mirrors every committed
// change into the search index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/logger"
)

// Defaults.
const (
	DefaultIndexTimeout = 2 * time.Second
	DefaultBatchSize    = 500
)

// Metrics are the optional counters the service reports to.
type Metrics struct {
	WriteFailures *prometheus.CounterVec // labels: entity, op
	Reindexed     *prometheus.CounterVec // labels: entity
}

// Service implements write-through indexing.
type Service struct {
	catalog      Catalog
	records      RecordWriter
	index        IndexWriter
	scopes       ScopeRefresher
	indexTimeout time.Duration
	batchSize    int
	parallelism  int
	metrics      Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithIndexTimeout bounds each post-commit index write.
func WithIndexTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.indexTimeout = d
		}
	}
}

// WithBatchSize sets how many rows a reindex reads and writes per round-trip.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithParallelism caps how many entity types ReindexAll rebuilds at once.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithMetrics attaches counters.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates an indexer service.
func New(catalog Catalog, records RecordWriter, index IndexWriter, scopes ScopeRefresher, opts ...Option) *Service {
	s := &Service{
		catalog:      catalog,
		records:      records,
		index:        index,
		scopes:       scopes,
		indexTimeout: DefaultIndexTimeout,
		batchSize:    DefaultBatchSize,
		parallelism:  2,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new entity, then indexes it. The store result is authoritative:
// index failures are logged and counted, never returned.
func (s *Service) Create(ctx context.Context, subject, entityType string, values map[string]any) (entity.Row, error) {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return entity.Row{}, err
	}
	row, err := s.records.Create(ctx, desc, values)
	if err != nil {
		return entity.Row{}, fmt.Errorf("create %s: %w", desc.Name, err)
	}
	s.afterCommit(ctx, subject, desc, "upsert", row.ID, func(ictx context.Context) error {
		return s.index.Upsert(ictx, desc, document.Project(desc, row))
	})
	return row, nil
}

// Update changes an existing entity, then re-indexes it.
func (s *Service) Update(
	ctx context.Context, subject, entityType string, id int64, values map[string]any,
) (entity.Row, error) {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return entity.Row{}, err
	}
	row, err := s.records.Update(ctx, desc, id, values)
	if err != nil {
		return entity.Row{}, fmt.Errorf("update %s %d: %w", desc.Name, id, err)
	}
	s.afterCommit(ctx, subject, desc, "upsert", row.ID, func(ictx context.Context) error {
		return s.index.Upsert(ictx, desc, document.Project(desc, row))
	})
	return row, nil
}

// Delete removes an entity, then its index document. A document already
// missing from the index is not a failure.
func (s *Service) Delete(ctx context.Context, subject, entityType string, id int64) error {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, desc, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", desc.Name, id, err)
	}
	s.afterCommit(ctx, subject, desc, "delete", id, func(ictx context.Context) error {
		err := s.index.Delete(ictx, desc, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	return nil
}

// afterCommit mirrors a committed write and refreshes the writer's scope.
// It runs detached from caller cancellation: the store write already happened.
func (s *Service) afterCommit(
	ctx context.Context, subject string, desc *entity.Descriptor, op string, id int64,
	write func(ctx context.Context) error,
) {
	log := logger.FromContext(ctx)
	detached := context.WithoutCancel(ctx)

	ictx, cancel := context.WithTimeout(detached, s.indexTimeout)
	err := write(ictx)
	cancel()
	if err != nil {
		log.Warn("index write failed",
			zap.String("entity", desc.Name),
			zap.String("op", op),
			zap.Int64("id", id),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrIndexWriteFailed, err)),
		)
		if s.metrics.WriteFailures != nil {
			s.metrics.WriteFailures.WithLabelValues(desc.Name, op).Inc()
		}
	}

	if subject != "" && s.scopes != nil {
		s.scopes.Refresh(detached, subject)
	}
}
