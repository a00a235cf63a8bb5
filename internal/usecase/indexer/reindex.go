package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
	"github.com/kailas-cloud/scopedex/internal/logger"
)

// EnsureIndexes creates every missing index in the catalog.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	log := logger.FromContext(ctx)
	for _, name := range s.catalog.Names() {
		desc, err := s.catalog.Get(name)
		if err != nil {
			return err
		}
		created, err := s.index.EnsureIndex(ctx, desc)
		if err != nil {
			return fmt.Errorf("ensure index %s: %w", name, err)
		}
		if created {
			log.Info("index created", zap.String("entity", name))
		}
	}
	return nil
}

// Reindex rebuilds one entity type's index from the system of record in place and
// returns the number of documents written. Documents stay readable throughout:
// rows are upserted over the live index in id order and indexed ids the store no
// longer has are deleted range by range. Rows created after the pass started are
// left to write-through.
func (s *Service) Reindex(ctx context.Context, entityType string) (int, error) {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return 0, err
	}
	if _, err := s.index.EnsureIndex(ctx, desc); err != nil {
		return 0, fmt.Errorf("reindex %s: %w", desc.Name, err)
	}
	high, err := s.highWater(ctx, desc)
	if err != nil {
		return 0, fmt.Errorf("reindex %s: %w", desc.Name, err)
	}

	total, pruned := 0, 0
	for after := int64(0); after < high; {
		q := query.Compiled{}.
			With(query.Bound(entity.IDField, query.Gt, after), query.Bound(entity.IDField, query.Lte, high)).
			WithOrdering(&query.Ordering{Field: entity.IDField})
		rows, err := s.records.List(ctx, desc, q, 0, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("reindex %s after id %d: %w", desc.Name, after, err)
		}
		upTo := high
		if len(rows) == s.batchSize {
			upTo = rows[len(rows)-1].ID
		}

		if len(rows) > 0 {
			docs := make([]document.Document, len(rows))
			for i, row := range rows {
				docs[i] = document.Project(desc, row)
			}
			if err := s.index.UpsertMany(ctx, desc, docs); err != nil {
				return total, fmt.Errorf("reindex %s after id %d: %w", desc.Name, after, err)
			}
			total += len(docs)
			if s.metrics.Reindexed != nil {
				s.metrics.Reindexed.WithLabelValues(desc.Name).Add(float64(len(docs)))
			}
		}

		n, err := s.prune(ctx, desc, after, upTo, rows)
		if err != nil {
			return total, fmt.Errorf("reindex %s after id %d: %w", desc.Name, after, err)
		}
		pruned += n
		after = upTo
	}

	logger.FromContext(ctx).Info("reindex finished",
		zap.String("entity", desc.Name), zap.Int("documents", total), zap.Int("pruned", pruned))
	return total, nil
}

// RebuildSchema replaces an entity type's index definition, then reindexes it.
// Searches may miss documents until the engine has rescanned them.
func (s *Service) RebuildSchema(ctx context.Context, entityType string) (int, error) {
	desc, err := s.catalog.Get(entityType)
	if err != nil {
		return 0, err
	}
	if err := s.index.Recreate(ctx, desc); err != nil {
		return 0, fmt.Errorf("rebuild schema %s: %w", desc.Name, err)
	}
	return s.Reindex(ctx, entityType)
}

// highWater is the largest id in the store, zero when the table is empty.
func (s *Service) highWater(ctx context.Context, desc *entity.Descriptor) (int64, error) {
	q := query.Compiled{}.WithOrdering(&query.Ordering{Field: entity.IDField, Desc: true})
	rows, err := s.records.List(ctx, desc, q, 0, 1)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].ID, nil
}

// prune deletes indexed ids in (after, upTo] that are not among live.
func (s *Service) prune(ctx context.Context, desc *entity.Descriptor, after, upTo int64, live []entity.Row) (int, error) {
	keep := make(map[int64]struct{}, len(live))
	for _, row := range live {
		keep[row.ID] = struct{}{}
	}
	deleted := 0
	for cursor := after; cursor < upTo; {
		ids, err := s.index.IDs(ctx, desc, cursor, upTo, s.batchSize)
		if err != nil {
			return deleted, err
		}
		for _, id := range ids {
			if _, ok := keep[id]; ok {
				continue
			}
			if err := s.index.Delete(ctx, desc, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return deleted, err
			}
			deleted++
		}
		if len(ids) < s.batchSize {
			break
		}
		cursor = ids[len(ids)-1]
	}
	return deleted, nil
}

// ReindexAll rebuilds every index concurrently. The first failure cancels the rest.
func (s *Service) ReindexAll(ctx context.Context) (map[string]int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	var mu sync.Mutex
	counts := make(map[string]int)
	for _, name := range s.catalog.Names() {
		g.Go(func() error {
			n, err := s.Reindex(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[name] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, err
	}
	return counts, nil
}
