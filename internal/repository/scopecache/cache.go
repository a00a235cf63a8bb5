// Package scopecache persists access scopes in the shared key-value cache.
package scopecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/scope"
)

var keyPrefix = domain.KeyPrefix + "scope:"

// store is the consumer interface for the scope cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Cache implements usecase/scope.Cache over Redis strings holding JSON.
type Cache struct {
	store store
}

// New creates a scope cache.
func New(s store) *Cache {
	return &Cache{store: s}
}

// Key returns the cache key of a subject.
func Key(subject string) string {
	return keyPrefix + subject
}

// Get returns the cached scope. A missing entry, or one written before brand
// ids were tracked, yields domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, subject string) (scope.AccessScope, error) {
	key := Key(subject)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return scope.AccessScope{}, domain.ErrNotFound
		}
		return scope.AccessScope{}, fmt.Errorf("get %s: %w", key, err)
	}
	var s scope.AccessScope
	if err := json.Unmarshal(data, &s); err != nil {
		return scope.AccessScope{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if s.BrandIDs == nil {
		return scope.AccessScope{}, domain.ErrNotFound
	}
	return s, nil
}

// Put stores the scope for its own TTL.
func (c *Cache) Put(ctx context.Context, s scope.AccessScope) error {
	if s.TTL <= 0 {
		return fmt.Errorf("scope of %s has no ttl", s.SubjectID)
	}
	key := Key(s.SubjectID)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.store.SetWithTTL(ctx, key, data, s.TTL); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete drops the cached scope. Deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, subject string) error {
	key := Key(subject)
	if err := c.store.Del(ctx, key); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
