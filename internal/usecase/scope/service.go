// Package scope resolves and caches which tenants a subject may see.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/scopedex/internal/domain"
	domscope "github.com/kailas-cloud/scopedex/internal/domain/scope"
)

// DefaultTTL is how long a computed scope stays valid.
const DefaultTTL = time.Hour

// DefaultResolveTimeout bounds one recompute against the system of record.
const DefaultResolveTimeout = 5 * time.Second

// Service implements the access scope cache.
type Service struct {
	cache    Cache
	resolver Resolver
	ttl      time.Duration
	now      func() time.Time
	timeout  time.Duration
	group    singleflight.Group
	total    *prometheus.CounterVec
	logger   *zap.Logger

	// mu orders cache writes; epochs counts write-triggered refreshes per subject
	// so a lazy compute that started earlier never overwrites a newer scope.
	mu     sync.Mutex
	epochs map[string]uint64
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithResolveTimeout bounds a single recompute. d <= 0 keeps the default.
func WithResolveTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics counts lookups by result ("hit", "miss", "unresolvable").
func WithMetrics(total *prometheus.CounterVec) Option {
	return func(s *Service) { s.total = total }
}

// New creates a scope service. ttl <= 0 selects DefaultTTL.
func New(cache Cache, resolver Resolver, ttl time.Duration, logger *zap.Logger, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		cache:    cache,
		resolver: resolver,
		ttl:      ttl,
		now:      time.Now,
		timeout:  DefaultResolveTimeout,
		logger:   logger,
		epochs:   make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the subject's scope, recomputing it when the cached entry is
// missing, unreadable or expired. It never fails: an unresolvable scope is empty.
func (s *Service) Get(ctx context.Context, subject string) domscope.AccessScope {
	cached, err := s.cache.Get(ctx, subject)
	switch {
	case err == nil && !cached.Expired(s.now()) && cached.SubjectID == subject:
		s.count("hit")
		return cached
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		s.logger.Warn("scope cache read failed", zap.String("subject", subject), zap.Error(err))
	}
	s.count("miss")
	return s.lazy(ctx, subject)
}

// lazy recomputes a missing scope. Concurrent misses for one subject share a
// computation that runs detached from any single caller's cancellation; a
// caller that gives up early gets an empty scope.
func (s *Service) lazy(ctx context.Context, subject string) domscope.AccessScope {
	ch := s.group.DoChan(subject, func() (any, error) {
		epoch := s.epoch(subject)
		return s.compute(context.WithoutCancel(ctx), subject, epoch), nil
	})
	select {
	case res := <-ch:
		return res.Val.(domscope.AccessScope)
	case <-ctx.Done():
		return domscope.Empty(subject, s.now())
	}
}

// Refresh recomputes the scope from the system of record and writes it back.
// It never joins an in-flight lazy compute, so tenants created by a committed
// write are visible to the next Get.
func (s *Service) Refresh(ctx context.Context, subject string) domscope.AccessScope {
	s.mu.Lock()
	s.epochs[subject]++
	epoch := s.epochs[subject]
	s.mu.Unlock()

	// later misses must not join a flight that read pre-write state
	s.group.Forget(subject)
	return s.compute(ctx, subject, epoch)
}

func (s *Service) epoch(subject string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[subject]
}

// compute resolves the scope and caches it unless a newer refresh has started since epoch.
func (s *Service) compute(ctx context.Context, subject string, epoch uint64) domscope.AccessScope {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fresh, err := s.resolve(ctx, subject)
	if err != nil {
		s.count("unresolvable")
		s.logger.Warn("access scope unresolvable, using empty scope",
			zap.String("subject", subject),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrScopeUnresolvable, err)),
		)
		return domscope.Empty(subject, s.now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epochs[subject] != epoch {
		return fresh
	}
	if err := s.cache.Put(ctx, fresh); err != nil {
		s.logger.Warn("scope cache write failed", zap.String("subject", subject), zap.Error(err))
	}
	return fresh
}

func (s *Service) resolve(ctx context.Context, subject string) (domscope.AccessScope, error) {
	unrestricted, err := s.resolver.IsUnrestricted(ctx, subject)
	if err != nil {
		return domscope.AccessScope{}, fmt.Errorf("superuser flag: %w", err)
	}
	var ids, brands []int64
	if !unrestricted {
		ids, err = s.resolver.TenantsForSubject(ctx, subject)
		if err != nil {
			return domscope.AccessScope{}, fmt.Errorf("tenants: %w", err)
		}
		brands, err = s.resolver.BrandsForSubject(ctx, subject)
		if err != nil {
			return domscope.AccessScope{}, fmt.Errorf("brands: %w", err)
		}
	}
	return domscope.New(subject, ids, unrestricted, s.now(), s.ttl).WithBrands(brands), nil
}

// Invalidate drops the cached scope so the next Get recomputes it.
func (s *Service) Invalidate(ctx context.Context, subject string) error {
	if err := s.cache.Delete(ctx, subject); err != nil {
		return fmt.Errorf("invalidate scope %s: %w", subject, err)
	}
	return nil
}

func (s *Service) count(result string) {
	if s.total != nil {
		s.total.WithLabelValues(result).Inc()
	}
}
