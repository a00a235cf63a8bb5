package scopedex

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/scopedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/scopedex/internal/db/redis"
	"github.com/kailas-cloud/scopedex/internal/domain/document"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/page"
	indexrepo "github.com/kailas-cloud/scopedex/internal/repository/index"
	recordrepo "github.com/kailas-cloud/scopedex/internal/repository/record"
	"github.com/kailas-cloud/scopedex/internal/repository/scopecache"
	healthuc "github.com/kailas-cloud/scopedex/internal/usecase/health"
	"github.com/kailas-cloud/scopedex/internal/usecase/indexer"
	"github.com/kailas-cloud/scopedex/internal/usecase/listing"
	scopeuc "github.com/kailas-cloud/scopedex/internal/usecase/scope"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultScopeTTL         = time.Hour
)

// Internal interfaces, swapped for mocks in tests.
type listingUseCase interface {
	List(ctx context.Context, subject, entityType string, params url.Values, req page.Request) (page.Response[document.Document], error)
	Retrieve(ctx context.Context, subject, entityType string, id int64) (document.Document, error)
}

type indexerUseCase interface {
	Create(ctx context.Context, subject, entityType string, values map[string]any) (entity.Row, error)
	Update(ctx context.Context, subject, entityType string, id int64, values map[string]any) (entity.Row, error)
	Delete(ctx context.Context, subject, entityType string, id int64) error
	Reindex(ctx context.Context, entityType string) (int, error)
	EnsureIndexes(ctx context.Context) error
}

// Client is the scopedex SDK entry point.
type Client struct {
	closers    []func()
	catalog    *entity.Catalog
	listSvc    listingUseCase
	writeSvc   indexerUseCase
	healthSvc  healthUseCase
	pingRedis  func(context.Context) error
	pingRecord func(context.Context) error
	obs        *observer
}

// New connects to Redis and Postgres and wires the services.
// The provided context is used for the initial readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		scopeTTL:        defaultScopeTTL,
		readinessWindow: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	catalog, err := entity.NewCatalog(entity.Builtin()...)
	if err != nil {
		return nil, fmt.Errorf("scopedex: entity catalog: %w", err)
	}

	rs, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.redisAddrs, Password: cfg.redisPassword})
	if err != nil {
		return nil, fmt.Errorf("scopedex: create redis store: %w", err)
	}
	if err := rs.WaitForReady(ctx, cfg.readinessWindow); err != nil {
		rs.Close()
		return nil, fmt.Errorf("scopedex: redis not ready: %w", err)
	}

	pg, err := postgres.Open(ctx, postgres.Config{URL: cfg.postgresURL, MaxConns: cfg.maxConns}, nil)
	if err != nil {
		rs.Close()
		return nil, fmt.Errorf("scopedex: open postgres: %w", err)
	}
	if err := pg.WaitForReady(ctx, cfg.readinessWindow); err != nil {
		pg.Close()
		rs.Close()
		return nil, fmt.Errorf("scopedex: postgres not ready: %w", err)
	}

	index := indexrepo.New(rs)
	records := recordrepo.New(pg)
	scopes := scopeuc.New(scopecache.New(rs), records, cfg.scopeTTL, obs.zap)

	listOpts := []listing.Option{listing.WithRetrieveScope(cfg.retrieveScope)}
	writeOpts := []indexer.Option{}
	if cfg.indexTimeout > 0 {
		listOpts = append(listOpts, listing.WithIndexTimeout(cfg.indexTimeout))
		writeOpts = append(writeOpts, indexer.WithIndexTimeout(cfg.indexTimeout))
	}
	if cfg.reindexBatch > 0 {
		writeOpts = append(writeOpts, indexer.WithBatchSize(cfg.reindexBatch))
	}

	return &Client{
		closers:    []func(){pg.Close, rs.Close},
		catalog:    catalog,
		listSvc:    listing.New(catalog, index, records, scopes, listOpts...),
		writeSvc:   indexer.New(catalog, records, index, scopes, writeOpts...),
		healthSvc:  healthuc.New(rs, pg),
		pingRedis:  rs.Ping,
		pingRecord: pg.Ping,
		obs:        obs,
	}, nil
}

func (c *clientConfig) validate() error {
	if len(c.redisAddrs) == 0 {
		return errors.New("scopedex: redis address required (use WithRedis)")
	}
	if c.postgresURL == "" {
		return errors.New("scopedex: postgres url required (use WithPostgres)")
	}
	if c.reindexBatch < 0 {
		return errors.New("scopedex: reindex batch size must be positive")
	}
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// Ping checks connectivity to both stores.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err = c.pingRedis(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	if err = c.pingRecord(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Entities returns the service for one entity type, e.g. "properties".
// Unregistered names are accepted here and fail on first use with ErrUnknownEntity.
func (c *Client) Entities(name string) *EntityService {
	label := name
	if _, err := c.catalog.Get(name); err != nil {
		label = "other"
	}
	return &EntityService{
		entity:   name,
		label:    label,
		listSvc:  c.listSvc,
		writeSvc: c.writeSvc,
		catalog:  c.catalog,
		obs:      c.obs,
	}
}

// EntityTypes lists the registered entity names.
func (c *Client) EntityTypes() []string {
	return c.catalog.Names()
}

// EnsureIndexes creates any missing search index for the registered entities.
func (c *Client) EnsureIndexes(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ensure_indexes", "", start, err) }()
	ctx = c.obs.bind(ctx)

	return c.writeSvc.EnsureIndexes(ctx)
}
