package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/config"
	"github.com/kailas-cloud/scopedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/scopedex/internal/db/redis"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	logpkg "github.com/kailas-cloud/scopedex/internal/logger"
	"github.com/kailas-cloud/scopedex/internal/metrics"
	indexrepo "github.com/kailas-cloud/scopedex/internal/repository/index"
	recordrepo "github.com/kailas-cloud/scopedex/internal/repository/record"
	"github.com/kailas-cloud/scopedex/internal/repository/scopecache"
	"github.com/kailas-cloud/scopedex/internal/usecase/health"
	"github.com/kailas-cloud/scopedex/internal/usecase/indexer"
	"github.com/kailas-cloud/scopedex/internal/usecase/listing"
	scopeuc "github.com/kailas-cloud/scopedex/internal/usecase/scope"
	"github.com/kailas-cloud/scopedex/internal/version"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	env     string
	cfg     config.Config
	logger  *zap.Logger
	catalog *entity.Catalog
	redis   *dbRedis.Store
	pg      *postgres.Store
	scopes  *scopeuc.Service
	listing *listing.Service
	indexer *indexer.Service
	health  *health.Service
}

func loadConfig(opts *rootOptions) (string, config.Config, error) {
	env := opts.env
	if env == "" {
		env = config.GetEnv()
	}
	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return "", config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return env, cfg, nil
}

// newApp connects both stores and builds the services.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	env, cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting scopedex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
	)

	catalog, err := entity.NewCatalog(entity.Builtin()...)
	if err != nil {
		return nil, fmt.Errorf("entity catalog: %w", err)
	}

	a := &app{env: env, cfg: cfg, logger: logger, catalog: catalog}

	a.redis, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,

		WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := a.redis.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to redis")

	a.pg, err = postgres.Open(ctx, postgres.Config{
		URL:      cfg.Postgres.URL,
		MaxConns: cfg.Postgres.MaxConns,
		SlowMs:   cfg.Postgres.SlowQueryMs,
	}, postgres.Tracer(logger))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := a.pg.WaitForReady(ctx, time.Duration(cfg.Postgres.ReadinessTimeout)*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("postgres not ready: %w", err)
	}
	logger.Info("Connected to postgres")

	// Register sync metrics explicitly (no init())
	metrics.RegisterSyncMetrics()

	index := indexrepo.New(a.redis)
	records := recordrepo.New(a.pg)

	a.scopes = scopeuc.New(scopecache.New(a.redis), records, cfg.Sync.ScopeTTL(), logger,
		scopeuc.WithMetrics(metrics.ScopeCacheTotal),
	)
	a.listing = listing.New(catalog, index, records, a.scopes,
		listing.WithIndexTimeout(cfg.Sync.IndexTimeout()),
		listing.WithRetrieveScope(cfg.Sync.EnforceRetrieveScope),
		listing.WithMetrics(listing.Metrics{
			Fallback: metrics.IndexFallbackTotal,
			Duration: metrics.IndexRequestDuration,
			Degraded: metrics.CompileDegradedTotal,
		}),
	)
	a.indexer = indexer.New(catalog, records, index, a.scopes,
		indexer.WithIndexTimeout(cfg.Sync.IndexTimeout()),
		indexer.WithBatchSize(cfg.Sync.ReindexBatchSize),
		indexer.WithParallelism(cfg.Sync.ReindexParallelism),
		indexer.WithMetrics(indexer.Metrics{
			WriteFailures: metrics.IndexWriteFailuresTotal,
			Reindexed:     metrics.ReindexedDocumentsTotal,
		}),
	)
	a.health = health.New(a.redis, a.pg)
	return a, nil
}

func (a *app) close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	_ = a.logger.Sync()
}
