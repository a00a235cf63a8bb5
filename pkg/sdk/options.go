package scopedex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	redisAddrs    []string
	redisPassword string
	postgresURL   string
	maxConns      int32

	indexTimeout    time.Duration
	scopeTTL        time.Duration
	retrieveScope   bool
	reindexBatch    int
	readinessWindow time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis sets the search index connection.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	})
}

// WithPostgres sets the system-of-record connection URL.
func WithPostgres(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.postgresURL = url
	})
}

// WithMaxConns caps the Postgres pool. Default: pgx default.
func WithMaxConns(n int32) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConns = n
	})
}

// WithIndexTimeout bounds every search index call. Default: 2s.
func WithIndexTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexTimeout = d
	})
}

// WithScopeTTL sets how long a cached access scope stays valid. Default: 1h.
func WithScopeTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.scopeTTL = d
	})
}

// WithRetrieveScope hides single-entity reads outside the subject's tenants.
func WithRetrieveScope() Option {
	return optionFunc(func(c *clientConfig) {
		c.retrieveScope = true
	})
}

// WithReindexBatchSize sets rows per page during a full reindex. Default: 500.
func WithReindexBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.reindexBatch = n
	})
}

// WithReadinessTimeout bounds the initial connectivity check. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessWindow = d
	})
}

// WithLogger enables structured logging for SDK operations and for the services
// behind them (scope resolution warnings, index fallbacks, reindex progress).
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
