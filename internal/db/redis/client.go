package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/scopedex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const clientName = "scopedex"

// Config holds connection parameters for the search index store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// WriteTimeout bounds a single socket write; zero keeps the rueidis default.
	WriteTimeout time.Duration
}

func (c Config) clientOption() rueidis.ClientOption {
	return rueidis.ClientOption{
		InitAddress:      c.Addrs,
		Username:         c.Username,
		Password:         c.Password,
		SelectDB:         c.DB,
		ClientName:       clientName,
		ConnWriteTimeout: c.WriteTimeout,
		DisableCache:     true,
		AlwaysRESP2:      true, // FT.SEARCH replies are parsed as RESP2 arrays
	}
}

// Store is the search index backend: Redis 8+ with Query Engine and JSON, via rueidis.
type Store struct {
	client rueidis.Client
}

// NewStore connects to Redis through rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(cfg.clientOption())
	if err != nil {
		return nil, fmt.Errorf("redis: create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady blocks until Redis answers PING or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, "redis", timeout)
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
