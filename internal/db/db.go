package db

import (
	"context"
	"time"
)

// Store is the Redis facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	JSONStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JSONSetItem holds a single key+path+data triple for pipelined JSON.SET.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
}

// JSONStore provides JSON document operations.
type JSONStore interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	// Del removes a key; a missing key is reported as ErrKeyNotFound.
	Del(ctx context.Context, key string) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides filtered, paginated queries over FT indexes.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
}
