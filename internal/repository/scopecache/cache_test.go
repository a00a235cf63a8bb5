package scopecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/scope"
)

// memStore is an in-memory KV store honouring nothing but presence.
type memStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	if _, ok := m.data[key]; !ok {
		return db.ErrKeyNotFound
	}
	delete(m.data, key)
	return nil
}

func TestCache_RoundTrip(t *testing.T) {
	ms := newMemStore()
	c := New(ms)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := scope.New("7", []int64{3, 1}, false, now, time.Hour)

	if err := c.Put(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if ms.ttls["scopedex:scope:7"] != time.Hour {
		t.Errorf("ttl = %v", ms.ttls["scopedex:scope:7"])
	}

	got, err := c.Get(context.Background(), "7")
	if err != nil {
		t.Fatal(err)
	}
	if got.SubjectID != "7" || len(got.TenantIDs) != 2 || got.TenantIDs[0] != 1 || !got.FetchedAt.Equal(now) {
		t.Errorf("got %+v", got)
	}
}

func TestCache_BrandsRoundTrip(t *testing.T) {
	c := New(newMemStore())
	in := scope.New("7", []int64{1}, false, time.Now(), time.Hour).WithBrands([]int64{5})
	if err := c.Put(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(context.Background(), "7")
	if err != nil || len(got.BrandIDs) != 1 || got.BrandIDs[0] != 5 {
		t.Errorf("got %+v, err = %v", got, err)
	}
}

func TestCache_EntryWithoutBrandsIsMiss(t *testing.T) {
	ms := newMemStore()
	ms.data["scopedex:scope:7"] = []byte(`{"subject_id":"7","tenant_ids":[1],"unrestricted":false,"ttl":3600000000000}`)
	c := New(ms)
	if _, err := c.Get(context.Background(), "7"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New(newMemStore())
	if _, err := c.Get(context.Background(), "7"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCache_Corrupt(t *testing.T) {
	ms := newMemStore()
	ms.data["scopedex:scope:7"] = []byte("{not json")
	c := New(ms)
	_, err := c.Get(context.Background(), "7")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want decode error", err)
	}
}

func TestCache_PutRequiresTTL(t *testing.T) {
	c := New(newMemStore())
	if err := c.Put(context.Background(), scope.Empty("7", time.Now())); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestCache_DeleteMissing(t *testing.T) {
	c := New(newMemStore())
	if err := c.Delete(context.Background(), "7"); err != nil {
		t.Errorf("err = %v", err)
	}
}
