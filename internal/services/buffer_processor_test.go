package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/internal/infrastructure/buffer"
)

type memCache struct {
	records map[int64]*domain.CacheRecord
	upserts int
	fail    bool
}

func newMemCache() *memCache {
	return &memCache{records: map[int64]*domain.CacheRecord{}}
}

func (m *memCache) Get(ctx context.Context, productID int64) (*domain.CacheRecord, error) {
	record, ok := m.records[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return record, nil
}

func (m *memCache) Upsert(ctx context.Context, record *domain.CacheRecord) (*domain.CacheRecord, error) {
	m.upserts++
	if m.fail {
		return nil, domain.UpstreamError(context.DeadlineExceeded)
	}
	m.records[record.Product.ID] = record
	return record, nil
}

func (m *memCache) ListRecent(ctx context.Context, limit int) ([]domain.CacheRecord, error) {
	return nil, nil
}

func (m *memCache) FindByIDs(ctx context.Context, ids []int64) ([]domain.CacheRecord, error) {
	return nil, nil
}

type staticHealth bool

func (h staticHealth) CacheOnline() bool { return bool(h) }

func openPendingStore(t *testing.T) *buffer.Store {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "pending.db"), "pending_upserts")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func enqueueEvent(t *testing.T, store *buffer.Store, event domain.CreationEvent) {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := store.Enqueue(buffer.Item{ProductID: event.ProductID, TxRef: event.TxRef, Data: payload}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func TestDrainAppliesBufferedEvents(t *testing.T) {
	store := openPendingStore(t)
	cache := newMemCache()
	bp := NewBufferProcessor(store, staticHealth(true), cache, nil, ProcessorConfig{BatchSize: 10, MaxRetries: 3})

	enqueueEvent(t, store, domain.CreationEvent{
		ProductID:   5,
		Name:        "Coffee",
		Quantity:    12,
		HarvestDate: time.Unix(1690000000, 0).UTC(),
		Owner:       "0xabc",
		TxRef:       "0xev",
	})

	if err := bp.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	record, err := cache.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("event not applied: %v", err)
	}
	if record.Product.Name != "Coffee" || record.TxRef != "0xev" {
		t.Errorf("unexpected record: %+v", record)
	}

	size, _ := store.Size()
	if size != 0 {
		t.Errorf("buffer size = %d after drain", size)
	}
}

func TestDrainSkipsWhileCacheOffline(t *testing.T) {
	store := openPendingStore(t)
	cache := newMemCache()
	bp := NewBufferProcessor(store, staticHealth(false), cache, nil, ProcessorConfig{BatchSize: 10})

	enqueueEvent(t, store, domain.CreationEvent{ProductID: 5, Name: "Coffee"})

	if err := bp.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if cache.upserts != 0 {
		t.Errorf("cache touched while offline")
	}
	size, _ := store.Size()
	if size != 1 {
		t.Errorf("item dropped while offline")
	}
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	store := openPendingStore(t)
	cache := newMemCache()
	cache.fail = true
	bp := NewBufferProcessor(store, staticHealth(true), cache, nil, ProcessorConfig{BatchSize: 10, MaxRetries: 2})

	enqueueEvent(t, store, domain.CreationEvent{ProductID: 5, Name: "Coffee"})

	for i := 0; i < 2; i++ {
		if err := bp.Drain(context.Background()); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
	}

	size, _ := store.Size()
	if size != 0 {
		t.Errorf("item kept past max retries, size = %d", size)
	}
}

func TestListenerBuffersFailedUpserts(t *testing.T) {
	store := openPendingStore(t)
	cache := newMemCache()
	cache.fail = true

	listener := NewCreationListener(nil, cache, nil, store, time.Second, nil)
	listener.handle(domain.CreationEvent{ProductID: 8, Name: "Onions", TxRef: "0xev8"})

	size, _ := store.Size()
	if size != 1 {
		t.Fatalf("failed upsert not buffered, size = %d", size)
	}

	// Once the cache recovers the processor applies the buffered event.
	cache.fail = false
	bp := NewBufferProcessor(store, staticHealth(true), cache, nil, ProcessorConfig{BatchSize: 10, MaxRetries: 3})
	if err := bp.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if _, err := cache.Get(context.Background(), 8); err != nil {
		t.Fatalf("buffered event not applied: %v", err)
	}
}
