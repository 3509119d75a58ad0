package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

type stubLedger struct {
	mu           sync.Mutex
	products     map[int64]*domain.ProductProjection
	owned        map[string][]int64
	failIDs      map[int64]bool
	failAll      bool
	historyCalls int
	ownedCalls   int
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		products: make(map[int64]*domain.ProductProjection),
		owned:    make(map[string][]int64),
		failIDs:  make(map[int64]bool),
	}
}

func (l *stubLedger) GetHistory(ctx context.Context, id int64) (*domain.ProductProjection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.historyCalls++
	if l.failAll || l.failIDs[id] {
		return nil, errors.New("rpc timeout")
	}
	p, ok := l.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (l *stubLedger) GetOwnedIDs(ctx context.Context, address string) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ownedCalls++
	if l.failAll {
		return nil, errors.New("rpc timeout")
	}
	return l.owned[address], nil
}

func (l *stubLedger) CreateProduct(ctx context.Context, name string, quantity int64, harvestDate time.Time) (int64, string, error) {
	return 0, "", errors.New("not implemented")
}

func (l *stubLedger) AppendUpdate(ctx context.Context, id int64, status, payload string) (string, error) {
	return "", errors.New("not implemented")
}

func (l *stubLedger) FetchCreated(ctx context.Context, cursor uint64, limit int) ([]domain.CreationEvent, uint64, error) {
	return nil, cursor, nil
}

func (l *stubLedger) historyCallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.historyCalls
}

type memCache struct {
	mu      sync.Mutex
	records map[int64]*domain.CacheRecord
	order   []int64
	upserts int
	fail    bool
}

func newMemCache() *memCache {
	return &memCache{records: make(map[int64]*domain.CacheRecord)}
}

func (c *memCache) Get(ctx context.Context, id int64) (*domain.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	record, ok := c.records[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *record
	return &cp, nil
}

func (c *memCache) Upsert(ctx context.Context, record *domain.CacheRecord) (*domain.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	c.upserts++
	record.Touch(time.Now())
	if _, exists := c.records[record.Product.ID]; !exists {
		c.order = append(c.order, record.Product.ID)
	}
	cp := *record
	c.records[record.Product.ID] = &cp
	return record, nil
}

func (c *memCache) ListRecent(ctx context.Context, limit int) ([]domain.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	var out []domain.CacheRecord
	for i := len(c.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *c.records[c.order[i]])
	}
	return out, nil
}

func (c *memCache) FindByIDs(ctx context.Context, ids []int64) ([]domain.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	var out []domain.CacheRecord
	for _, id := range ids {
		if record, ok := c.records[id]; ok {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (c *memCache) upsertCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts
}

var _ repository.CacheStore = (*memCache)(nil)
var _ repository.LedgerClient = (*stubLedger)(nil)

func tomatoes() *domain.ProductProjection {
	return &domain.ProductProjection{
		Product: domain.Product{
			ID:          7,
			Name:        "Tomatoes",
			Quantity:    100,
			HarvestDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Owner:       "0xabc",
		},
		History: []domain.HistoryEntry{
			{Status: domain.StatusCreated, Timestamp: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), SourceRef: "0xtx1"},
		},
		Provenance: domain.ProvenanceLedger,
	}
}

func TestGetByIDLedgerFallback(t *testing.T) {
	ledger := newStubLedger()
	ledger.products[7] = tomatoes()
	cache := newMemCache()
	svc := New(cache, ledger, nil, nil)

	got, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceLedger {
		t.Fatalf("expected ledger provenance, got %s", got.Provenance)
	}
	if got.Product.Name != "Tomatoes" || got.Product.Quantity != 100 || got.Product.Owner != "0xabc" {
		t.Fatalf("unexpected product: %+v", got.Product)
	}

	svc.WaitWriteBacks()
	if cache.upsertCount() != 1 {
		t.Fatalf("expected 1 write-back upsert, got %d", cache.upsertCount())
	}
}

func TestGetByIDCacheWinsWithoutLedgerCall(t *testing.T) {
	ledger := newStubLedger()
	ledger.products[7] = tomatoes()
	cache := newMemCache()
	stale := &domain.CacheRecord{Product: domain.Product{ID: 7, Name: "Stale", Quantity: 5, Owner: "0xabc"}}
	if _, err := cache.Upsert(context.Background(), stale); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	svc := New(cache, ledger, nil, nil)
	got, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != domain.ProvenanceCache {
		t.Fatalf("expected cache provenance, got %s", got.Provenance)
	}
	if got.Product.Name != "Stale" {
		t.Fatalf("cache should win on plain read, got %q", got.Product.Name)
	}
	if ledger.historyCallCount() != 0 {
		t.Fatalf("ledger must not be consulted on cache hit, %d calls", ledger.historyCallCount())
	}
}

func TestSyncOverwritesStaleCache(t *testing.T) {
	ledger := newStubLedger()
	fresh := tomatoes()
	fresh.Product.Name = "Fresh"
	ledger.products[7] = fresh
	cache := newMemCache()
	stale := &domain.CacheRecord{Product: domain.Product{ID: 7, Name: "Stale", Owner: "0xabc"}}
	if _, err := cache.Upsert(context.Background(), stale); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	before := cache.upsertCount()

	svc := New(cache, ledger, nil, nil)
	got, err := svc.Sync(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Product.Name != "Fresh" {
		t.Fatalf("sync must return ledger data, got %q", got.Product.Name)
	}
	if ledger.historyCallCount() != 1 {
		t.Fatalf("expected exactly 1 ledger read, got %d", ledger.historyCallCount())
	}
	if cache.upsertCount()-before != 1 {
		t.Fatalf("expected exactly 1 cache upsert, got %d", cache.upsertCount()-before)
	}

	record, err := cache.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if record.Product.Name != "Fresh" {
		t.Fatalf("cache not overwritten: %q", record.Product.Name)
	}
	if len(record.History) != 1 || record.History[0].SourceRef != "0xtx1" {
		t.Fatalf("sync must replace history too: %+v", record.History)
	}
}

func TestSyncLedgerFailureLeavesCacheUntouched(t *testing.T) {
	ledger := newStubLedger()
	ledger.failIDs[7] = true
	cache := newMemCache()
	before := cache.upsertCount()

	svc := New(cache, ledger, nil, nil)
	_, err := svc.Sync(context.Background(), 7)
	if !domain.IsDomainError(err, domain.ErrCodeUpstream) {
		t.Fatalf("expected UPSTREAM_UNAVAILABLE, got %v", err)
	}
	if cache.upsertCount() != before {
		t.Fatalf("cache must not be written on ledger failure")
	}
}

func TestGetByOwnerPartialResolution(t *testing.T) {
	ledger := newStubLedger()
	ledger.owned["0xdef"] = []int64{3, 4}
	p3 := tomatoes()
	p3.Product.ID = 3
	ledger.products[3] = p3
	ledger.failIDs[4] = true

	svc := New(newMemCache(), ledger, nil, nil)
	// Mixed-case input must be normalized before the ledger join.
	summaries, unresolved, err := svc.GetByOwner(context.Background(), "0xDEF")
	if err != nil {
		t.Fatalf("partial resolution must not fail: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != 3 {
		t.Fatalf("expected one summary for id 3, got %+v", summaries)
	}
	if len(unresolved) != 1 || unresolved[0] != 4 {
		t.Fatalf("expected id 4 unresolved, got %v", unresolved)
	}
}

func TestGetByOwnerAllUnresolvableFails(t *testing.T) {
	ledger := newStubLedger()
	ledger.owned["0xdef"] = []int64{3, 4}
	ledger.failIDs[3] = true
	ledger.failIDs[4] = true

	svc := New(newMemCache(), ledger, nil, nil)
	_, _, err := svc.GetByOwner(context.Background(), "0xdef")
	if !domain.IsDomainError(err, domain.ErrCodeUpstream) {
		t.Fatalf("expected UPSTREAM_UNAVAILABLE, got %v", err)
	}
}

func TestGetByOwnerPrefersCache(t *testing.T) {
	ledger := newStubLedger()
	ledger.owned["0xabc"] = []int64{7}
	cache := newMemCache()
	if _, err := cache.Upsert(context.Background(), &domain.CacheRecord{
		Product: domain.Product{ID: 7, Name: "Cached", Owner: "0xabc"},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	svc := New(cache, ledger, nil, nil)
	summaries, _, err := svc.GetByOwner(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "Cached" {
		t.Fatalf("expected cached summary, got %+v", summaries)
	}
	if ledger.historyCallCount() != 0 {
		t.Fatalf("per-id ledger reads not expected on cache hit")
	}
}

func TestGetByOwnerRejectsBadAddress(t *testing.T) {
	svc := New(newMemCache(), newStubLedger(), nil, nil)
	_, _, err := svc.GetByOwner(context.Background(), "not-an-address")
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestGetByIDNotFoundAnywhere(t *testing.T) {
	svc := New(newMemCache(), newStubLedger(), nil, nil)
	_, err := svc.GetByID(context.Background(), 999)
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetByIDUpstreamUnavailable(t *testing.T) {
	ledger := newStubLedger()
	ledger.failAll = true
	svc := New(newMemCache(), ledger, nil, nil)
	_, err := svc.GetByID(context.Background(), 7)
	if !domain.IsDomainError(err, domain.ErrCodeUpstream) {
		t.Fatalf("expected UPSTREAM_UNAVAILABLE, got %v", err)
	}
}

func TestGetByIDCacheDisabled(t *testing.T) {
	ledger := newStubLedger()
	ledger.products[7] = tomatoes()
	svc := New(nil, ledger, nil, nil)

	got, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("cache-disabled read failed: %v", err)
	}
	if got.Provenance != domain.ProvenanceLedger {
		t.Fatalf("expected ledger provenance, got %s", got.Provenance)
	}
}

func TestGetByIDCacheFailureFallsBack(t *testing.T) {
	ledger := newStubLedger()
	ledger.products[7] = tomatoes()
	cache := newMemCache()
	cache.fail = true

	svc := New(cache, ledger, nil, nil)
	got, err := svc.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected ledger fallback, got %v", err)
	}
	if got.Product.Name != "Tomatoes" {
		t.Fatalf("unexpected product: %+v", got.Product)
	}
}

func TestGetByIDRejectsInvalidID(t *testing.T) {
	svc := New(nil, newStubLedger(), nil, nil)
	if _, err := svc.GetByID(context.Background(), 0); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestListRecentCacheScoped(t *testing.T) {
	cache := newMemCache()
	for i := int64(1); i <= 3; i++ {
		if _, err := cache.Upsert(context.Background(), &domain.CacheRecord{
			Product: domain.Product{ID: i, Name: "p", Owner: "0xabc"},
		}); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}
	ledger := newStubLedger()

	svc := New(cache, ledger, nil, nil)
	summaries, err := svc.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != 3 {
		t.Fatalf("expected newest first, got %+v", summaries)
	}
	if ledger.historyCallCount() != 0 || ledger.ownedCalls != 0 {
		t.Fatalf("recent listing must not touch the ledger")
	}
}

func TestListRecentCacheDisabled(t *testing.T) {
	svc := New(nil, newStubLedger(), nil, nil)
	summaries, err := svc.ListRecent(context.Background(), 10)
	if err != nil || len(summaries) != 0 {
		t.Fatalf("expected empty listing, got %v %v", summaries, err)
	}
}
