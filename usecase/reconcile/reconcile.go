// Package reconcile assembles product state from two sources of record:
// the authoritative but slow ledger and an optional fast document cache.
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

const recentLimit = 50

// Service resolves product projections. Plain reads favor the cache and
// never wait for freshness; Sync is the explicit escape hatch that forces
// a ledger read and a full cache overwrite.
type Service struct {
	cache   repository.CacheStore
	ledger  repository.LedgerClient
	journal repository.JournalRepository
	logger  *zap.Logger

	writeBackTimeout time.Duration
	wg               sync.WaitGroup
}

// New builds the reconciliation service. cache and journal may be nil:
// without a cache every read goes to the ledger, without a journal no
// audit rows are recorded.
func New(cache repository.CacheStore, ledger repository.LedgerClient, journal repository.JournalRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:            cache,
		ledger:           ledger,
		journal:          journal,
		logger:           logger,
		writeBackTimeout: 5 * time.Second,
	}
}

// GetByID returns the best-available projection for a product. A cache
// hit is returned as-is, stale or not; only a miss falls through to the
// ledger. A ledger hit is written back to the cache without blocking the
// response.
func (s *Service) GetByID(ctx context.Context, productID int64) (*domain.ProductProjection, error) {
	if productID <= 0 {
		return nil, domain.ErrInvalidID
	}

	if s.cache != nil {
		record, err := s.cache.Get(ctx, productID)
		switch {
		case err == nil:
			return record.Projection(), nil
		case domain.IsDomainError(err, domain.ErrCodeNotFound):
			// miss, fall through
		default:
			// Cache transport failure is not fatal for a read; the
			// ledger remains the correctness backstop.
			s.logger.Warn("cache lookup failed, falling back to ledger",
				zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	projection, err := s.ledger.GetHistory(ctx, productID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.UpstreamError(err)
	}

	s.writeBack(projection)
	return projection, nil
}

// GetByOwner lists products owned by an address. Ids come from the
// ledger; each id resolves cache-first. Unresolvable ids are skipped and
// reported back, the call only fails when no id resolves at all.
func (s *Service) GetByOwner(ctx context.Context, address string) ([]domain.ProductSummary, []int64, error) {
	if !domain.ValidAddress(address) {
		return nil, nil, domain.ErrInvalidAddress
	}
	owner := domain.NormalizeAddress(address)

	ids, err := s.ledger.GetOwnedIDs(ctx, owner)
	if err != nil {
		return nil, nil, domain.UpstreamError(err)
	}
	if len(ids) == 0 {
		return []domain.ProductSummary{}, nil, nil
	}

	cached := s.cachedByID(ctx, ids)

	summaries := make([]domain.ProductSummary, 0, len(ids))
	var unresolved []int64
	for _, id := range ids {
		if record, ok := cached[id]; ok {
			summaries = append(summaries, record.Summary())
			continue
		}

		projection, err := s.ledger.GetHistory(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unresolvable product in owner listing",
				zap.Int64("product_id", id),
				zap.String("owner", owner),
				zap.Error(err))
			unresolved = append(unresolved, id)
			continue
		}
		summaries = append(summaries, domain.ProductSummary{
			ID:          projection.Product.ID,
			Name:        projection.Product.Name,
			Quantity:    projection.Product.Quantity,
			HarvestDate: projection.Product.HarvestDate,
			Owner:       projection.Product.Owner,
		})
	}

	if len(summaries) == 0 && len(unresolved) > 0 {
		return nil, unresolved, domain.UpstreamError(nil)
	}
	return summaries, unresolved, nil
}

// Sync bypasses the cache, reads the product from the ledger and
// overwrites the cache record wholesale: scalar fields and the full
// history list. The ledger is append-only, so its history is always a
// superset of anything cached; replacing is safe and keeps both in one
// shape. On ledger failure the cache is untouched.
func (s *Service) Sync(ctx context.Context, productID int64) (*domain.ProductProjection, error) {
	if productID <= 0 {
		return nil, domain.ErrInvalidID
	}

	projection, err := s.ledger.GetHistory(ctx, productID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.UpstreamError(err)
	}

	if s.cache != nil {
		record := recordFromProjection(projection)
		if _, err := s.cache.Upsert(ctx, record); err != nil {
			// The caller still gets the fresh projection; the cache
			// simply stays stale until the next sync.
			s.logger.Error("sync cache overwrite failed",
				zap.Int64("product_id", productID), zap.Error(err))
		} else {
			s.record(ctx, repository.JournalActionSync, projection)
		}
	}

	return projection, nil
}

// ListRecent returns the newest cache records. Purely cache-scoped and
// not authoritative: with the cache disabled the listing is empty.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.ProductSummary, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	if s.cache == nil {
		return []domain.ProductSummary{}, nil
	}

	records, err := s.cache.ListRecent(ctx, limit)
	if err != nil {
		return nil, domain.UpstreamError(err)
	}

	summaries := make([]domain.ProductSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, records[i].Summary())
	}
	return summaries, nil
}

// WaitWriteBacks blocks until in-flight write-backs complete. Used by
// shutdown and by tests asserting cache contents.
func (s *Service) WaitWriteBacks() {
	s.wg.Wait()
}

func (s *Service) cachedByID(ctx context.Context, ids []int64) map[int64]domain.CacheRecord {
	out := make(map[int64]domain.CacheRecord, len(ids))
	if s.cache == nil {
		return out
	}
	records, err := s.cache.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("cache batch lookup failed", zap.Error(err))
		return out
	}
	for _, record := range records {
		out[record.Product.ID] = record
	}
	return out
}

// writeBack persists a ledger read into the cache without blocking the
// response. Best-effort: failure is logged and swallowed, the read
// already has its answer.
func (s *Service) writeBack(projection *domain.ProductProjection) {
	if s.cache == nil || projection == nil {
		return
	}

	record := recordFromProjection(projection)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.writeBackTimeout)
		defer cancel()

		if _, err := s.cache.Upsert(ctx, record); err != nil {
			s.logger.Warn("cache write-back failed",
				zap.Int64("product_id", record.Product.ID), zap.Error(err))
			return
		}
		s.record(ctx, repository.JournalActionWriteBack, projection)
	}()
}

func (s *Service) record(ctx context.Context, action string, projection *domain.ProductProjection) {
	if s.journal == nil {
		return
	}
	entry := &repository.JournalEntry{
		ProductID:  projection.Product.ID,
		Action:     action,
		Provenance: projection.Provenance,
		TxRef:      lastSourceRef(projection.History),
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal record failed",
			zap.Int64("product_id", entry.ProductID), zap.Error(err))
	}
}

func recordFromProjection(projection *domain.ProductProjection) *domain.CacheRecord {
	return &domain.CacheRecord{
		Product: projection.Product,
		History: projection.History,
		TxRef:   lastSourceRef(projection.History),
	}
}

func lastSourceRef(history []domain.HistoryEntry) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].SourceRef != "" {
			return history[i].SourceRef
		}
	}
	return ""
}
