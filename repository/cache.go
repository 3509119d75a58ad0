package repository

import (
	"context"

	"github.com/farmchain/backend/domain"
)

// CacheStore mirrors ledger products for fast reads. It is optional: the
// reconciliation service tolerates a nil store and falls through to the
// ledger. Implementations must treat a missing id as
// domain.ErrProductNotFound, not a transport failure.
type CacheStore interface {
	Get(ctx context.Context, productID int64) (*domain.CacheRecord, error)
	Upsert(ctx context.Context, record *domain.CacheRecord) (*domain.CacheRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.CacheRecord, error)
	FindByIDs(ctx context.Context, ids []int64) ([]domain.CacheRecord, error)
}
