package repository

import (
	"context"
	"time"

	"github.com/farmchain/backend/domain"
)

// LedgerClient is the capability boundary to the external, append-only
// product registry. Calls are slow relative to the cache and may fail;
// the reconciliation layer classifies failures as UpstreamUnavailable and
// never retries.
type LedgerClient interface {
	// GetHistory returns the authoritative product state and its full
	// event history, tagged ProvenanceLedger.
	GetHistory(ctx context.Context, productID int64) (*domain.ProductProjection, error)

	// GetOwnedIDs returns the ids owned by an address, in the order the
	// ledger reports them (not guaranteed chronological).
	GetOwnedIDs(ctx context.Context, address string) ([]int64, error)

	// CreateProduct registers a new product and returns its assigned id
	// together with the transaction reference.
	CreateProduct(ctx context.Context, name string, quantity int64, harvestDate time.Time) (int64, string, error)

	// AppendUpdate appends a lifecycle event and returns the transaction
	// reference.
	AppendUpdate(ctx context.Context, productID int64, status, payload string) (string, error)

	// FetchCreated returns creation events after the given cursor, plus
	// the cursor to resume from. Delivery is at-least-once.
	FetchCreated(ctx context.Context, cursor uint64, limit int) ([]domain.CreationEvent, uint64, error)
}
