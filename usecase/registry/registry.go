// Package registry submits ledger mutations: product creation and
// lifecycle updates. Mutations require a connected wallet session on the
// expected network; the ledger itself remains the authority on the
// outcome.
package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

type UseCase struct {
	ledger    repository.LedgerClient
	networkID int64
	logger    *zap.Logger
}

func New(ledger repository.LedgerClient, networkID int64, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		ledger:    ledger,
		networkID: networkID,
		logger:    logger,
	}
}

// Create registers a new product on the ledger and returns its assigned
// id and transaction reference. The cache is not written here: the
// creation event listener picks the product up asynchronously.
func (uc *UseCase) Create(ctx context.Context, session *domain.WalletSession, name string, quantity int64, harvestDate time.Time) (int64, string, error) {
	if err := session.CanWrite(uc.networkID, time.Now()); err != nil {
		return 0, "", err
	}
	if name == "" {
		return 0, "", domain.NewError(domain.ErrCodeInvalid, "product name is required")
	}
	if quantity <= 0 {
		return 0, "", domain.NewError(domain.ErrCodeInvalid, "quantity must be positive")
	}
	if harvestDate.IsZero() || harvestDate.After(time.Now()) {
		return 0, "", domain.NewError(domain.ErrCodeInvalid, "harvest date must not be in the future")
	}

	id, txRef, err := uc.ledger.CreateProduct(ctx, name, quantity, harvestDate)
	if err != nil {
		return 0, "", domain.UpstreamError(err)
	}
	uc.logger.Info("product created on ledger",
		zap.Int64("product_id", id),
		zap.String("tx_ref", txRef),
		zap.String("owner", session.Address))
	return id, txRef, nil
}

// AppendUpdate appends a lifecycle event to an existing product.
func (uc *UseCase) AppendUpdate(ctx context.Context, session *domain.WalletSession, productID int64, status, payload string) (string, error) {
	if err := session.CanWrite(uc.networkID, time.Now()); err != nil {
		return "", err
	}
	if productID <= 0 {
		return "", domain.ErrInvalidID
	}
	if status == "" {
		return "", domain.NewError(domain.ErrCodeInvalid, "status is required")
	}

	txRef, err := uc.ledger.AppendUpdate(ctx, productID, status, payload)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return "", domain.ErrProductNotFound
		}
		return "", domain.UpstreamError(err)
	}
	uc.logger.Info("lifecycle update appended",
		zap.Int64("product_id", productID),
		zap.String("status", status),
		zap.String("tx_ref", txRef))
	return txRef, nil
}
