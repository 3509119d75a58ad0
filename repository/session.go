package repository

import (
	"context"

	"github.com/farmchain/backend/domain"
)

// SessionRepository stores wallet sessions.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.WalletSession, error)
	Save(ctx context.Context, session *domain.WalletSession) error
	Delete(ctx context.Context, id string) error
}
