// Package wallet manages explicit wallet sessions. There is no ambient
// "current wallet": callers hold a session id and every transition is an
// explicit operation.
package wallet

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

type UseCase struct {
	sessions repository.SessionRepository
	logger   *zap.Logger
	secret   string
	ttl      time.Duration
}

func New(sessions repository.SessionRepository, secret string, ttl time.Duration, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UseCase{
		sessions: sessions,
		logger:   logger,
		secret:   secret,
		ttl:      ttl,
	}
}

// Connect runs the Disconnected -> Connecting -> Connected transition in
// one call: the wallet already proved control of the address client-side,
// the backend only records the resulting identity.
func (uc *UseCase) Connect(ctx context.Context, address string, networkID int64) (*domain.WalletSession, string, error) {
	now := time.Now()
	session := &domain.WalletSession{
		ID:        uuid.NewString(),
		State:     domain.WalletConnecting,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.ttl),
	}
	if err := session.Connect(address, networkID); err != nil {
		return nil, "", err
	}

	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, "", err
	}

	token, err := uc.mintToken(session)
	if err != nil {
		return nil, "", err
	}
	uc.logger.Info("wallet connected",
		zap.String("session_id", session.ID),
		zap.String("address", session.Address),
		zap.Int64("network_id", session.NetworkID))
	return session, token, nil
}

// SwitchNetwork records an explicit network switch on a connected session.
func (uc *UseCase) SwitchNetwork(ctx context.Context, sessionID string, networkID int64) (*domain.WalletSession, error) {
	session, err := uc.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.SwitchNetwork(networkID); err != nil {
		return nil, err
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Disconnect terminates the session.
func (uc *UseCase) Disconnect(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// Get loads an unexpired session; expired sessions are purged.
func (uc *UseCase) Get(ctx context.Context, sessionID string) (*domain.WalletSession, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) mintToken(session *domain.WalletSession) (string, error) {
	claims := jwt.MapClaims{
		"session_id": session.ID,
		"address":    session.Address,
		"exp":        session.ExpiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(uc.secret))
}
