package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/farmchain/backend/domain"
)

type memSessions struct {
	sessions map[string]*domain.WalletSession
	saves    int
	deletes  int
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*domain.WalletSession{}}
}

func (m *memSessions) Get(ctx context.Context, id string) (*domain.WalletSession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memSessions) Save(ctx context.Context, session *domain.WalletSession) error {
	m.saves++
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessions) Delete(ctx context.Context, id string) error {
	m.deletes++
	delete(m.sessions, id)
	return nil
}

const testAddress = "0xAbCdEf0123456789abcdef0123456789abcdef01"

func TestConnectCreatesConnectedSession(t *testing.T) {
	sessions := newMemSessions()
	uc := New(sessions, "secret", time.Hour, nil)

	session, token, err := uc.Connect(context.Background(), testAddress, 43113)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.State != domain.WalletConnected {
		t.Errorf("state = %s", session.State)
	}
	if session.Address != domain.NormalizeAddress(testAddress) {
		t.Errorf("address not normalized: %s", session.Address)
	}
	if session.NetworkID != 43113 {
		t.Errorf("network id = %d", session.NetworkID)
	}
	if sessions.saves != 1 {
		t.Errorf("saves = %d", sessions.saves)
	}

	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["session_id"] != session.ID {
		t.Errorf("token session_id = %v", claims["session_id"])
	}
}

func TestConnectRejectsInvalidAddress(t *testing.T) {
	uc := New(newMemSessions(), "secret", time.Hour, nil)

	_, _, err := uc.Connect(context.Background(), "not-an-address", 43113)
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestSwitchNetwork(t *testing.T) {
	sessions := newMemSessions()
	uc := New(sessions, "secret", time.Hour, nil)

	session, _, err := uc.Connect(context.Background(), testAddress, 43113)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	updated, err := uc.SwitchNetwork(context.Background(), session.ID, 43114)
	if err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if updated.NetworkID != 43114 {
		t.Errorf("network id = %d", updated.NetworkID)
	}

	stored, _ := sessions.Get(context.Background(), session.ID)
	if stored.NetworkID != 43114 {
		t.Errorf("switch not persisted: %d", stored.NetworkID)
	}
}

func TestSwitchNetworkUnknownSession(t *testing.T) {
	uc := New(newMemSessions(), "secret", time.Hour, nil)

	_, err := uc.SwitchNetwork(context.Background(), "missing", 43114)
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetPurgesExpiredSession(t *testing.T) {
	sessions := newMemSessions()
	uc := New(sessions, "secret", time.Hour, nil)

	expired := &domain.WalletSession{
		ID:        "expired",
		Address:   domain.NormalizeAddress(testAddress),
		NetworkID: 43113,
		State:     domain.WalletConnected,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	sessions.sessions[expired.ID] = expired

	_, err := uc.Get(context.Background(), "expired")
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if sessions.deletes != 1 {
		t.Errorf("expired session not purged")
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	sessions := newMemSessions()
	uc := New(sessions, "secret", time.Hour, nil)

	session, _, err := uc.Connect(context.Background(), testAddress, 43113)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := uc.Disconnect(context.Background(), session.ID); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if _, err := uc.Get(context.Background(), session.ID); err == nil {
		t.Fatal("session still resolvable after disconnect")
	}
}
