package registry

import (
	"context"
	"testing"
	"time"

	"github.com/farmchain/backend/domain"
)

type stubLedger struct {
	createCalls int
	updateCalls int
	notFound    bool
	fail        bool
}

func (s *stubLedger) GetHistory(ctx context.Context, productID int64) (*domain.ProductProjection, error) {
	return nil, domain.ErrProductNotFound
}

func (s *stubLedger) GetOwnedIDs(ctx context.Context, address string) ([]int64, error) {
	return nil, nil
}

func (s *stubLedger) CreateProduct(ctx context.Context, name string, quantity int64, harvestDate time.Time) (int64, string, error) {
	s.createCalls++
	if s.fail {
		return 0, "", domain.UpstreamError(context.DeadlineExceeded)
	}
	return 42, "0xcreate", nil
}

func (s *stubLedger) AppendUpdate(ctx context.Context, productID int64, status, payload string) (string, error) {
	s.updateCalls++
	if s.notFound {
		return "", domain.ErrProductNotFound
	}
	if s.fail {
		return "", domain.UpstreamError(context.DeadlineExceeded)
	}
	return "0xupdate", nil
}

func (s *stubLedger) FetchCreated(ctx context.Context, cursor uint64, limit int) ([]domain.CreationEvent, uint64, error) {
	return nil, cursor, nil
}

func connectedSession(networkID int64) *domain.WalletSession {
	return &domain.WalletSession{
		ID:        "session-1",
		Address:   "0xabcdef0123456789abcdef0123456789abcdef01",
		NetworkID: networkID,
		State:     domain.WalletConnected,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestCreateSubmitsToLedger(t *testing.T) {
	ledger := &stubLedger{}
	uc := New(ledger, 43113, nil)

	id, txRef, err := uc.Create(context.Background(), connectedSession(43113), "Coffee", 10, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 || txRef != "0xcreate" {
		t.Errorf("got id=%d txRef=%s", id, txRef)
	}
	if ledger.createCalls != 1 {
		t.Errorf("create calls = %d", ledger.createCalls)
	}
}

func TestCreateBlockedOnNetworkMismatch(t *testing.T) {
	ledger := &stubLedger{}
	uc := New(ledger, 43113, nil)

	_, _, err := uc.Create(context.Background(), connectedSession(1), "Coffee", 10, time.Now().Add(-time.Hour))
	if !domain.IsDomainError(err, domain.ErrCodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if ledger.createCalls != 0 {
		t.Errorf("ledger reached despite mismatch")
	}
}

func TestCreateBlockedWhenNotConnected(t *testing.T) {
	uc := New(&stubLedger{}, 43113, nil)

	session := connectedSession(43113)
	session.Disconnect()
	_, _, err := uc.Create(context.Background(), session, "Coffee", 10, time.Now().Add(-time.Hour))
	if !domain.IsDomainError(err, domain.ErrCodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	uc := New(&stubLedger{}, 43113, nil)
	session := connectedSession(43113)
	past := time.Now().Add(-time.Hour)

	cases := []struct {
		name        string
		productName string
		quantity    int64
		harvestDate time.Time
	}{
		{"empty name", "", 10, past},
		{"zero quantity", "Coffee", 0, past},
		{"future harvest", "Coffee", 10, time.Now().Add(time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := uc.Create(context.Background(), session, tc.productName, tc.quantity, tc.harvestDate)
			if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
				t.Fatalf("expected INVALID, got %v", err)
			}
		})
	}
}

func TestAppendUpdate(t *testing.T) {
	ledger := &stubLedger{}
	uc := New(ledger, 43113, nil)

	txRef, err := uc.AppendUpdate(context.Background(), connectedSession(43113), 7, "shipped", "container 42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txRef != "0xupdate" {
		t.Errorf("tx ref = %s", txRef)
	}
}

func TestAppendUpdateUnknownProduct(t *testing.T) {
	uc := New(&stubLedger{notFound: true}, 43113, nil)

	_, err := uc.AppendUpdate(context.Background(), connectedSession(43113), 999, "shipped", "")
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestAppendUpdateLedgerDown(t *testing.T) {
	uc := New(&stubLedger{fail: true}, 43113, nil)

	_, err := uc.AppendUpdate(context.Background(), connectedSession(43113), 7, "shipped", "")
	if !domain.IsDomainError(err, domain.ErrCodeUpstream) {
		t.Fatalf("expected UPSTREAM_UNAVAILABLE, got %v", err)
	}
}
