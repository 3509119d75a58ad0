package domain

import "time"

// WalletState is the lifecycle state of a wallet session. Transitions:
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// A Connected session whose network differs from the configured ledger
// network is in mismatch and must switch before writes are permitted.
type WalletState string

const (
	WalletDisconnected WalletState = "disconnected"
	WalletConnecting   WalletState = "connecting"
	WalletConnected    WalletState = "connected"
)

// WalletSession is a server-side wallet session stored in Redis. It
// replaces the ambient "current wallet" singleton: every request that
// needs wallet identity carries an explicit session id.
type WalletSession struct {
	ID        string      `json:"id"`
	Address   string      `json:"address"`
	NetworkID int64       `json:"network_id"`
	State     WalletState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (s *WalletSession) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// NetworkMismatch reports whether the session points at a different
// network than the one the backend's ledger gateway serves.
func (s *WalletSession) NetworkMismatch(expected int64) bool {
	return s != nil && expected != 0 && s.NetworkID != expected
}

// Connect moves a connecting session to connected with the wallet's
// reported address and network. Connecting is the only legal prior state.
func (s *WalletSession) Connect(address string, networkID int64) error {
	if s == nil {
		return ErrSessionNotFound
	}
	if s.State != WalletConnecting {
		return NewError(ErrCodeConflict, "session is not connecting")
	}
	if !ValidAddress(address) {
		return ErrInvalidAddress
	}
	s.Address = NormalizeAddress(address)
	s.NetworkID = networkID
	s.State = WalletConnected
	return nil
}

// SwitchNetwork records an explicit network switch on a connected session.
func (s *WalletSession) SwitchNetwork(networkID int64) error {
	if s == nil {
		return ErrSessionNotFound
	}
	if s.State != WalletConnected {
		return NewError(ErrCodeConflict, "session is not connected")
	}
	if networkID <= 0 {
		return NewError(ErrCodeInvalid, "invalid network id")
	}
	s.NetworkID = networkID
	return nil
}

// Disconnect terminates the session from any state.
func (s *WalletSession) Disconnect() {
	if s == nil {
		return
	}
	s.State = WalletDisconnected
	s.Address = ""
	s.NetworkID = 0
}

// CanWrite reports whether ledger mutations may be submitted through this
// session: connected, unexpired, and on the expected network.
func (s *WalletSession) CanWrite(expectedNetwork int64, now time.Time) error {
	if s == nil || s.State != WalletConnected {
		return NewError(ErrCodeConflict, "wallet is not connected")
	}
	if s.IsExpired(now) {
		return ErrSessionNotFound
	}
	if s.NetworkMismatch(expectedNetwork) {
		return NewError(ErrCodeConflict, "wallet is on the wrong network")
	}
	return nil
}
