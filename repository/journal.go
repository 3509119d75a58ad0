package repository

import (
	"context"
	"time"

	"github.com/farmchain/backend/domain"
)

// Journal actions.
const (
	JournalActionSync     = "sync"
	JournalActionListener = "listener_upsert"
	JournalActionWriteBack = "write_back"
)

// JournalEntry is one row of the reconciliation audit trail: which product
// was refreshed, by which path, and under which ledger transaction.
type JournalEntry struct {
	ID         string            `json:"id"`
	ProductID  int64             `json:"product_id"`
	Action     string            `json:"action"`
	Provenance domain.Provenance `json:"provenance"`
	TxRef      string            `json:"tx_ref,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// JournalRepository persists the audit trail. Recording is best-effort:
// callers log and swallow failures, the read path already has its answer.
type JournalRepository interface {
	Record(ctx context.Context, entry *JournalEntry) error
	ListRecent(ctx context.Context, limit int) ([]JournalEntry, error)
}
