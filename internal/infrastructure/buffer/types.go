package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is a creation event whose cache upsert could not be completed,
// persisted until the cache store comes back. Data holds the serialized
// domain.CreationEvent.
type Item struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"product_id"`
	TxRef     string          `json:"tx_ref,omitempty"`
	Data      json.RawMessage `json:"data"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
