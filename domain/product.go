package domain

import "time"

// Provenance tags which source a projection was assembled from.
type Provenance string

const (
	ProvenanceCache  Provenance = "cache"
	ProvenanceLedger Provenance = "ledger"
)

// Well-known lifecycle statuses. The status field is free-form; these are
// the values the producer/retailer tooling emits.
const (
	StatusCreated   = "created"
	StatusShipped   = "shipped"
	StatusInTransit = "in transit"
	StatusDelivered = "delivered"
)

// Product is the scalar view of a registered agricultural product. The id
// is assigned by the ledger at creation and never reused.
type Product struct {
	ID          int64     `json:"id" bson:"product_id"`
	Name        string    `json:"name" bson:"name"`
	Quantity    int64     `json:"quantity" bson:"quantity"`
	HarvestDate time.Time `json:"harvest_date" bson:"harvest_date"`
	Owner       string    `json:"owner" bson:"owner"`
}

// HistoryEntry is a single lifecycle event appended to a product. Payload
// carries opaque serialized sensor/inspection data and may be empty.
// SourceRef points at the originating ledger transaction; it is empty for
// entries not yet confirmed.
type HistoryEntry struct {
	Status    string    `json:"status" bson:"status"`
	Payload   string    `json:"payload,omitempty" bson:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	SourceRef string    `json:"source_ref,omitempty" bson:"source_ref,omitempty"`
}

// ProductProjection is the read-optimized view returned to callers. It is
// recomputed on every read and never persisted under its own identity.
type ProductProjection struct {
	Product    Product        `json:"product"`
	History    []HistoryEntry `json:"history"`
	Provenance Provenance     `json:"provenance"`
}

// ProductSummary is the lightweight owner-listing view.
type ProductSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Quantity    int64     `json:"quantity"`
	HarvestDate time.Time `json:"harvest_date"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// CacheRecord is the durable mirror of a product plus its known history,
// keyed by product id. The ledger is the sole source of authority: a
// record is always a possibly-stale subset of ledger truth.
type CacheRecord struct {
	Product   Product        `bson:",inline"`
	History   []HistoryEntry `bson:"history,omitempty"`
	TxRef     string         `bson:"tx_ref,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// Touch stamps the record timestamps before an upsert.
func (r *CacheRecord) Touch(now time.Time) {
	if r == nil {
		return
	}
	r.UpdatedAt = now
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

// Summary projects the record into its owner-listing view.
func (r *CacheRecord) Summary() ProductSummary {
	return ProductSummary{
		ID:          r.Product.ID,
		Name:        r.Product.Name,
		Quantity:    r.Product.Quantity,
		HarvestDate: r.Product.HarvestDate,
		Owner:       r.Product.Owner,
		CreatedAt:   r.CreatedAt,
	}
}

// Projection materializes the record as a cache-tagged projection.
func (r *CacheRecord) Projection() *ProductProjection {
	return &ProductProjection{
		Product:    r.Product,
		History:    TimelineEntries(r.History),
		Provenance: ProvenanceCache,
	}
}

// CreationEvent is a ProductCreated notification delivered by the ledger
// subscription. Delivery is at-least-once; consumers must upsert.
type CreationEvent struct {
	ProductID   int64     `json:"product_id"`
	Name        string    `json:"name"`
	Quantity    int64     `json:"quantity"`
	HarvestDate time.Time `json:"harvest_date"`
	Owner       string    `json:"owner"`
	TxRef       string    `json:"tx_ref"`
}

// Record converts the event payload into a cache record. Creation fields
// are immutable on the ledger, so re-applying a duplicate event rewrites
// the same values.
func (e CreationEvent) Record() *CacheRecord {
	return &CacheRecord{
		Product: Product{
			ID:          e.ProductID,
			Name:        e.Name,
			Quantity:    e.Quantity,
			HarvestDate: e.HarvestDate,
			Owner:       NormalizeAddress(e.Owner),
		},
		TxRef: e.TxRef,
	}
}
