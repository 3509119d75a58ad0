package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

// Gateway talks to the JSON bridge exposed in front of the product
// registry contract. It is intentionally dumb transport: no retries, no
// caching; errors surface to the caller unclassified except for 404.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGateway builds a ledger gateway client.
func NewGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ repository.LedgerClient = (*Gateway)(nil)

// historyResponse is the canonical getProductHistory shape: scalar product
// fields plus parallel per-event arrays. Dates travel as epoch seconds.
type historyResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Quantity    int64    `json:"quantity"`
	HarvestDate int64    `json:"harvest_date"`
	Owner       string   `json:"owner"`
	Statuses    []string `json:"statuses"`
	Payloads    []string `json:"payloads"`
	Timestamps  []int64  `json:"timestamps"`
	TxRefs      []string `json:"tx_refs"`
}

type ownedResponse struct {
	IDs []int64 `json:"ids"`
}

type createRequest struct {
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
	HarvestDate int64  `json:"harvest_date"`
}

type createResponse struct {
	ID    int64  `json:"id"`
	TxRef string `json:"tx_ref"`
}

type updateRequest struct {
	Status  string `json:"status"`
	Payload string `json:"payload"`
}

type updateResponse struct {
	TxRef string `json:"tx_ref"`
}

type eventRecord struct {
	Cursor      uint64 `json:"cursor"`
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
	HarvestDate int64  `json:"harvest_date"`
	Owner       string `json:"owner"`
	TxRef       string `json:"tx_ref"`
}

type eventsResponse struct {
	Events     []eventRecord `json:"events"`
	NextCursor uint64        `json:"next_cursor"`
}

func (g *Gateway) GetHistory(ctx context.Context, productID int64) (*domain.ProductProjection, error) {
	var resp historyResponse
	path := fmt.Sprintf("/v1/products/%d/history", productID)
	if err := g.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	history := make([]domain.HistoryEntry, 0, len(resp.Statuses))
	for i, status := range resp.Statuses {
		entry := domain.HistoryEntry{Status: status}
		if i < len(resp.Payloads) {
			entry.Payload = resp.Payloads[i]
		}
		if i < len(resp.Timestamps) {
			entry.Timestamp = domain.EpochToTime(resp.Timestamps[i])
		}
		if i < len(resp.TxRefs) {
			entry.SourceRef = resp.TxRefs[i]
		}
		history = append(history, entry)
	}

	return &domain.ProductProjection{
		Product: domain.Product{
			ID:          resp.ID,
			Name:        resp.Name,
			Quantity:    resp.Quantity,
			HarvestDate: domain.EpochToTime(resp.HarvestDate),
			Owner:       domain.NormalizeAddress(resp.Owner),
		},
		History:    domain.TimelineEntries(history),
		Provenance: domain.ProvenanceLedger,
	}, nil
}

func (g *Gateway) GetOwnedIDs(ctx context.Context, address string) ([]int64, error) {
	var resp ownedResponse
	path := fmt.Sprintf("/v1/owners/%s/products", url.PathEscape(domain.NormalizeAddress(address)))
	if err := g.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (g *Gateway) CreateProduct(ctx context.Context, name string, quantity int64, harvestDate time.Time) (int64, string, error) {
	req := createRequest{
		Name:        name,
		Quantity:    quantity,
		HarvestDate: domain.TimeToEpoch(harvestDate),
	}
	var resp createResponse
	if err := g.postJSON(ctx, "/v1/products", req, &resp); err != nil {
		return 0, "", err
	}
	return resp.ID, resp.TxRef, nil
}

func (g *Gateway) AppendUpdate(ctx context.Context, productID int64, status, payload string) (string, error) {
	req := updateRequest{Status: status, Payload: payload}
	var resp updateResponse
	path := fmt.Sprintf("/v1/products/%d/updates", productID)
	if err := g.postJSON(ctx, path, req, &resp); err != nil {
		return "", err
	}
	return resp.TxRef, nil
}

func (g *Gateway) FetchCreated(ctx context.Context, cursor uint64, limit int) ([]domain.CreationEvent, uint64, error) {
	if limit <= 0 {
		limit = 50
	}
	var resp eventsResponse
	path := fmt.Sprintf("/v1/events/created?cursor=%d&limit=%d", cursor, limit)
	if err := g.getJSON(ctx, path, &resp); err != nil {
		return nil, cursor, err
	}

	events := make([]domain.CreationEvent, 0, len(resp.Events))
	next := resp.NextCursor
	for _, rec := range resp.Events {
		events = append(events, domain.CreationEvent{
			ProductID:   rec.ProductID,
			Name:        rec.Name,
			Quantity:    rec.Quantity,
			HarvestDate: domain.EpochToTime(rec.HarvestDate),
			Owner:       domain.NormalizeAddress(rec.Owner),
			TxRef:       rec.TxRef,
		})
		if rec.Cursor > next {
			next = rec.Cursor
		}
	}
	return events, next, nil
}

// Ping checks gateway reachability for the connection monitor.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.getJSON(ctx, "/v1/health", nil)
}

func (g *Gateway) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

func (g *Gateway) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out interface{}) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("ledger gateway call failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return domain.UpstreamError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrProductNotFound
	case resp.StatusCode >= 400:
		g.logger.Warn("ledger gateway returned error status",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode))
		return domain.UpstreamError(fmt.Errorf("ledger gateway status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.UpstreamError(fmt.Errorf("decode ledger response: %w", err))
	}
	return nil
}
