package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/farmchain/backend/domain"
)

type feedClient struct {
	mu     sync.Mutex
	events []domain.CreationEvent
	fail   bool
	calls  int
}

func (c *feedClient) FetchCreated(ctx context.Context, cursor uint64, limit int) ([]domain.CreationEvent, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return nil, cursor, domain.UpstreamError(context.DeadlineExceeded)
	}
	if int(cursor) >= len(c.events) {
		return nil, cursor, nil
	}
	batch := c.events[cursor:]
	return batch, cursor + uint64(len(batch)), nil
}

func (c *feedClient) GetHistory(ctx context.Context, productID int64) (*domain.ProductProjection, error) {
	return nil, domain.ErrProductNotFound
}

func (c *feedClient) GetOwnedIDs(ctx context.Context, address string) ([]int64, error) {
	return nil, nil
}

func (c *feedClient) CreateProduct(ctx context.Context, name string, quantity int64, harvestDate time.Time) (int64, string, error) {
	return 0, "", nil
}

func (c *feedClient) AppendUpdate(ctx context.Context, productID int64, status, payload string) (string, error) {
	return "", nil
}

func TestSubscriptionDeliversEvents(t *testing.T) {
	client := &feedClient{events: []domain.CreationEvent{
		{ProductID: 1, TxRef: "0xa"},
		{ProductID: 2, TxRef: "0xb"},
	}}

	sub := Subscribe(context.Background(), client, 0, 10*time.Millisecond, nil)
	defer sub.Close()

	var got []domain.CreationEvent
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case event := <-sub.Events():
			got = append(got, event)
		case <-timeout:
			t.Fatalf("timed out, received %d events", len(got))
		}
	}

	if got[0].ProductID != 1 || got[1].ProductID != 2 {
		t.Errorf("events out of order: %+v", got)
	}
}

func TestSubscriptionCloseStopsStream(t *testing.T) {
	client := &feedClient{}
	sub := Subscribe(context.Background(), client, 0, 10*time.Millisecond, nil)
	sub.Close()

	select {
	case _, open := <-sub.Events():
		if open {
			t.Fatal("expected closed events channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after Close")
	}
}

func TestSubscriptionKeepsCursorOnFailure(t *testing.T) {
	client := &feedClient{events: []domain.CreationEvent{{ProductID: 9}}, fail: true}
	sub := Subscribe(context.Background(), client, 0, 10*time.Millisecond, nil)

	// Let a few failing polls pass, then recover.
	time.Sleep(50 * time.Millisecond)
	client.mu.Lock()
	client.fail = false
	client.mu.Unlock()

	select {
	case event := <-sub.Events():
		if event.ProductID != 9 {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event lost across poll failures")
	}
	sub.Close()
}
