package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

// Subscription delivers ProductCreated events as a cancellable stream.
// The gateway has no push channel, so the stream is driven by polling the
// creation-event feed with a cursor. The cursor only advances after an
// event has been handed to the consumer, which keeps delivery
// at-least-once across poll failures.
type Subscription struct {
	client   repository.LedgerClient
	interval time.Duration
	batch    int
	logger   *zap.Logger

	events chan domain.CreationEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe starts polling for creation events from the given cursor.
func Subscribe(ctx context.Context, client repository.LedgerClient, cursor uint64, interval time.Duration, logger *zap.Logger) *Subscription {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		client:   client,
		interval: interval,
		batch:    50,
		logger:   logger,
		events:   make(chan domain.CreationEvent),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.loop(ctx, cursor)
	return s
}

// Events is the stream of creation notifications. It is closed when the
// subscription terminates.
func (s *Subscription) Events() <-chan domain.CreationEvent {
	return s.events
}

// Close cancels the subscription and waits for the poll loop to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) loop(ctx context.Context, cursor uint64) {
	defer close(s.done)
	defer close(s.events)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cursor = s.poll(ctx, cursor)
		}
	}
}

func (s *Subscription) poll(ctx context.Context, cursor uint64) uint64 {
	events, next, err := s.client.FetchCreated(ctx, cursor, s.batch)
	if err != nil {
		// Cursor stays put: the same window is refetched next tick.
		s.logger.Warn("creation event poll failed", zap.Uint64("cursor", cursor), zap.Error(err))
		return cursor
	}

	for _, event := range events {
		select {
		case s.events <- event:
		case <-ctx.Done():
			return cursor
		}
	}
	return next
}
