package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/internal/infrastructure/buffer"
	"github.com/farmchain/backend/internal/infrastructure/ledger"
	"github.com/farmchain/backend/repository"
)

// CreationListener subscribes to the ledger's ProductCreated stream and
// opportunistically upserts the cache. Advisory, not authoritative: a
// lost notification only delays cache freshness, the reconciliation
// service's ledger fallback is the correctness backstop.
type CreationListener struct {
	client       repository.LedgerClient
	cache        repository.CacheStore
	journal      repository.JournalRepository
	pending      *buffer.Store
	pollInterval time.Duration
	logger       *zap.Logger

	sub *ledger.Subscription
	wg  sync.WaitGroup
}

func NewCreationListener(
	client repository.LedgerClient,
	cache repository.CacheStore,
	journal repository.JournalRepository,
	pending *buffer.Store,
	pollInterval time.Duration,
	logger *zap.Logger,
) *CreationListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreationListener{
		client:       client,
		cache:        cache,
		journal:      journal,
		pending:      pending,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Start opens the subscription and begins consuming events. The listener
// owns the subscription lifetime.
func (l *CreationListener) Start(ctx context.Context) {
	if l.cache == nil {
		l.logger.Info("cache disabled, creation listener not started")
		return
	}

	l.sub = ledger.Subscribe(ctx, l.client, 0, l.pollInterval, l.logger)
	l.wg.Add(1)
	go l.consume()
	l.logger.Info("creation listener started")
}

// Stop cancels the subscription and waits for the in-flight upsert to
// finish, so no accepted event is dropped mid-write.
func (l *CreationListener) Stop(ctx context.Context) {
	if l.sub == nil {
		return
	}
	l.sub.Close()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Warn("creation listener stop timed out")
	}
}

func (l *CreationListener) consume() {
	defer l.wg.Done()
	for event := range l.sub.Events() {
		l.handle(event)
	}
}

func (l *CreationListener) handle(event domain.CreationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := event.Record()
	if _, err := l.cache.Upsert(ctx, record); err != nil {
		l.logger.Warn("creation upsert failed, buffering",
			zap.Int64("product_id", event.ProductID),
			zap.Error(err))
		l.enqueue(event)
		return
	}

	l.logger.Info("product synced from creation event",
		zap.Int64("product_id", event.ProductID),
		zap.String("tx_ref", event.TxRef))

	if l.journal != nil {
		entry := &repository.JournalEntry{
			ProductID:  event.ProductID,
			Action:     repository.JournalActionListener,
			Provenance: domain.ProvenanceLedger,
			TxRef:      event.TxRef,
		}
		if err := l.journal.Record(ctx, entry); err != nil {
			l.logger.Warn("journal record failed", zap.Error(err))
		}
	}
}

func (l *CreationListener) enqueue(event domain.CreationEvent) {
	if l.pending == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		l.logger.Error("failed to serialize creation event", zap.Error(err))
		return
	}
	item := buffer.Item{
		ProductID: event.ProductID,
		TxRef:     event.TxRef,
		Data:      payload,
	}
	if err := l.pending.Enqueue(item); err != nil {
		l.logger.Error("failed to buffer creation event",
			zap.Int64("product_id", event.ProductID),
			zap.Error(err))
	}
}
