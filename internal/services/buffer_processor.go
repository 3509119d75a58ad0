package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/internal/infrastructure/buffer"
	"github.com/farmchain/backend/repository"
)

// CacheHealth abstracts the connection monitor.
type CacheHealth interface {
	CacheOnline() bool
}

// ProcessorConfig controls how frequently the pending buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// BufferProcessor drains buffered creation events into the cache once it
// is reachable again.
type BufferProcessor struct {
	store   *buffer.Store
	monitor CacheHealth
	cache   repository.CacheStore
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor CacheHealth,
	cache repository.CacheStore,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		cache:   cache,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("pending upsert drain failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started")
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain applies buffered creation events to the cache synchronously.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil || bp.cache == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.CacheOnline() {
		bp.logger.Debug("skipping drain (cache offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := bp.processItem(ctx, item); err != nil {
			bp.logger.Error("failed to apply pending upsert",
				zap.String("item_id", item.ID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))

			item.Retries++
			if item.Retries >= bp.cfg.MaxRetries {
				// Dropping is safe: the reconciliation service still
				// resolves the product from the ledger on demand.
				bp.logger.Warn("dropping pending upsert (max retries reached)",
					zap.String("item_id", item.ID))
				_ = bp.store.Remove(item)
				continue
			}

			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to remove pending upsert", zap.Error(err))
			}
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue pending upsert", zap.Error(err))
			}
			continue
		}

		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge applied upsert", zap.Error(err))
		}
	}
	return nil
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	var event domain.CreationEvent
	if err := json.Unmarshal(item.Data, &event); err != nil {
		return err
	}
	_, err := bp.cache.Upsert(ctx, event.Record())
	return err
}
