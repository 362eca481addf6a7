package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

// OutboxWorker relays evaluation events committed with the transaction update.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
	nowFn      func() time.Time
}

type OutboxWorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		claimTTL:   cfg.ClaimTTL,
		maxRetries: cfg.MaxRetries,
		nowFn:      time.Now,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, w.nowFn().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}

	now := w.nowFn().UTC()
	var published, failed, deadLettered int
	for _, rec := range records {
		pubErr := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
		if pubErr == nil {
			published++
			w.logMarkFailure(ctx, "mark_published", rec, w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now))
			continue
		}

		failed++
		if rec.RetryCount+1 >= w.maxRetries {
			deadLettered++
			w.logger.ErrorContext(ctx, "outbox event dead-lettered",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID.String(),
				"event_type", rec.EventType,
				"retry_count", rec.RetryCount+1,
				"error", pubErr,
			)
			w.logMarkFailure(ctx, "mark_dead_lettered", rec, w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, pubErr.Error(), now))
			continue
		}
		w.logMarkFailure(ctx, "mark_failed", rec, w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, pubErr.Error(), now))
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}

// logMarkFailure reports a record whose claim could not be settled; it stays
// claimed until claim_until lapses and is then published again.
func (w *OutboxWorker) logMarkFailure(ctx context.Context, operation string, rec ports.OutboxRecord, err error) {
	if err == nil {
		return
	}
	w.logger.ErrorContext(ctx, "outbox record update failed",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", operation,
		"outcome", "failure",
		"outbox_id", rec.OutboxID.String(),
		"event_type", rec.EventType,
		"error", err,
	)
}
