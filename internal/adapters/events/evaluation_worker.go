package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

const (
	DeadLetterReasonNotFound  = "transaction_not_found"
	DeadLetterReasonExhausted = "retries_exhausted"
	DeadLetterReasonMalformed = "malformed_job"
)

// Evaluator runs one evaluation. *application.Service is the production implementation.
type Evaluator interface {
	EvaluateTransaction(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, error)
}

type EvaluationWorkerConfig struct {
	Concurrency    int
	ReserveWait    time.Duration
	RetryBaseDelay time.Duration
	ErrorBackoff   time.Duration
}

// EvaluationWorker consumes evaluation jobs with a fixed pool of goroutines.
type EvaluationWorker struct {
	logger    *slog.Logger
	queue     ports.JobQueue
	evaluator Evaluator
	metrics   ports.Metrics
	cfg       EvaluationWorkerConfig
}

func NewEvaluationWorker(logger *slog.Logger, queue ports.JobQueue, evaluator Evaluator, metrics ports.Metrics, cfg EvaluationWorkerConfig) *EvaluationWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ReserveWait <= 0 {
		cfg.ReserveWait = 2 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &EvaluationWorker{logger: logger, queue: queue, evaluator: evaluator, metrics: metrics, cfg: cfg}
}

// RetryDelay is the requeue delay after the given number of prior attempts.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * time.Duration(1<<attempt)
}

// Run blocks until ctx is cancelled. In-flight jobs finish before Run returns.
func (w *EvaluationWorker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (w *EvaluationWorker) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		d, err := w.queue.Reserve(ctx, w.cfg.ReserveWait)
		switch {
		case err == nil:
			w.Process(context.WithoutCancel(ctx), d)
		case errors.Is(err, domain.ErrQueueEmpty), errors.Is(err, domain.ErrInvalidInput):
		case ctx.Err() != nil:
			return
		default:
			w.logger.ErrorContext(ctx, "reserve job failed",
				"module", "events.evaluation_worker",
				"layer", "adapter",
				"operation", "reserve_job",
				"outcome", "failure",
				"worker_slot", slot,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ErrorBackoff):
			}
		}
	}
}

// Process evaluates one delivery and acknowledges, retries or dead-letters it.
func (w *EvaluationWorker) Process(ctx context.Context, d ports.Delivery) {
	transactionID, err := d.Job.TransactionID()
	if err != nil {
		w.deadLetter(ctx, d, "", DeadLetterReasonMalformed, err)
		return
	}

	tx, err := w.evaluator.EvaluateTransaction(ctx, transactionID)
	if err != nil {
		w.handleFailure(ctx, d, transactionID.String(), err)
		return
	}

	if ackErr := w.queue.Ack(ctx, d); ackErr != nil {
		w.logger.WarnContext(ctx, "ack job failed",
			"module", "events.evaluation_worker",
			"layer", "adapter",
			"operation", "ack_job",
			"outcome", "failure",
			"job_id", d.Job.ID,
			"transaction_id", transactionID.String(),
			"error", ackErr,
		)
	}
	w.metrics.EvaluationCompleted(string(tx.Status))

	attrs := []any{
		"module", "events.evaluation_worker",
		"layer", "adapter",
		"operation", "evaluate_transaction",
		"outcome", "success",
		"job_id", d.Job.ID,
		"transaction_id", transactionID.String(),
		"status", string(tx.Status),
		"attempt", d.Job.Attempt,
	}
	if tx.RuleScore != nil && tx.MLScore != nil && tx.FinalScore != nil {
		attrs = append(attrs, "rule_score", *tx.RuleScore, "ml_score", *tx.MLScore, "final_score", *tx.FinalScore)
	}
	if tx.RiskLevel != nil {
		attrs = append(attrs, "risk_level", string(*tx.RiskLevel))
	}
	w.logger.InfoContext(ctx, "evaluation_complete", attrs...)
}

func (w *EvaluationWorker) handleFailure(ctx context.Context, d ports.Delivery, transactionID string, err error) {
	stage := domain.StageReceived
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}
	w.logger.ErrorContext(ctx, "evaluation_error",
		"module", "events.evaluation_worker",
		"layer", "adapter",
		"operation", "evaluate_transaction",
		"outcome", "failure",
		"job_id", d.Job.ID,
		"transaction_id", transactionID,
		"stage", string(stage),
		"attempt", d.Job.Attempt,
		"error", err,
	)

	if errors.Is(err, domain.ErrNotFound) {
		w.deadLetter(ctx, d, transactionID, DeadLetterReasonNotFound, err)
		return
	}
	maxRetries := d.Job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultJobMaxRetries
	}
	if d.Job.Attempt >= maxRetries {
		w.deadLetter(ctx, d, transactionID, DeadLetterReasonExhausted, err)
		return
	}

	delay := RetryDelay(w.cfg.RetryBaseDelay, d.Job.Attempt)
	if retryErr := w.queue.Retry(ctx, d, delay, err.Error()); retryErr != nil {
		w.logger.ErrorContext(ctx, "retry job failed",
			"module", "events.evaluation_worker",
			"layer", "adapter",
			"operation", "retry_job",
			"outcome", "failure",
			"job_id", d.Job.ID,
			"transaction_id", transactionID,
			"error", retryErr,
		)
		return
	}
	w.metrics.EvaluationRetried(string(stage))
	w.logger.WarnContext(ctx, "evaluation retry scheduled",
		"module", "events.evaluation_worker",
		"layer", "adapter",
		"operation", "retry_job",
		"outcome", "scheduled",
		"job_id", d.Job.ID,
		"transaction_id", transactionID,
		"stage", string(domain.StageRetry),
		"attempt", d.Job.Attempt+1,
		"delay_ms", delay.Milliseconds(),
	)
}

func (w *EvaluationWorker) deadLetter(ctx context.Context, d ports.Delivery, transactionID, reason string, cause error) {
	if err := w.queue.DeadLetter(ctx, d, reason); err != nil {
		w.logger.ErrorContext(ctx, "dead letter job failed",
			"module", "events.evaluation_worker",
			"layer", "adapter",
			"operation", "dead_letter_job",
			"outcome", "failure",
			"job_id", d.Job.ID,
			"transaction_id", transactionID,
			"error", err,
		)
		return
	}
	w.metrics.JobDeadLettered(reason)
	w.logger.ErrorContext(ctx, "evaluation_dead_lettered",
		"module", "events.evaluation_worker",
		"layer", "adapter",
		"operation", "dead_letter_job",
		"outcome", "failure",
		"job_id", d.Job.ID,
		"transaction_id", transactionID,
		"stage", string(domain.StageFailed),
		"reason", reason,
		"attempt", d.Job.Attempt,
		"error", cause,
	)
}
