package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	GetByID(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, error)
}

// ApplyEvaluationParams carries everything committed by one evaluation.
// Alert is nil unless the decision is high risk.
type ApplyEvaluationParams struct {
	TransactionID uuid.UUID
	Evaluation    domain.Evaluation
	Alert         *domain.Alert
	Events        []OutboxEvent
	At            time.Time
}

type ApplyEvaluationResult struct {
	Transaction  domain.Transaction
	Applied      bool
	AlertCreated bool
}

// EvaluationRepository commits the PENDING transition, the optional alert and
// the outbox events in one transaction. Applied is false when the transaction
// had already left PENDING, in which case nothing is written.
type EvaluationRepository interface {
	ApplyEvaluation(ctx context.Context, params ApplyEvaluationParams) (ApplyEvaluationResult, error)
}

type AlertRepository interface {
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.Alert, error)
}

type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
