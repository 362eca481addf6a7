package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

type JobPublisher interface {
	Enqueue(ctx context.Context, job domain.Job) error
}

// Delivery is a reserved job. Raw is the exact queue payload and identifies
// the delivery to Ack, Retry and DeadLetter.
type Delivery struct {
	Job        domain.Job
	Raw        string
	ReservedAt time.Time
}

// JobQueue is an at-least-once queue: a reserved job that is neither acked
// nor rescheduled before its visibility window lapses is delivered again.
type JobQueue interface {
	JobPublisher
	Reserve(ctx context.Context, wait time.Duration) (Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Retry(ctx context.Context, d Delivery, delay time.Duration, reason string) error
	DeadLetter(ctx context.Context, d Delivery, reason string) error
}
