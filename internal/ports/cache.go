package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

// ResultCache stores evaluated transaction snapshots. Get reports a miss
// with found=false and a nil error.
type ResultCache interface {
	Get(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, bool, error)
	Set(ctx context.Context, tx domain.Transaction, ttl time.Duration) error
}
