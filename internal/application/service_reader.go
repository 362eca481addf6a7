package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

const (
	cacheOutcomeHit   = "hit"
	cacheOutcomeMiss  = "miss"
	cacheOutcomeError = "error"
)

// GetTransaction reads through the result cache. Only evaluated snapshots are cached.
func (s *Service) GetTransaction(ctx context.Context, transactionID, userID uuid.UUID) (domain.Transaction, error) {
	if cached, ok := s.cachedTransaction(ctx, transactionID); ok {
		if cached.UserID != userID {
			return domain.Transaction{}, domain.ErrForbidden
		}
		return cached, nil
	}

	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx.UserID != userID {
		return domain.Transaction{}, domain.ErrForbidden
	}
	if tx.Evaluated() {
		if err := s.cache.Set(ctx, tx, s.cfg.ResultCacheTTL); err != nil {
			s.logCacheFailure(ctx, "cache_set", transactionID, err)
		}
	}
	return tx, nil
}

// ListAlerts returns the alerts raised for a transaction owned by userID.
func (s *Service) ListAlerts(ctx context.Context, transactionID, userID uuid.UUID) ([]domain.Alert, error) {
	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return s.alerts.ListByTransaction(ctx, transactionID)
}

func (s *Service) cachedTransaction(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, bool) {
	tx, found, err := s.cache.Get(ctx, transactionID)
	switch {
	case err != nil:
		s.metrics.CacheLookup(cacheOutcomeError)
		s.logCacheFailure(ctx, "cache_get", transactionID, err)
		return domain.Transaction{}, false
	case !found:
		s.metrics.CacheLookup(cacheOutcomeMiss)
		return domain.Transaction{}, false
	default:
		s.metrics.CacheLookup(cacheOutcomeHit)
		return tx, true
	}
}

func (s *Service) logCacheFailure(ctx context.Context, operation string, transactionID uuid.UUID, err error) {
	s.logger.WarnContext(ctx, "result cache unavailable",
		"module", "application.reader",
		"layer", "application",
		"operation", operation,
		"outcome", "failure",
		"transaction_id", transactionID.String(),
		"error", err,
	)
}
