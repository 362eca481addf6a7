package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"gorm.io/gorm"
)

type alertRepository struct {
	db *gorm.DB
}

func (r *alertRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.Alert, error) {
	var rows []alertModel
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list alerts: %v", domain.ErrStorageUnavailable, err)
	}
	out := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainAlert(row))
	}
	return out, nil
}
