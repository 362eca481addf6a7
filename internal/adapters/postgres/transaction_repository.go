package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func (r *transactionRepository) Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	rec := fromDomainTransaction(tx)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: create transaction: %v", domain.ErrStorageUnavailable, err)
	}
	return toDomainTransaction(rec), nil
}

func (r *transactionRepository) GetByID(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, error) {
	rec, err := loadTransaction(r.db.WithContext(ctx), transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return toDomainTransaction(rec), nil
}

func loadTransaction(db *gorm.DB, transactionID uuid.UUID) (transactionModel, error) {
	var rec transactionModel
	if err := db.Where("transaction_id = ?", transactionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return transactionModel{}, domain.ErrNotFound
		}
		return transactionModel{}, fmt.Errorf("%w: load transaction: %v", domain.ErrStorageUnavailable, err)
	}
	return rec, nil
}
