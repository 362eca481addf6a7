package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) ApplyEvaluation(ctx context.Context, params ports.ApplyEvaluationParams) (ports.ApplyEvaluationResult, error) {
	var result ports.ApplyEvaluationResult
	at := params.At.UTC()
	eval := params.Evaluation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&transactionModel{}).
			Where("transaction_id = ?", params.TransactionID).
			Where("status = ?", string(domain.TransactionStatusPending)).
			Updates(map[string]any{
				"status":      string(eval.Status),
				"rule_score":  eval.RuleScore,
				"ml_score":    eval.MLScore,
				"final_score": eval.FinalScore,
				"risk_level":  string(eval.RiskLevel),
				"updated_at":  at,
			})
		if res.Error != nil {
			return res.Error
		}
		result.Applied = res.RowsAffected > 0

		if result.Applied {
			if params.Alert != nil {
				created, err := insertAlert(tx, *params.Alert, at)
				if err != nil {
					return err
				}
				result.AlertCreated = created
			}
			for _, event := range params.Events {
				if err := enqueueOutbox(tx, event); err != nil {
					return err
				}
			}
		}

		rec, err := loadTransaction(tx, params.TransactionID)
		if err != nil {
			return err
		}
		result.Transaction = toDomainTransaction(rec)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStorageUnavailable) {
			return ports.ApplyEvaluationResult{}, err
		}
		return ports.ApplyEvaluationResult{}, fmt.Errorf("%w: apply evaluation: %v", domain.ErrStorageUnavailable, err)
	}
	return result, nil
}

// insertAlert reports false when the (transaction_id, alert_type) pair already exists.
func insertAlert(tx *gorm.DB, alert domain.Alert, at time.Time) (bool, error) {
	if alert.AlertID == uuid.Nil {
		alert.AlertID = uuid.New()
	}
	rec := alertModel{
		AlertID:       alert.AlertID,
		TransactionID: alert.TransactionID,
		AlertType:     alert.AlertType,
		Message:       alert.Message,
		Resolved:      false,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "alert_type"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func enqueueOutbox(tx *gorm.DB, event ports.OutboxEvent) error {
	rec := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt.UTC(),
	}
	if rec.OutboxID == uuid.Nil {
		rec.OutboxID = uuid.New()
	}
	return tx.Create(&rec).Error
}
