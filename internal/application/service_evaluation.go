package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/contracts"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

// EvaluateTransaction runs LOADING, SCORING, PERSISTING, ALERTING and CACHING
// for one job. It is safe to repeat: an already evaluated transaction is only
// re-cached. Failures are *domain.StageError values; a missing transaction
// wraps domain.ErrNotFound.
func (s *Service) EvaluateTransaction(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, error) {
	s.logger.InfoContext(ctx, "evaluation_start",
		"module", "application.evaluation",
		"layer", "application",
		"operation", "evaluate_transaction",
		"outcome", "started",
		"transaction_id", transactionID.String(),
	)

	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, &domain.StageError{Stage: domain.StageLoading, Err: err}
	}

	if tx.Status == domain.TransactionStatusPending {
		tx, err = s.scoreAndPersist(ctx, tx)
		if err != nil {
			return domain.Transaction{}, err
		}
	}

	if err := s.cache.Set(ctx, tx, s.cfg.ResultCacheTTL); err != nil {
		return domain.Transaction{}, &domain.StageError{Stage: domain.StageCaching, Err: err}
	}
	return tx, nil
}

func (s *Service) scoreAndPersist(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	eval := s.scorer.Score(ctx, tx)
	now := s.now()

	var alert *domain.Alert
	if eval.RiskLevel == domain.RiskLevelHigh {
		alert = &domain.Alert{
			AlertID:       uuid.New(),
			TransactionID: tx.TransactionID,
			AlertType:     domain.AlertTypeHighRiskTransaction,
			Message:       highRiskAlertMessage(tx, eval),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	events, err := s.evaluationEvents(tx, eval, alert)
	if err != nil {
		return domain.Transaction{}, &domain.StageError{Stage: domain.StageScoring, Err: err}
	}

	res, err := s.evaluations.ApplyEvaluation(ctx, ports.ApplyEvaluationParams{
		TransactionID: tx.TransactionID,
		Evaluation:    eval,
		Alert:         alert,
		Events:        events,
		At:            now,
	})
	if err != nil {
		return domain.Transaction{}, &domain.StageError{Stage: domain.StagePersisting, Err: err}
	}
	if res.AlertCreated {
		s.logger.WarnContext(ctx, "high_risk_alert_created",
			"module", "application.evaluation",
			"layer", "application",
			"operation", "create_alert",
			"outcome", "success",
			"transaction_id", tx.TransactionID.String(),
			"alert_id", alert.AlertID.String(),
			"final_score", eval.FinalScore,
		)
	}
	return res.Transaction, nil
}

func highRiskAlertMessage(tx domain.Transaction, eval domain.Evaluation) string {
	return fmt.Sprintf("Transaction %s blocked with final_score=%.4f. Amount: %s, ML: %.4f, Rules: %.4f",
		tx.TransactionID, eval.FinalScore, tx.Amount.StringFixed(2), eval.MLScore, eval.RuleScore)
}

func (s *Service) evaluationEvents(tx domain.Transaction, eval domain.Evaluation, alert *domain.Alert) ([]ports.OutboxEvent, error) {
	key := tx.TransactionID.String()
	evaluated, err := s.envelope(contracts.EventTransactionEvaluated, key, "data.transaction_id", contracts.TransactionEvaluatedData{
		TransactionID: key,
		UserID:        tx.UserID.String(),
		Amount:        tx.Amount.StringFixed(2),
		Currency:      tx.Currency,
		Status:        string(eval.Status),
		RiskLevel:     string(eval.RiskLevel),
		RuleScore:     eval.RuleScore,
		MLScore:       eval.MLScore,
		FinalScore:    eval.FinalScore,
	})
	if err != nil {
		return nil, err
	}
	events := []ports.OutboxEvent{evaluated}
	if alert != nil {
		raised, err := s.envelope(contracts.EventRiskAlertRaised, key, "data.transaction_id", contracts.RiskAlertRaisedData{
			AlertID:       alert.AlertID.String(),
			TransactionID: key,
			UserID:        tx.UserID.String(),
			AlertType:     alert.AlertType,
			FinalScore:    eval.FinalScore,
			Message:       alert.Message,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, raised)
	}
	return events, nil
}

func (s *Service) envelope(eventType, partitionKey, partitionKeyPath string, data any) (ports.OutboxEvent, error) {
	rawData, err := json.Marshal(data)
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	id := uuid.New()
	now := s.now()
	payload, err := json.Marshal(contracts.EventEnvelope{
		EventID:          id.String(),
		EventType:        eventType,
		OccurredAt:       now,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		SchemaVersion:    contracts.SchemaVersionV1,
		Data:             rawData,
	})
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	return ports.OutboxEvent{
		EventID:      id,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   now,
	}, nil
}
