package postgres

import (
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

func fromDomainTransaction(tx domain.Transaction) transactionModel {
	rec := transactionModel{
		TransactionID:   tx.TransactionID,
		UserID:          tx.UserID,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Location:        tx.Location,
		DeviceID:        tx.DeviceID,
		IPAddress:       tx.IPAddress,
		TransactionTime: tx.TransactionTime.UTC(),
		Status:          string(tx.Status),
		RuleScore:       tx.RuleScore,
		MLScore:         tx.MLScore,
		FinalScore:      tx.FinalScore,
		CreatedAt:       tx.CreatedAt.UTC(),
		UpdatedAt:       tx.UpdatedAt.UTC(),
	}
	if tx.RiskLevel != nil {
		level := string(*tx.RiskLevel)
		rec.RiskLevel = &level
	}
	return rec
}

func toDomainTransaction(rec transactionModel) domain.Transaction {
	tx := domain.Transaction{
		TransactionID:   rec.TransactionID,
		UserID:          rec.UserID,
		Amount:          rec.Amount,
		Currency:        rec.Currency,
		Location:        rec.Location,
		DeviceID:        rec.DeviceID,
		IPAddress:       rec.IPAddress,
		TransactionTime: rec.TransactionTime.UTC(),
		Status:          domain.TransactionStatus(rec.Status),
		RuleScore:       rec.RuleScore,
		MLScore:         rec.MLScore,
		FinalScore:      rec.FinalScore,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
	if rec.RiskLevel != nil {
		level := domain.RiskLevel(*rec.RiskLevel)
		tx.RiskLevel = &level
	}
	return tx
}

func toDomainAlert(rec alertModel) domain.Alert {
	return domain.Alert{
		AlertID:       rec.AlertID,
		TransactionID: rec.TransactionID,
		AlertType:     rec.AlertType,
		Message:       rec.Message,
		Resolved:      rec.Resolved,
		CreatedAt:     rec.CreatedAt.UTC(),
		UpdatedAt:     rec.UpdatedAt.UTC(),
	}
}

func toOutboxRecord(row outboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}
