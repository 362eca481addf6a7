package contracts

import (
	"encoding/json"
	"time"
)

const (
	EventTransactionEvaluated = "transaction.evaluated"
	EventRiskAlertRaised      = "risk.alert_raised"

	SchemaVersionV1 = "v1"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type TransactionEvaluatedData struct {
	TransactionID string  `json:"transaction_id"`
	UserID        string  `json:"user_id"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	RiskLevel     string  `json:"risk_level"`
	RuleScore     float64 `json:"rule_score"`
	MLScore       float64 `json:"ml_score"`
	FinalScore    float64 `json:"final_score"`
}

type RiskAlertRaisedData struct {
	AlertID       string  `json:"alert_id"`
	TransactionID string  `json:"transaction_id"`
	UserID        string  `json:"user_id"`
	AlertType     string  `json:"alert_type"`
	FinalScore    float64 `json:"final_score"`
	Message       string  `json:"message"`
}
