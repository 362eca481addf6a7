package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusFlagged  TransactionStatus = "FLAGGED"
	TransactionStatusBlocked  TransactionStatus = "BLOCKED"
)

func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusApproved, TransactionStatusFlagged, TransactionStatusBlocked:
		return true
	default:
		return false
	}
}

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

const AlertTypeHighRiskTransaction = "HIGH_RISK_TRANSACTION"

const DefaultCurrency = "USD"

// Transaction is the store-of-record entity. Scores and RiskLevel are nil
// while Status is PENDING and set together exactly once by an evaluation.
type Transaction struct {
	TransactionID   uuid.UUID         `json:"transaction_id"`
	UserID          uuid.UUID         `json:"user_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Location        *string           `json:"location"`
	DeviceID        *string           `json:"device_id"`
	IPAddress       *string           `json:"ip_address"`
	TransactionTime time.Time         `json:"transaction_time"`
	Status          TransactionStatus `json:"status"`
	RuleScore       *float64          `json:"rule_score"`
	MLScore         *float64          `json:"ml_score"`
	FinalScore      *float64          `json:"final_score"`
	RiskLevel       *RiskLevel        `json:"risk_level"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (t Transaction) Evaluated() bool {
	return t.FinalScore != nil
}

type Alert struct {
	AlertID       uuid.UUID `json:"alert_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	AlertType     string    `json:"alert_type"`
	Message       string    `json:"message"`
	Resolved      bool      `json:"resolved"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Evaluation is the scoring outcome applied to a PENDING transaction.
type Evaluation struct {
	RuleScore  float64
	MLScore    float64
	FinalScore float64
	Status     TransactionStatus
	RiskLevel  RiskLevel
}
