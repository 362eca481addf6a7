package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type transactionModel struct {
	TransactionID   uuid.UUID       `gorm:"column:transaction_id;type:uuid;primaryKey"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	Currency        string          `gorm:"column:currency"`
	Location        *string         `gorm:"column:location"`
	DeviceID        *string         `gorm:"column:device_id"`
	IPAddress       *string         `gorm:"column:ip_address"`
	TransactionTime time.Time       `gorm:"column:transaction_time"`
	Status          string          `gorm:"column:status"`
	RuleScore       *float64        `gorm:"column:rule_score"`
	MLScore         *float64        `gorm:"column:ml_score"`
	FinalScore      *float64        `gorm:"column:final_score"`
	RiskLevel       *string         `gorm:"column:risk_level"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string { return "transactions" }

type alertModel struct {
	AlertID       uuid.UUID `gorm:"column:alert_id;type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;uniqueIndex:uq_alerts_transaction_type"`
	AlertType     string    `gorm:"column:alert_type;uniqueIndex:uq_alerts_transaction_type"`
	Message       string    `gorm:"column:message"`
	Resolved      bool      `gorm:"column:resolved"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (alertModel) TableName() string { return "alerts" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "fraud_outbox" }
