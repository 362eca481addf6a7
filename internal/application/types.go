package application

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateTransactionRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Location        *string         `json:"location"`
	DeviceID        *string         `json:"device_id"`
	IPAddress       *string         `json:"ip_address"`
	TransactionTime *time.Time      `json:"transaction_time"`
}
