package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxCurrencyLength  = 3
	MaxLocationLength  = 256
	MaxDeviceIDLength  = 128
	MaxIPAddressLength = 45
)

// MaxAmount is the largest value the NUMERIC(18,2) amount column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// NewTransactionInput is the producer-side payload before persistence.
type NewTransactionInput struct {
	Amount          decimal.Decimal
	Currency        string
	Location        *string
	DeviceID        *string
	IPAddress       *string
	TransactionTime *time.Time
}

// NormalizeTransactionInput validates the payload and applies defaults.
// The returned amount is rounded to cents.
func NormalizeTransactionInput(in NewTransactionInput, now time.Time) (NewTransactionInput, error) {
	out := in
	out.Amount = in.Amount.Round(2)
	if !out.Amount.IsPositive() {
		return NewTransactionInput{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	}
	if out.Amount.GreaterThan(MaxAmount) {
		return NewTransactionInput{}, fmt.Errorf("%w: amount must not exceed %s", ErrInvalidInput, MaxAmount.StringFixed(2))
	}

	out.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if len(out.Currency) > MaxCurrencyLength {
		return NewTransactionInput{}, fmt.Errorf("%w: currency must be at most %d characters", ErrInvalidInput, MaxCurrencyLength)
	}

	var err error
	if out.Location, err = optionalField("location", in.Location, MaxLocationLength); err != nil {
		return NewTransactionInput{}, err
	}
	if out.DeviceID, err = optionalField("device_id", in.DeviceID, MaxDeviceIDLength); err != nil {
		return NewTransactionInput{}, err
	}
	if out.IPAddress, err = optionalField("ip_address", in.IPAddress, MaxIPAddressLength); err != nil {
		return NewTransactionInput{}, err
	}

	txTime := now.UTC()
	if in.TransactionTime != nil && !in.TransactionTime.IsZero() {
		txTime = in.TransactionTime.UTC()
	}
	out.TransactionTime = &txTime
	return out, nil
}

func optionalField(name string, value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > max {
		return nil, fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, name, max)
	}
	return &trimmed, nil
}
