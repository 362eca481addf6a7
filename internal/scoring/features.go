package scoring

import (
	"math"

	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

// FeatureColumns is the column order every classifier artifact must be trained on.
var FeatureColumns = []string{
	"amount",
	"hour",
	"is_night",
	"is_new_device",
	"is_unusual_location",
	"amount_log",
	"amount_zscore",
}

// Input is the minimal set of transaction attributes the engine scores.
type Input struct {
	Amount            float64
	Hour              int
	IsNewDevice       bool
	IsUnusualLocation bool
}

// InputFromTransaction derives hour-of-day in UTC and presence-based novelty flags.
func InputFromTransaction(tx domain.Transaction) Input {
	amount, _ := tx.Amount.Float64()
	return Input{
		Amount:            amount,
		Hour:              tx.TransactionTime.UTC().Hour(),
		IsNewDevice:       tx.DeviceID != nil && *tx.DeviceID != "",
		IsUnusualLocation: tx.Location != nil && *tx.Location != "",
	}
}

type FeatureVector struct {
	Amount            float64
	Hour              float64
	IsNight           float64
	IsNewDevice       float64
	IsUnusualLocation float64
	AmountLog         float64
	AmountZScore      float64
}

func BuildFeatures(in Input) FeatureVector {
	return FeatureVector{
		Amount:            in.Amount,
		Hour:              float64(in.Hour),
		IsNight:           boolFeature(IsNightHour(in.Hour)),
		IsNewDevice:       boolFeature(in.IsNewDevice),
		IsUnusualLocation: boolFeature(in.IsUnusualLocation),
		AmountLog:         math.Log1p(in.Amount),
		AmountZScore:      0,
	}
}

// Values returns the features in FeatureColumns order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.Amount,
		f.Hour,
		f.IsNight,
		f.IsNewDevice,
		f.IsUnusualLocation,
		f.AmountLog,
		f.AmountZScore,
	}
}

func boolFeature(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
