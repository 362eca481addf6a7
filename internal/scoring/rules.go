package scoring

import "github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"

const (
	HighAmountThreshold = 50000.0

	highAmountPoints      = 30
	nightHourPoints       = 10
	newDevicePoints       = 20
	unusualLocationPoints = 20
	maxRulePoints         = highAmountPoints + nightHourPoints + newDevicePoints + unusualLocationPoints

	nightStartHour = 22
	nightEndHour   = 6

	mlWeight   = 0.7
	ruleWeight = 0.3

	approvedBelow = 0.4
	blockedFrom   = 0.75
)

func IsNightHour(hour int) bool {
	return hour >= nightStartHour || hour < nightEndHour
}

// RuleScore sums fixed points per triggered rule and normalizes to [0,1].
func RuleScore(amount float64, hour int, isNewDevice, isUnusualLocation bool) float64 {
	points := 0
	if amount > HighAmountThreshold {
		points += highAmountPoints
	}
	if IsNightHour(hour) {
		points += nightHourPoints
	}
	if isNewDevice {
		points += newDevicePoints
	}
	if isUnusualLocation {
		points += unusualLocationPoints
	}
	score := float64(points) / float64(maxRulePoints)
	if score > 1 {
		return 1
	}
	return score
}

func HybridScore(mlScore, ruleScore float64) float64 {
	return mlWeight*mlScore + ruleWeight*ruleScore
}

func Decide(finalScore float64) (domain.TransactionStatus, domain.RiskLevel) {
	switch {
	case finalScore < approvedBelow:
		return domain.TransactionStatusApproved, domain.RiskLevelLow
	case finalScore < blockedFrom:
		return domain.TransactionStatusFlagged, domain.RiskLevelMedium
	default:
		return domain.TransactionStatusBlocked, domain.RiskLevelHigh
	}
}
