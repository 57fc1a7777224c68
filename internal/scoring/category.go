package scoring

// Risk categories reported to callers.
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
)

// Category thresholds, inclusive on the lower bound.
const (
	HighThreshold   = 0.8
	MediumThreshold = 0.5
)

// DefaultThreshold converts continuous scores into binary predictions.
const DefaultThreshold = 0.5

// NoTransactionsMessage accompanies the default assessment of an address
// that is not part of the graph.
const NoTransactionsMessage = "No transactions found"

// Categorize maps a risk score to its category.
func Categorize(score float64) string {
	switch {
	case score >= HighThreshold:
		return RiskHigh
	case score >= MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Predict thresholds a score into a 0/1 prediction.
func Predict(score, threshold float64) int {
	if score >= threshold {
		return 1
	}
	return 0
}
