package findings

// RiskLevel is the discrete risk classification derived from an overall score.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// Per-severity score penalties. An audit starts at 100 and loses points for
// every finding; the result is clamped to [0, 100]. The weights are fixed
// policy and locked in by the scoring tests.
const (
	penaltyCritical = 25
	penaltyHigh     = 15
	penaltyMedium   = 8
	penaltyLow      = 3
)

// Risk level thresholds over the overall score. Total on [0, 100]:
// >=90 LOW, >=70 MEDIUM, >=40 HIGH, otherwise CRITICAL.
const (
	thresholdLow    = 90
	thresholdMedium = 70
	thresholdHigh   = 40
)

// Score computes the overall score and risk level for a list of findings.
// Pure and order-independent: only the multiset of severities matters.
// Safe to call concurrently from any number of audits.
func Score(list []Finding) (int, RiskLevel) {
	score := 100
	for _, f := range list {
		switch f.Severity {
		case SeverityCritical:
			score -= penaltyCritical
		case SeverityHigh:
			score -= penaltyHigh
		case SeverityMedium:
			score -= penaltyMedium
		case SeverityLow:
			score -= penaltyLow
		}
	}
	if score < 0 {
		score = 0
	}
	return score, RiskLevelForScore(score)
}

// RiskLevelForScore maps an overall score to its risk level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= thresholdLow:
		return RiskLow
	case score >= thresholdMedium:
		return RiskMedium
	case score >= thresholdHigh:
		return RiskHigh
	default:
		return RiskCritical
	}
}
