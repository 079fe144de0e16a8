package analytics

import (
	"math"
	"time"

	"vulnwatch/domain/audits"
)

// SecuredScoreThreshold is the minimum overall score for an audit to count
// as secured in aggregate statistics.
const SecuredScoreThreshold = 70

// Stats are aggregate statistics over a set of audits. Derived on demand,
// never stored as source of truth.
type Stats struct {
	TotalAudits             int `json:"totalAudits"`
	AverageScore            int `json:"averageScore"`
	CriticalVulnerabilities int `json:"criticalVulnerabilities"`
	HighVulnerabilities     int `json:"highVulnerabilities"`
	SecuredAudits           int `json:"securedAudits"`
}

// Summarize computes aggregate statistics over the audits created at or after
// cutoff. The average is the mean of scores over scored audits only, rounded
// to the nearest integer; an empty input yields all zeros.
func Summarize(list []*audits.Audit, cutoff time.Time) Stats {
	var stats Stats
	var scoreSum, scored int

	for _, a := range list {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		stats.TotalAudits++

		counts := a.Counts()
		stats.CriticalVulnerabilities += counts.Critical
		stats.HighVulnerabilities += counts.High

		if a.Result != nil {
			scoreSum += a.Result.Score
			scored++
			if a.Result.Score >= SecuredScoreThreshold {
				stats.SecuredAudits++
			}
		}
	}

	if scored > 0 {
		stats.AverageScore = int(math.Round(float64(scoreSum) / float64(scored)))
	}
	return stats
}
