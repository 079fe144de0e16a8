package findings

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func finding(sev Severity) Finding {
	return Finding{Severity: sev, Category: "test", Title: "test finding"}
}

func TestScore_NoFindings_PerfectScore(t *testing.T) {
	score, risk := Score(nil)

	assert.Equal(t, 100, score)
	assert.Equal(t, RiskLow, risk)
}

func TestScore_KnownWeights_LockedIn(t *testing.T) {
	// One critical and two highs: 100 - 25 - 15 - 15 = 45, which lands in
	// the HIGH risk band (>=40, <70). This test freezes the policy weights.
	score, risk := Score([]Finding{
		finding(SeverityCritical),
		finding(SeverityHigh),
		finding(SeverityHigh),
	})

	assert.Equal(t, 45, score)
	assert.Equal(t, RiskHigh, risk)
}

func TestScore_PerSeverityPenalties(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		expected int
	}{
		{"critical costs 25", SeverityCritical, 75},
		{"high costs 15", SeverityHigh, 85},
		{"medium costs 8", SeverityMedium, 92},
		{"low costs 3", SeverityLow, 97},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := Score([]Finding{finding(tt.severity)})
			assert.Equal(t, tt.expected, score)
		})
	}
}

func TestScore_ClampedToZero(t *testing.T) {
	list := make([]Finding, 0, 10)
	for i := 0; i < 10; i++ {
		list = append(list, finding(SeverityCritical))
	}

	score, risk := Score(list)

	assert.Equal(t, 0, score)
	assert.Equal(t, RiskCritical, risk)
}

func TestScore_OrderIndependent(t *testing.T) {
	base := []Finding{
		finding(SeverityCritical),
		finding(SeverityHigh),
		finding(SeverityHigh),
		finding(SeverityMedium),
		finding(SeverityLow),
		finding(SeverityLow),
	}

	wantScore, wantRisk := Score(base)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]Finding, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		score, risk := Score(shuffled)
		assert.Equal(t, wantScore, score)
		assert.Equal(t, wantRisk, risk)
	}
}

func TestScore_MonotonicNonIncreasing(t *testing.T) {
	severities := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

	var list []Finding
	prev, _ := Score(list)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 40; i++ {
		list = append(list, finding(severities[rng.Intn(len(severities))]))
		score, _ := Score(list)
		assert.LessOrEqual(t, score, prev, "adding a finding must never raise the score")
		prev = score
	}
}

func TestRiskLevelForScore_TotalOverRange(t *testing.T) {
	// Every score in [0,100] must map to exactly one risk level.
	for score := 0; score <= 100; score++ {
		risk := RiskLevelForScore(score)
		switch {
		case score >= 90:
			assert.Equal(t, RiskLow, risk, "score %d", score)
		case score >= 70:
			assert.Equal(t, RiskMedium, risk, "score %d", score)
		case score >= 40:
			assert.Equal(t, RiskHigh, risk, "score %d", score)
		default:
			assert.Equal(t, RiskCritical, risk, "score %d", score)
		}
	}
}

func TestParseSeverity_RejectsUnknown(t *testing.T) {
	_, err := ParseSeverity("EXTREME")
	assert.Error(t, err)

	sev, err := ParseSeverity("CRITICAL")
	assert.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)
}

func TestCountBySeverity_Buckets(t *testing.T) {
	counts := CountBySeverity([]Finding{
		finding(SeverityCritical),
		finding(SeverityHigh),
		finding(SeverityHigh),
		finding(SeverityLow),
	})

	assert.Equal(t, Counts{Critical: 1, High: 2, Medium: 0, Low: 1}, counts)
	assert.Equal(t, 4, counts.Total())
}

func TestSeverity_RankOrdering(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.False(t, Severity("bogus").IsValid())
}
