package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnwatch/domain/audits"
	"vulnwatch/domain/findings"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func completedAudit(id string, createdAt time.Time, score int, list []findings.Finding) *audits.Audit {
	completedAt := createdAt.Add(90 * time.Second)
	return &audits.Audit{
		ID:          id,
		OwnerID:     "owner-1",
		SubjectName: "svc-" + id,
		Status:      audits.StatusCompleted,
		Progress:    100,
		CreatedAt:   createdAt,
		CompletedAt: &completedAt,
		Result:      &audits.Result{Score: score, Risk: findings.RiskLevelForScore(score)},
		Findings:    list,
	}
}

func failedAudit(id string, createdAt time.Time) *audits.Audit {
	completedAt := createdAt.Add(10 * time.Second)
	return &audits.Audit{
		ID:          id,
		OwnerID:     "owner-1",
		SubjectName: "svc-" + id,
		Status:      audits.StatusError,
		Progress:    30,
		CreatedAt:   createdAt,
		CompletedAt: &completedAt,
	}
}

func TestSummarize_EmptyInput_AllZeros(t *testing.T) {
	stats := Summarize(nil, ResolveCutoff(Window30d, testNow))

	assert.Equal(t, Stats{}, stats)
}

func TestSummarize_CountsAndAverage(t *testing.T) {
	cutoff := ResolveCutoff(Window30d, testNow)
	list := []*audits.Audit{
		completedAudit("a", testNow.AddDate(0, 0, -1), 45, []findings.Finding{
			{Severity: findings.SeverityCritical, Category: "injection", Title: "sqli"},
			{Severity: findings.SeverityHigh, Category: "auth", Title: "weak token"},
			{Severity: findings.SeverityHigh, Category: "crypto", Title: "bad key"},
		}),
		completedAudit("b", testNow.AddDate(0, 0, -2), 92, nil),
		completedAudit("c", testNow.AddDate(0, 0, -3), 70, []findings.Finding{
			{Severity: findings.SeverityMedium, Category: "config", Title: "debug on"},
		}),
	}

	stats := Summarize(list, cutoff)

	assert.Equal(t, 3, stats.TotalAudits)
	// (45 + 92 + 70) / 3 = 69
	assert.Equal(t, 69, stats.AverageScore)
	assert.Equal(t, 1, stats.CriticalVulnerabilities)
	assert.Equal(t, 2, stats.HighVulnerabilities)
	assert.Equal(t, 2, stats.SecuredAudits, "scores 92 and 70 count as secured")
}

func TestSummarize_AverageRoundsToNearest(t *testing.T) {
	cutoff := ResolveCutoff(Window30d, testNow)
	list := []*audits.Audit{
		completedAudit("a", testNow.AddDate(0, 0, -1), 80, nil),
		completedAudit("b", testNow.AddDate(0, 0, -2), 85, nil),
	}

	stats := Summarize(list, cutoff)

	// 82.5 rounds to 83.
	assert.Equal(t, 83, stats.AverageScore)
}

func TestSummarize_FailedAuditsCountedButNotScored(t *testing.T) {
	cutoff := ResolveCutoff(Window30d, testNow)
	list := []*audits.Audit{
		completedAudit("a", testNow.AddDate(0, 0, -1), 90, nil),
		failedAudit("b", testNow.AddDate(0, 0, -2)),
	}

	stats := Summarize(list, cutoff)

	assert.Equal(t, 2, stats.TotalAudits)
	assert.Equal(t, 90, stats.AverageScore, "unscored audits do not drag the mean")
	assert.Equal(t, 1, stats.SecuredAudits)
}

func TestSummarize_WindowFiltersByCreatedAt(t *testing.T) {
	cutoff := ResolveCutoff(Window7d, testNow)
	list := []*audits.Audit{
		completedAudit("recent", testNow.AddDate(0, 0, -3), 50, nil),
		completedAudit("stale", testNow.AddDate(0, 0, -20), 100, nil),
	}

	stats := Summarize(list, cutoff)

	assert.Equal(t, 1, stats.TotalAudits)
	assert.Equal(t, 50, stats.AverageScore)
}

func TestResolveCutoff_KnownWindows(t *testing.T) {
	tests := []struct {
		window   string
		expected time.Time
	}{
		{"7d", testNow.AddDate(0, 0, -7)},
		{"30d", testNow.AddDate(0, 0, -30)},
		{"90d", testNow.AddDate(0, 0, -90)},
		{"1y", testNow.AddDate(-1, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveCutoff(tt.window, testNow))
		})
	}
}

func TestResolveCutoff_UnknownWindowFallsBackTo30d(t *testing.T) {
	assert.Equal(t, ResolveCutoff(Window30d, testNow), ResolveCutoff("bogus", testNow))
	assert.Equal(t, ResolveCutoff(Window30d, testNow), ResolveCutoff("", testNow))
}

func TestBuildExportRows_NewestFirstWithCounts(t *testing.T) {
	list := []*audits.Audit{
		completedAudit("old", testNow.AddDate(0, 0, -5), 92, nil),
		completedAudit("new", testNow.AddDate(0, 0, -1), 45, []findings.Finding{
			{Severity: findings.SeverityCritical, Category: "injection", Title: "sqli"},
			{Severity: findings.SeverityLow, Category: "config", Title: "verbose errors"},
		}),
	}

	rows := BuildExportRows(list)

	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].AuditID)
	assert.Equal(t, "old", rows[1].AuditID)

	assert.Equal(t, "45", rows[0].OverallScore)
	assert.Equal(t, "HIGH", rows[0].RiskLevel)
	assert.Equal(t, "90", rows[0].DurationSeconds)
	assert.Equal(t, 1, rows[0].Critical)
	assert.Equal(t, 1, rows[0].Low)
}

func TestBuildExportRows_UnscoredFieldsRenderEmpty(t *testing.T) {
	running := &audits.Audit{
		ID:          "running",
		OwnerID:     "owner-1",
		SubjectName: "svc-running",
		Status:      audits.StatusDetecting,
		Progress:    60,
		CreatedAt:   testNow,
	}

	rows := BuildExportRows([]*audits.Audit{running})

	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].OverallScore)
	assert.Equal(t, "", rows[0].RiskLevel)
	assert.Equal(t, "", rows[0].CompletedAt)
	assert.Equal(t, "", rows[0].DurationSeconds)
}

func TestExportRow_RecordMatchesHeader(t *testing.T) {
	rows := BuildExportRows([]*audits.Audit{
		completedAudit("a", testNow, 88, nil),
	})

	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Record(), len(ExportHeader))
}
