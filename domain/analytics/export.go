package analytics

import (
	"sort"
	"strconv"
	"time"

	"vulnwatch/domain/audits"
)

// ExportHeader is the column order for tabular exports.
var ExportHeader = []string{
	"audit_id", "subject_name", "owner_id", "status",
	"overall_score", "risk_level", "created_at", "completed_at",
	"duration_seconds", "critical", "high", "medium", "low",
}

// ExportRow is one audit rendered for tabular export. Optional fields that
// are unset render as empty strings; duration renders as whole seconds.
type ExportRow struct {
	AuditID         string
	SubjectName     string
	OwnerID         string
	Status          string
	OverallScore    string
	RiskLevel       string
	CreatedAt       string
	CompletedAt     string
	DurationSeconds string
	Critical        int
	High            int
	Medium          int
	Low             int
}

// Record renders the row in ExportHeader column order.
func (r ExportRow) Record() []string {
	return []string{
		r.AuditID, r.SubjectName, r.OwnerID, r.Status,
		r.OverallScore, r.RiskLevel, r.CreatedAt, r.CompletedAt,
		r.DurationSeconds,
		strconv.Itoa(r.Critical), strconv.Itoa(r.High),
		strconv.Itoa(r.Medium), strconv.Itoa(r.Low),
	}
}

// BuildExportRows renders one row per audit, newest created first.
func BuildExportRows(list []*audits.Audit) []ExportRow {
	sorted := make([]*audits.Audit, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	rows := make([]ExportRow, 0, len(sorted))
	for _, a := range sorted {
		counts := a.Counts()
		row := ExportRow{
			AuditID:     a.ID,
			SubjectName: a.SubjectName,
			OwnerID:     a.OwnerID,
			Status:      string(a.Status),
			CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
			Critical:    counts.Critical,
			High:        counts.High,
			Medium:      counts.Medium,
			Low:         counts.Low,
		}
		if a.Result != nil {
			row.OverallScore = strconv.Itoa(a.Result.Score)
			row.RiskLevel = string(a.Result.Risk)
		}
		if a.CompletedAt != nil {
			row.CompletedAt = a.CompletedAt.UTC().Format(time.RFC3339)
		}
		if seconds, ok := a.DurationSeconds(); ok {
			row.DurationSeconds = strconv.FormatInt(seconds, 10)
		}
		rows = append(rows, row)
	}
	return rows
}
