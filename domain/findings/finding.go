package findings

import "fmt"

// Severity classifies how dangerous a single finding is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank orders severities for sorting and tie-breaking. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether s is one of the four known severities.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// ParseSeverity validates a raw severity string at the ingestion boundary.
// Findings with unknown severities are rejected here, never inside scoring.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// Finding is one detected issue belonging to exactly one audit.
// Immutable once attached to its audit.
type Finding struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Title    string   `json:"title"`
}

// Validate checks a finding at the attachment boundary.
func (f Finding) Validate() error {
	if !f.Severity.IsValid() {
		return fmt.Errorf("finding %q: unknown severity %q", f.Title, f.Severity)
	}
	return nil
}

// Counts holds per-severity finding totals for one audit.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the number of findings across all severities.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// CountBySeverity buckets findings into per-severity totals.
func CountBySeverity(list []Finding) Counts {
	var c Counts
	for _, f := range list {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
	}
	return c
}
