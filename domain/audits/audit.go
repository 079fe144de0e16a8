package audits

import (
	"errors"
	"fmt"
	"time"

	"vulnwatch/domain/findings"
)

var (
	// ErrInvalidTransition is returned when a transition violates the allowed
	// edge set or regresses progress. The audit is left unchanged.
	ErrInvalidTransition = errors.New("invalid audit transition")

	// ErrAuditFinalized is returned when findings are attached to an audit
	// that already reached a terminal status.
	ErrAuditFinalized = errors.New("audit already finalized")
)

// Result holds the scored outcome of a successfully completed audit.
// Nil while the audit is running and for audits that ended in ERROR, so the
// score and risk level can never be set independently of each other.
type Result struct {
	Score int                `json:"score"`
	Risk  findings.RiskLevel `json:"risk"`
}

// Audit is one end-to-end analysis run of a submitted artifact.
type Audit struct {
	ID          string
	OwnerID     string
	SubjectName string
	Status      Status
	Progress    int
	Message     string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Result      *Result
	Findings    []findings.Finding
}

// IsActive returns true while the audit can still accept transitions.
func (a *Audit) IsActive() bool {
	return !a.Status.IsTerminal()
}

// Counts buckets the audit's findings by severity.
func (a *Audit) Counts() findings.Counts {
	return findings.CountBySeverity(a.Findings)
}

// DurationSeconds returns the wall-clock run time in whole seconds, or false
// while the audit has not reached a terminal status.
func (a *Audit) DurationSeconds() (int64, bool) {
	if a.CompletedAt == nil {
		return 0, false
	}
	return int64(a.CompletedAt.Sub(a.CreatedAt) / time.Second), true
}

// AttachFindings appends findings produced by the analysis engine. Each
// finding is validated at this boundary; one malformed finding rejects the
// whole batch and nothing is attached.
func (a *Audit) AttachFindings(list []findings.Finding) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrAuditFinalized, a.ID)
	}
	for _, f := range list {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	a.Findings = append(a.Findings, list...)
	return nil
}
