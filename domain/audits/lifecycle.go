package audits

import (
	"fmt"
	"time"

	"vulnwatch/domain/findings"
)

// Lifecycle validates and applies audit state transitions.
// Callers must serialize transitions per audit; the orchestration layer holds
// a per-audit critical section around every Advance call.
type Lifecycle struct {
	now func() time.Time
}

// NewLifecycle creates a lifecycle using the system clock.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{now: time.Now}
}

// NewLifecycleWithClock creates a lifecycle with an injectable clock.
func NewLifecycleWithClock(now func() time.Time) *Lifecycle {
	return &Lifecycle{now: now}
}

// Advance moves the audit to next with the given progress. A rejected
// transition returns ErrInvalidTransition and leaves the audit untouched.
//
// Entering COMPLETED scores the audit's findings and sets the result and
// completion timestamp. Entering ERROR sets the completion timestamp but
// leaves the result nil.
func (l *Lifecycle) Advance(a *Audit, next Status, progress int) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, next)
	}
	if next != StatusError && progress < a.Progress {
		return fmt.Errorf("%w: progress regressed from %d to %d",
			ErrInvalidTransition, a.Progress, progress)
	}

	a.Status = next
	if next != StatusError {
		a.Progress = progress
	}

	switch next {
	case StatusCompleted:
		score, risk := findings.Score(a.Findings)
		now := l.now()
		a.Progress = 100
		a.CompletedAt = &now
		a.Result = &Result{Score: score, Risk: risk}
	case StatusError:
		now := l.now()
		a.CompletedAt = &now
	}
	return nil
}

// Fail moves the audit to ERROR with a failure message. Fails with
// ErrInvalidTransition once the audit is terminal.
func (l *Lifecycle) Fail(a *Audit, message string) error {
	if err := l.Advance(a, StatusError, a.Progress); err != nil {
		return err
	}
	a.Message = message
	return nil
}
