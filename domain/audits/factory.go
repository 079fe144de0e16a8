package audits

import (
	"time"

	"github.com/google/uuid"
)

// Factory creates new audits with proper initialization.
type Factory struct {
	now func() time.Time
}

// NewFactory creates a factory using the system clock.
func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

// NewFactoryWithClock creates a factory with an injectable clock.
func NewFactoryWithClock(now func() time.Time) *Factory {
	return &Factory{now: now}
}

// New creates an audit in the STARTED state with zero progress.
func (f *Factory) New(ownerID, subjectName string) *Audit {
	return &Audit{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		SubjectName: subjectName,
		Status:      StatusStarted,
		Progress:    0,
		Message:     "Audit started",
		CreatedAt:   f.now(),
	}
}
