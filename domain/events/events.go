package events

import (
	"time"

	"vulnwatch/domain/audits"
	"vulnwatch/domain/findings"
)

// Type discriminates the closed set of event variants.
type Type string

const (
	TypeProgress  Type = "progress"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

// Event is one notification delivered to observers of an audit's topic.
// The three variants below are the only implementations.
type Event interface {
	EventType() Type
	TopicID() string
}

// ProgressEvent reports a lifecycle stage change. Ephemeral: delivered to
// live observers and never persisted.
type ProgressEvent struct {
	AuditID                string        `json:"auditId"`
	Status                 audits.Status `json:"status"`
	Progress               int           `json:"progress"`
	Message                string        `json:"message"`
	CurrentStep            string        `json:"currentStep,omitempty"`
	EstimatedTimeRemaining *int          `json:"estimatedTimeRemaining,omitempty"`
}

func (e ProgressEvent) EventType() Type { return TypeProgress }
func (e ProgressEvent) TopicID() string { return e.AuditID }

// CompletedResult is the scored summary attached to a completion event.
type CompletedResult struct {
	OverallScore    int                `json:"overallScore"`
	RiskLevel       findings.RiskLevel `json:"riskLevel"`
	DurationSeconds int64              `json:"durationSeconds"`
	Findings        findings.Counts    `json:"findings"`
}

// CompletedEvent reports that an audit reached COMPLETED.
type CompletedEvent struct {
	AuditID   string          `json:"auditId"`
	Result    CompletedResult `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e CompletedEvent) EventType() Type { return TypeCompleted }
func (e CompletedEvent) TopicID() string { return e.AuditID }

// FailedEvent reports that an audit reached ERROR.
type FailedEvent struct {
	AuditID   string    `json:"auditId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func (e FailedEvent) EventType() Type { return TypeFailed }
func (e FailedEvent) TopicID() string { return e.AuditID }
