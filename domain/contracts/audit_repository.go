package contracts

import (
	"context"
	"time"

	"vulnwatch/domain/audits"
	"vulnwatch/domain/findings"
)

// Page bounds a query over completed audits.
type Page struct {
	Limit  int
	Offset int
}

// AuditRepository is the narrow persistence surface the engine depends on.
// The durable store behind it is an external collaborator; the engine never
// sees schema details.
type AuditRepository interface {
	// CreateAudit persists a newly created audit.
	CreateAudit(ctx context.Context, audit *audits.Audit) error

	// GetAudit loads an audit and its findings.
	// Returns ErrUnknownAudit if no audit has that ID.
	GetAudit(ctx context.Context, auditID string) (*audits.Audit, error)

	// SaveAuditState persists the audit's current status, progress and
	// outcome after an accepted transition.
	SaveAuditState(ctx context.Context, audit *audits.Audit) error

	// SaveFindings appends findings to an audit.
	// Returns ErrUnknownAudit if no audit has that ID.
	SaveFindings(ctx context.Context, auditID string, list []findings.Finding) error

	// ListFindings loads the findings attached to an audit.
	ListFindings(ctx context.Context, auditID string) ([]findings.Finding, error)

	// QueryCompletedAudits returns terminal audits for an owner created at or
	// after cutoff, newest first, bounded by page.
	QueryCompletedAudits(ctx context.Context, ownerID string, cutoff time.Time, page Page) ([]*audits.Audit, error)
}
