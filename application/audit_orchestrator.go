package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vulnwatch/domain/audits"
	"vulnwatch/domain/contracts"
	"vulnwatch/domain/events"
	"vulnwatch/domain/findings"
	"vulnwatch/logging"
)

// StageUpdate carries one advance call from the analysis producer.
type StageUpdate struct {
	Status                 audits.Status
	Progress               int
	Message                string
	CurrentStep            string
	EstimatedTimeRemaining *int
}

// AuditOrchestrator drives audit lifecycles: it serializes transitions per
// audit, persists accepted state changes, and hands the resulting events to
// the broadcaster. It also serves current-state snapshots for late-joining
// observers.
type AuditOrchestrator struct {
	repo      contracts.AuditRepository
	publisher events.Publisher
	lifecycle *audits.Lifecycle
	factory   *audits.Factory
	logger    *logging.Logger

	// Per-audit critical sections. Transitions for one audit are serialized;
	// different audits never contend.
	mu         sync.Mutex
	auditLocks map[string]*sync.Mutex
}

// NewAuditOrchestrator creates an orchestrator.
func NewAuditOrchestrator(repo contracts.AuditRepository, publisher events.Publisher) *AuditOrchestrator {
	return &AuditOrchestrator{
		repo:       repo,
		publisher:  publisher,
		lifecycle:  audits.NewLifecycle(),
		factory:    audits.NewFactory(),
		logger:     logging.Default().WithComponent("audit_orchestrator"),
		auditLocks: make(map[string]*sync.Mutex),
	}
}

// CreateAudit registers a new audit in STARTED and publishes its baseline
// event so the topic has a retained snapshot from the first moment.
func (o *AuditOrchestrator) CreateAudit(ctx context.Context, ownerID, subjectName string) (*audits.Audit, error) {
	audit := o.factory.New(ownerID, subjectName)
	if err := o.repo.CreateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to create audit: %w", err)
	}

	o.publisher.PublishProgress(events.ProgressEvent{
		AuditID:  audit.ID,
		Status:   audit.Status,
		Progress: audit.Progress,
		Message:  audit.Message,
	})

	o.logger.Audit("Audit created", audit.ID)
	return audit, nil
}

// Advance applies one transition from the analysis producer. Accepted
// transitions are persisted and broadcast in order; rejected ones leave the
// audit unchanged and return the error to the caller.
func (o *AuditOrchestrator) Advance(ctx context.Context, auditID string, update StageUpdate) (*audits.Audit, error) {
	lock := o.lockFor(auditID)
	lock.Lock()
	defer lock.Unlock()

	audit, err := o.repo.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}

	if update.Status == audits.StatusError {
		if err := o.lifecycle.Fail(audit, update.Message); err != nil {
			return nil, err
		}
	} else {
		if err := o.lifecycle.Advance(audit, update.Status, update.Progress); err != nil {
			return nil, err
		}
		if update.Message != "" {
			audit.Message = update.Message
		}
	}

	if err := o.repo.SaveAuditState(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to save audit state: %w", err)
	}

	o.publishTransition(audit, update)

	if audit.Status.IsTerminal() {
		o.releaseLock(auditID)
	}
	return audit, nil
}

// Fail moves the audit to ERROR with the producer's failure message.
func (o *AuditOrchestrator) Fail(ctx context.Context, auditID, message string) (*audits.Audit, error) {
	return o.Advance(ctx, auditID, StageUpdate{
		Status:  audits.StatusError,
		Message: message,
	})
}

// AttachFindings appends findings from the analysis producer. Severities are
// validated here, at the boundary, so scoring never sees malformed input.
func (o *AuditOrchestrator) AttachFindings(ctx context.Context, auditID string, list []findings.Finding) error {
	lock := o.lockFor(auditID)
	lock.Lock()
	defer lock.Unlock()

	audit, err := o.repo.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if err := audit.AttachFindings(list); err != nil {
		return err
	}
	if err := o.repo.SaveFindings(ctx, auditID, list); err != nil {
		return fmt.Errorf("failed to save findings: %w", err)
	}

	o.logger.Audit("Findings attached", auditID, slog.Int("count", len(list)))
	return nil
}

// GetAudit loads an audit for read-only surfaces.
func (o *AuditOrchestrator) GetAudit(ctx context.Context, auditID string) (*audits.Audit, error) {
	return o.repo.GetAudit(ctx, auditID)
}

// Snapshot builds the synthetic catch-up event for a subscribing observer,
// reflecting the audit's stored state. Implements the broadcaster's
// SnapshotSource.
func (o *AuditOrchestrator) Snapshot(auditID string) (events.Event, error) {
	audit, err := o.repo.GetAudit(context.Background(), auditID)
	if err != nil {
		return nil, err
	}

	switch audit.Status {
	case audits.StatusCompleted:
		return completedEvent(audit), nil
	case audits.StatusError:
		return failedEvent(audit), nil
	default:
		return events.ProgressEvent{
			AuditID:  audit.ID,
			Status:   audit.Status,
			Progress: audit.Progress,
			Message:  audit.Message,
		}, nil
	}
}

func (o *AuditOrchestrator) publishTransition(audit *audits.Audit, update StageUpdate) {
	switch audit.Status {
	case audits.StatusCompleted:
		o.publisher.PublishCompleted(completedEvent(audit))
		o.logger.Audit("Audit completed", audit.ID)
	case audits.StatusError:
		o.publisher.PublishFailed(failedEvent(audit))
		o.logger.Audit("Audit failed", audit.ID)
	default:
		o.publisher.PublishProgress(events.ProgressEvent{
			AuditID:                audit.ID,
			Status:                 audit.Status,
			Progress:               audit.Progress,
			Message:                audit.Message,
			CurrentStep:            update.CurrentStep,
			EstimatedTimeRemaining: update.EstimatedTimeRemaining,
		})
	}
}

func completedEvent(audit *audits.Audit) events.CompletedEvent {
	duration, _ := audit.DurationSeconds()
	event := events.CompletedEvent{
		AuditID: audit.ID,
		Result: events.CompletedResult{
			DurationSeconds: duration,
			Findings:        audit.Counts(),
		},
		Timestamp: time.Now(),
	}
	if audit.CompletedAt != nil {
		event.Timestamp = *audit.CompletedAt
	}
	if audit.Result != nil {
		event.Result.OverallScore = audit.Result.Score
		event.Result.RiskLevel = audit.Result.Risk
	}
	return event
}

func failedEvent(audit *audits.Audit) events.FailedEvent {
	message := audit.Message
	if message == "" {
		message = "audit failed"
	}
	event := events.FailedEvent{
		AuditID:   audit.ID,
		Error:     message,
		Timestamp: time.Now(),
	}
	if audit.CompletedAt != nil {
		event.Timestamp = *audit.CompletedAt
	}
	return event
}

func (o *AuditOrchestrator) lockFor(auditID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.auditLocks[auditID]
	if !ok {
		lock = &sync.Mutex{}
		o.auditLocks[auditID] = lock
	}
	return lock
}

// releaseLock drops the per-audit lock entry once the audit is terminal.
// Callers still holding the mutex finish normally; a fresh entry would only
// be created by another operation on the same (now terminal) audit, which
// the lifecycle rejects anyway.
func (o *AuditOrchestrator) releaseLock(auditID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.auditLocks, auditID)
}
