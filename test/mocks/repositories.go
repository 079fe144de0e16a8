package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"vulnwatch/domain/audits"
	"vulnwatch/domain/contracts"
	"vulnwatch/domain/findings"
)

// MockAuditRepository implements contracts.AuditRepository for testing
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) CreateAudit(ctx context.Context, audit *audits.Audit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockAuditRepository) GetAudit(ctx context.Context, auditID string) (*audits.Audit, error) {
	args := m.Called(ctx, auditID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audits.Audit), args.Error(1)
}

func (m *MockAuditRepository) SaveAuditState(ctx context.Context, audit *audits.Audit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockAuditRepository) SaveFindings(ctx context.Context, auditID string, list []findings.Finding) error {
	args := m.Called(ctx, auditID, list)
	return args.Error(0)
}

func (m *MockAuditRepository) ListFindings(ctx context.Context, auditID string) ([]findings.Finding, error) {
	args := m.Called(ctx, auditID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]findings.Finding), args.Error(1)
}

func (m *MockAuditRepository) QueryCompletedAudits(ctx context.Context, ownerID string, cutoff time.Time, page contracts.Page) ([]*audits.Audit, error) {
	args := m.Called(ctx, ownerID, cutoff, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audits.Audit), args.Error(1)
}
