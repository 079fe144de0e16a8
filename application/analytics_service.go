package application

import (
	"context"
	"fmt"
	"time"

	"vulnwatch/domain/analytics"
	"vulnwatch/domain/contracts"
	"vulnwatch/logging"
)

// analyticsQueryLimit caps how many completed audits one summary or export
// reads from the store.
const analyticsQueryLimit = 5000

// AnalyticsService aggregates completed audits into dashboard statistics and
// tabular export rows. Reads through the persistence contract, independent of
// any live subscription.
type AnalyticsService struct {
	repo   contracts.AuditRepository
	now    func() time.Time
	logger *logging.Logger
}

// NewAnalyticsService creates an analytics service using the system clock.
func NewAnalyticsService(repo contracts.AuditRepository) *AnalyticsService {
	return &AnalyticsService{
		repo:   repo,
		now:    time.Now,
		logger: logging.Default().WithComponent("analytics_service"),
	}
}

// Summary computes aggregate statistics for an owner over a time window.
// Unrecognized window tokens fall back to the 30 day default.
func (s *AnalyticsService) Summary(ctx context.Context, ownerID, window string) (analytics.Stats, error) {
	cutoff := analytics.ResolveCutoff(window, s.now())

	list, err := s.repo.QueryCompletedAudits(ctx, ownerID, cutoff, contracts.Page{Limit: analyticsQueryLimit})
	if err != nil {
		return analytics.Stats{}, fmt.Errorf("failed to query completed audits: %w", err)
	}

	return analytics.Summarize(list, cutoff), nil
}

// ExportRows renders one export row per audit for an owner over a time
// window, newest first.
func (s *AnalyticsService) ExportRows(ctx context.Context, ownerID, window string) ([]analytics.ExportRow, error) {
	cutoff := analytics.ResolveCutoff(window, s.now())

	list, err := s.repo.QueryCompletedAudits(ctx, ownerID, cutoff, contracts.Page{Limit: analyticsQueryLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to query completed audits: %w", err)
	}

	return analytics.BuildExportRows(list), nil
}
