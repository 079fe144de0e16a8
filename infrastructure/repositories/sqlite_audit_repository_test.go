package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnwatch/database"
	"vulnwatch/domain/audits"
	"vulnwatch/domain/contracts"
	"vulnwatch/domain/findings"
	"vulnwatch/logging"
)

func newTestRepository(t *testing.T) *SqliteAuditRepository {
	t.Helper()

	cfg := database.Config{
		Path:              filepath.Join(t.TempDir(), "vulnwatch_test.db"),
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   time.Minute,
		ConnMaxIdleTime:   time.Minute,
		BusyTimeoutMs:     1000,
		EnableForeignKeys: true,
		EnableWAL:         true,
	}

	db, err := database.New(cfg, logging.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSqliteAuditRepository(db)
}

func storedAudit(id, ownerID string, createdAt time.Time) *audits.Audit {
	return &audits.Audit{
		ID:          id,
		OwnerID:     ownerID,
		SubjectName: "svc-" + id,
		Status:      audits.StatusStarted,
		Progress:    0,
		Message:     "Audit started",
		CreatedAt:   createdAt,
	}
}

func TestSqliteAuditRepository_CreateAndGet_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateAudit(ctx, storedAudit("audit-1", "owner-1", createdAt)))

	loaded, err := repo.GetAudit(ctx, "audit-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", loaded.OwnerID)
	assert.Equal(t, audits.StatusStarted, loaded.Status)
	assert.True(t, loaded.CreatedAt.Equal(createdAt))
	assert.Nil(t, loaded.CompletedAt)
	assert.Nil(t, loaded.Result)
	assert.Empty(t, loaded.Findings)
}

func TestSqliteAuditRepository_GetAudit_Unknown(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetAudit(context.Background(), "no-such-audit")

	assert.ErrorIs(t, err, contracts.ErrUnknownAudit)
}

func TestSqliteAuditRepository_SaveAuditState_PersistsOutcome(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	completedAt := createdAt.Add(42 * time.Second)

	audit := storedAudit("audit-1", "owner-1", createdAt)
	require.NoError(t, repo.CreateAudit(ctx, audit))

	audit.Status = audits.StatusCompleted
	audit.Progress = 100
	audit.CompletedAt = &completedAt
	audit.Result = &audits.Result{Score: 45, Risk: findings.RiskHigh}
	require.NoError(t, repo.SaveAuditState(ctx, audit))

	loaded, err := repo.GetAudit(ctx, "audit-1")
	require.NoError(t, err)
	assert.Equal(t, audits.StatusCompleted, loaded.Status)
	require.NotNil(t, loaded.Result)
	assert.Equal(t, 45, loaded.Result.Score)
	assert.Equal(t, findings.RiskHigh, loaded.Result.Risk)
	require.NotNil(t, loaded.CompletedAt)

	duration, ok := loaded.DurationSeconds()
	require.True(t, ok)
	assert.Equal(t, int64(42), duration)
}

func TestSqliteAuditRepository_SaveAuditState_Unknown(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.SaveAuditState(context.Background(), storedAudit("ghost", "owner-1", time.Now()))

	assert.ErrorIs(t, err, contracts.ErrUnknownAudit)
}

func TestSqliteAuditRepository_SaveAndListFindings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateAudit(ctx, storedAudit("audit-1", "owner-1", time.Now().UTC())))

	list := []findings.Finding{
		{Severity: findings.SeverityCritical, Category: "injection", Title: "SQL injection"},
		{Severity: findings.SeverityLow, Category: "config", Title: "Verbose errors"},
	}
	require.NoError(t, repo.SaveFindings(ctx, "audit-1", list))

	loaded, err := repo.ListFindings(ctx, "audit-1")
	require.NoError(t, err)
	assert.Equal(t, list, loaded)

	err = repo.SaveFindings(ctx, "no-such-audit", list)
	assert.ErrorIs(t, err, contracts.ErrUnknownAudit)
}

func TestSqliteAuditRepository_QueryCompletedAudits_FiltersAndOrders(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	seed := []struct {
		id        string
		owner     string
		createdAt time.Time
		status    audits.Status
	}{
		{"recent-done", "owner-1", now.AddDate(0, 0, -2), audits.StatusCompleted},
		{"older-done", "owner-1", now.AddDate(0, 0, -5), audits.StatusCompleted},
		{"failed", "owner-1", now.AddDate(0, 0, -3), audits.StatusError},
		{"too-old", "owner-1", now.AddDate(0, 0, -60), audits.StatusCompleted},
		{"running", "owner-1", now.AddDate(0, 0, -1), audits.StatusDetecting},
		{"other-owner", "owner-2", now.AddDate(0, 0, -1), audits.StatusCompleted},
	}
	for _, s := range seed {
		audit := storedAudit(s.id, s.owner, s.createdAt)
		require.NoError(t, repo.CreateAudit(ctx, audit))
		if s.status != audits.StatusStarted {
			audit.Status = s.status
			if s.status.IsTerminal() {
				completedAt := s.createdAt.Add(time.Minute)
				audit.CompletedAt = &completedAt
				if s.status == audits.StatusCompleted {
					audit.Result = &audits.Result{Score: 80, Risk: findings.RiskMedium}
				}
			}
			require.NoError(t, repo.SaveAuditState(ctx, audit))
		}
	}

	cutoff := now.AddDate(0, 0, -30)
	list, err := repo.QueryCompletedAudits(ctx, "owner-1", cutoff, contracts.Page{Limit: 10})
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"recent-done", "failed", "older-done"}, ids,
		"terminal audits for the owner inside the window, newest first")
}

func TestSqliteAuditRepository_QueryCompletedAudits_Pagination(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		audit := storedAudit(string(rune('a'+i)), "owner-1", now.Add(-time.Duration(i)*time.Hour))
		require.NoError(t, repo.CreateAudit(ctx, audit))
		audit.Status = audits.StatusCompleted
		completedAt := audit.CreatedAt.Add(time.Minute)
		audit.CompletedAt = &completedAt
		audit.Result = &audits.Result{Score: 90, Risk: findings.RiskLow}
		require.NoError(t, repo.SaveAuditState(ctx, audit))
	}

	cutoff := now.AddDate(0, 0, -30)
	first, err := repo.QueryCompletedAudits(ctx, "owner-1", cutoff, contracts.Page{Limit: 2})
	require.NoError(t, err)
	second, err := repo.QueryCompletedAudits(ctx, "owner-1", cutoff, contracts.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Equal(t, "a", first[0].ID, "newest created first")
}
