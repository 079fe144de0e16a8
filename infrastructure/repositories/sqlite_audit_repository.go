package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vulnwatch/database"
	"vulnwatch/domain/audits"
	"vulnwatch/domain/contracts"
	"vulnwatch/domain/findings"
	"vulnwatch/logging"
)

// SqliteAuditRepository implements contracts.AuditRepository on SQLite.
// Writes go through the database's serialized write connection; reads use
// the pooled read connection.
type SqliteAuditRepository struct {
	db     *database.Database
	logger *logging.Logger
}

// NewSqliteAuditRepository creates an audit repository.
func NewSqliteAuditRepository(db *database.Database) *SqliteAuditRepository {
	return &SqliteAuditRepository{
		db:     db,
		logger: logging.Default().WithComponent("audit_repository"),
	}
}

// CreateAudit persists a newly created audit.
func (r *SqliteAuditRepository) CreateAudit(ctx context.Context, audit *audits.Audit) error {
	_, err := r.db.WriteDB().ExecContext(ctx,
		`INSERT INTO audits (id, owner_id, subject_name, status, progress, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.OwnerID, audit.SubjectName,
		string(audit.Status), audit.Progress, audit.Message, audit.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert audit %s: %w", audit.ID, err)
	}
	return nil
}

// GetAudit loads an audit and its findings.
func (r *SqliteAuditRepository) GetAudit(ctx context.Context, auditID string) (*audits.Audit, error) {
	row := r.db.ReadDB().QueryRowContext(ctx,
		`SELECT id, owner_id, subject_name, status, progress, message,
		        created_at, completed_at, overall_score, risk_level
		 FROM audits WHERE id = ?`, auditID)

	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", contracts.ErrUnknownAudit, auditID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load audit %s: %w", auditID, err)
	}

	audit.Findings, err = r.ListFindings(ctx, auditID)
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// SaveAuditState persists the audit's status, progress and outcome.
func (r *SqliteAuditRepository) SaveAuditState(ctx context.Context, audit *audits.Audit) error {
	var completedAt interface{}
	var score, risk interface{}
	if audit.CompletedAt != nil {
		completedAt = audit.CompletedAt.UTC()
	}
	if audit.Result != nil {
		score = audit.Result.Score
		risk = string(audit.Result.Risk)
	}

	result, err := r.db.WriteDB().ExecContext(ctx,
		`UPDATE audits
		 SET status = ?, progress = ?, message = ?, completed_at = ?, overall_score = ?, risk_level = ?
		 WHERE id = ?`,
		string(audit.Status), audit.Progress, audit.Message,
		completedAt, score, risk, audit.ID)
	if err != nil {
		return fmt.Errorf("failed to update audit %s: %w", audit.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update audit %s: %w", audit.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", contracts.ErrUnknownAudit, audit.ID)
	}
	return nil
}

// SaveFindings appends findings to an audit.
func (r *SqliteAuditRepository) SaveFindings(ctx context.Context, auditID string, list []findings.Finding) error {
	if len(list) == 0 {
		return nil
	}

	var exists int
	err := r.db.ReadDB().QueryRowContext(ctx,
		`SELECT COUNT(1) FROM audits WHERE id = ?`, auditID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check audit %s: %w", auditID, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", contracts.ErrUnknownAudit, auditID)
	}

	tx, err := r.db.WriteDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range list {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO findings (audit_id, severity, category, title) VALUES (?, ?, ?, ?)`,
			auditID, string(f.Severity), f.Category, f.Title); err != nil {
			return fmt.Errorf("failed to insert finding for audit %s: %w", auditID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit findings for audit %s: %w", auditID, err)
	}
	return nil
}

// ListFindings loads the findings attached to an audit.
func (r *SqliteAuditRepository) ListFindings(ctx context.Context, auditID string) ([]findings.Finding, error) {
	rows, err := r.db.ReadDB().QueryContext(ctx,
		`SELECT severity, category, title FROM findings WHERE audit_id = ? ORDER BY id`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings for audit %s: %w", auditID, err)
	}
	defer rows.Close()

	var list []findings.Finding
	for rows.Next() {
		var f findings.Finding
		var severity string
		if err := rows.Scan(&severity, &f.Category, &f.Title); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Severity = findings.Severity(severity)
		list = append(list, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read findings for audit %s: %w", auditID, err)
	}
	return list, nil
}

// QueryCompletedAudits returns terminal audits for an owner created at or
// after cutoff, newest first.
func (r *SqliteAuditRepository) QueryCompletedAudits(ctx context.Context, ownerID string, cutoff time.Time, page contracts.Page) ([]*audits.Audit, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.ReadDB().QueryContext(ctx,
		`SELECT id, owner_id, subject_name, status, progress, message,
		        created_at, completed_at, overall_score, risk_level
		 FROM audits
		 WHERE owner_id = ? AND status IN (?, ?) AND created_at >= ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		ownerID, string(audits.StatusCompleted), string(audits.StatusError),
		cutoff.UTC(), limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed audits: %w", err)
	}
	defer rows.Close()

	var list []*audits.Audit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		list = append(list, audit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read completed audits: %w", err)
	}

	if err := r.attachFindings(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachFindings loads findings for a batch of audits in one query.
func (r *SqliteAuditRepository) attachFindings(ctx context.Context, list []*audits.Audit) error {
	if len(list) == 0 {
		return nil
	}

	byID := make(map[string]*audits.Audit, len(list))
	placeholders := make([]string, 0, len(list))
	args := make([]interface{}, 0, len(list))
	for _, audit := range list {
		byID[audit.ID] = audit
		placeholders = append(placeholders, "?")
		args = append(args, audit.ID)
	}

	query := fmt.Sprintf(
		`SELECT audit_id, severity, category, title FROM findings
		 WHERE audit_id IN (%s) ORDER BY id`,
		strings.Join(placeholders, ","))

	rows, err := r.db.ReadDB().QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load findings batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var auditID, severity string
		var f findings.Finding
		if err := rows.Scan(&auditID, &severity, &f.Category, &f.Title); err != nil {
			return fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Severity = findings.Severity(severity)
		if audit, ok := byID[auditID]; ok {
			audit.Findings = append(audit.Findings, f)
		}
	}
	return rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanAudit.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAudit(row scanner) (*audits.Audit, error) {
	var audit audits.Audit
	var status string
	var completedAt sql.NullTime
	var score sql.NullInt64
	var risk sql.NullString

	err := row.Scan(&audit.ID, &audit.OwnerID, &audit.SubjectName, &status,
		&audit.Progress, &audit.Message, &audit.CreatedAt,
		&completedAt, &score, &risk)
	if err != nil {
		return nil, err
	}

	audit.Status = audits.Status(status)
	if completedAt.Valid {
		at := completedAt.Time
		audit.CompletedAt = &at
	}
	if score.Valid && risk.Valid {
		audit.Result = &audits.Result{
			Score: int(score.Int64),
			Risk:  findings.RiskLevel(risk.String),
		}
	}
	return &audit, nil
}
