package database

import "fmt"

// Schema migrations, applied in order on startup. Statements must stay
// idempotent; there is no down path.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS audits (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL,
		subject_name  TEXT NOT NULL,
		status        TEXT NOT NULL,
		progress      INTEGER NOT NULL DEFAULT 0,
		message       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL,
		completed_at  TIMESTAMP,
		overall_score INTEGER,
		risk_level    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_owner_created
		ON audits(owner_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_status ON audits(status)`,
	`CREATE TABLE IF NOT EXISTS findings (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		title    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_audit ON findings(audit_id)`,
}

// runMigrations ensures the schema is up to date
func (d *Database) runMigrations() error {
	for i, stmt := range migrations {
		if _, err := d.writeDB.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	d.logger.Database("Migrations applied", "count", len(migrations))
	return nil
}
