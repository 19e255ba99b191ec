package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nonsonwune/colegio_db/config"
)

// Tables the stores read and write, in creation order.
var Tables = []string{"students", "sections", "id_aliases", "fact_records"}

// Dates are stored as RFC 3339 text so both dialects round-trip the
// record's own time zone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id           TEXT PRIMARY KEY,
		rut          TEXT NOT NULL DEFAULT '',
		full_name    TEXT NOT NULL DEFAULT '',
		course_name  TEXT NOT NULL DEFAULT '',
		section_name TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sections (
		id          TEXT PRIMARY KEY,
		course_id   TEXT NOT NULL,
		course_name TEXT NOT NULL DEFAULT '',
		label       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS id_aliases (
		kind      TEXT NOT NULL,
		legacy_id TEXT NOT NULL,
		id        TEXT NOT NULL,
		PRIMARY KEY (kind, legacy_id)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_records (
		position    INTEGER PRIMARY KEY,
		id          TEXT NOT NULL,
		student_id  TEXT NOT NULL,
		course_id   TEXT NOT NULL DEFAULT '',
		section_id  TEXT NOT NULL DEFAULT '',
		course      TEXT NOT NULL DEFAULT '',
		section     TEXT NOT NULL DEFAULT '',
		subject     TEXT NOT NULL,
		record_type TEXT NOT NULL,
		record_date TEXT NOT NULL,
		score       DOUBLE PRECISION,
		status      TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL DEFAULT '',
		updated_at  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_records_student ON fact_records (student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_students_rut ON students (rut)`,
}

// InitSchema creates any missing table and then verifies that all of them
// exist.
func InitSchema(ctx context.Context, db *sql.DB, driver string) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return VerifySchema(ctx, db, driver)
}

// VerifySchema checks that every table in Tables exists.
func VerifySchema(ctx context.Context, db *sql.DB, driver string) error {
	var query string
	switch driver {
	case config.DriverPostgres:
		query = `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = current_schema()
				AND table_name = $1
			)`
	case config.DriverSQLite:
		query = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`
	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownDriver, driver)
	}

	for _, table := range Tables {
		var exists bool
		if err := db.QueryRowContext(ctx, query, table).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}
