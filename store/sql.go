package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nonsonwune/colegio_db/config"
	"github.com/nonsonwune/colegio_db/migrations"
	"github.com/nonsonwune/colegio_db/models"
)

var factColumns = []string{
	"position", "id", "student_id", "course_id", "section_id", "course", "section",
	"subject", "record_type", "record_date", "score", "status", "created_at", "updated_at",
}

// SQL stores everything in a relational database. Postgres and SQLite are
// supported; the driver name selects the dialect.
type SQL struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// NewSQL takes ownership of db, checks the connection and creates the
// schema if needed.
func NewSQL(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) (*SQL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if driver != config.DriverPostgres && driver != config.DriverSQLite {
		db.Close()
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if err := migrations.InitSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQL{db: db, driver: driver, logger: logger.Named("store").With(zap.String("driver", driver))}, nil
}

func (s *SQL) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders into $n for Postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (s *SQL) Get(ctx context.Context) ([]models.FactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, section_id, course, section, subject,
		       record_type, record_date, score, status, created_at, updated_at
		FROM fact_records
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error querying facts: %w", err)
	}
	defer rows.Close()

	var facts []models.FactRecord
	for rows.Next() {
		var (
			f                      models.FactRecord
			date, created, updated string
			score                  sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &f.StudentID, &f.CourseID, &f.SectionID, &f.Course, &f.Section,
			&f.Subject, &f.Type, &date, &score, &f.Status, &created, &updated); err != nil {
			return nil, fmt.Errorf("error scanning fact: %w", err)
		}
		if f.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("fact %s: bad record_date: %w", f.ID, err)
		}
		if f.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("fact %s: bad created_at: %w", f.ID, err)
		}
		if f.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("fact %s: bad updated_at: %w", f.ID, err)
		}
		if score.Valid {
			v := score.Float64
			f.Score = &v
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func factValues(position int, f models.FactRecord) []interface{} {
	var score interface{}
	if f.Score != nil {
		score = *f.Score
	}
	return []interface{}{
		position, f.ID, f.StudentID, f.CourseID, f.SectionID, f.Course, f.Section,
		f.Subject, f.Type, formatTime(f.Date), score, f.Status,
		formatTime(f.CreatedAt), formatTime(f.UpdatedAt),
	}
}

// Put rewrites the collection inside one transaction. Postgres streams the
// rows through COPY; SQLite uses a prepared insert.
func (s *SQL) Put(ctx context.Context, facts []models.FactRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fact_records`); err != nil {
		return fmt.Errorf("error clearing facts: %w", err)
	}

	var query string
	if s.driver == config.DriverPostgres {
		query = pq.CopyIn("fact_records", factColumns...)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(factColumns)), ", ")
		query = fmt.Sprintf("INSERT INTO fact_records (%s) VALUES (%s)", strings.Join(factColumns, ", "), placeholders)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, f := range facts {
		if _, err := stmt.ExecContext(ctx, factValues(i, f)...); err != nil {
			return fmt.Errorf("error writing fact %s: %w", f.ID, err)
		}
	}
	if s.driver == config.DriverPostgres {
		// flush the COPY buffer
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("error flushing facts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	s.logger.Debug("facts written", zap.Int("count", len(facts)))
	return nil
}

func (s *SQL) Students(ctx context.Context) ([]models.Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rut, full_name, course_name, section_name, role
		FROM students
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var st models.Student
		if err := rows.Scan(&st.ID, &st.RUT, &st.FullName, &st.CourseName, &st.SectionName, &st.Role); err != nil {
			return nil, fmt.Errorf("error scanning student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *SQL) Sections(ctx context.Context) ([]models.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, course_name, label
		FROM sections
		ORDER BY course_id, label`)
	if err != nil {
		return nil, fmt.Errorf("error querying sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.ID, &sec.CourseID, &sec.CourseName, &sec.Label); err != nil {
			return nil, fmt.Errorf("error scanning section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *SQL) Aliases(ctx context.Context) ([]models.IDAlias, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, legacy_id, id FROM id_aliases ORDER BY kind, legacy_id`)
	if err != nil {
		return nil, fmt.Errorf("error querying aliases: %w", err)
	}
	defer rows.Close()

	var aliases []models.IDAlias
	for rows.Next() {
		var a models.IDAlias
		if err := rows.Scan(&a.Kind, &a.LegacyID, &a.ID); err != nil {
			return nil, fmt.Errorf("error scanning alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// PutRoster replaces the three roster tables in one transaction.
func (s *SQL) PutRoster(ctx context.Context, r Roster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"students", "sections", "id_aliases"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}

	insert := func(query string, rows [][]interface{}) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(query))
		if err != nil {
			return fmt.Errorf("error preparing statement: %w", err)
		}
		defer stmt.Close()
		for _, values := range rows {
			if _, err := stmt.ExecContext(ctx, values...); err != nil {
				return err
			}
		}
		return nil
	}

	students := make([][]interface{}, 0, len(r.Students))
	for _, st := range r.Students {
		students = append(students, []interface{}{st.ID, st.RUT, st.FullName, st.CourseName, st.SectionName, st.Role})
	}
	if err := insert(`INSERT INTO students (id, rut, full_name, course_name, section_name, role) VALUES (?, ?, ?, ?, ?, ?)`, students); err != nil {
		return fmt.Errorf("error writing students: %w", err)
	}

	sections := make([][]interface{}, 0, len(r.Sections))
	for _, sec := range r.Sections {
		sections = append(sections, []interface{}{sec.ID, sec.CourseID, sec.CourseName, sec.Label})
	}
	if err := insert(`INSERT INTO sections (id, course_id, course_name, label) VALUES (?, ?, ?, ?)`, sections); err != nil {
		return fmt.Errorf("error writing sections: %w", err)
	}

	aliases := make([][]interface{}, 0, len(r.Aliases))
	for _, a := range r.Aliases {
		aliases = append(aliases, []interface{}{a.Kind, a.LegacyID, a.ID})
	}
	if err := insert(`INSERT INTO id_aliases (kind, legacy_id, id) VALUES (?, ?, ?)`, aliases); err != nil {
		return fmt.Errorf("error writing aliases: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	s.logger.Info("roster replaced",
		zap.Int("students", len(r.Students)),
		zap.Int("sections", len(r.Sections)),
		zap.Int("aliases", len(r.Aliases)))
	return nil
}
