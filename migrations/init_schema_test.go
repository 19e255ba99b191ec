package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nonsonwune/colegio_db/config"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchemaSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, InitSchema(ctx, db, config.DriverSQLite))
	// applying twice is a no-op
	require.NoError(t, InitSchema(ctx, db, config.DriverSQLite))

	_, err := db.ExecContext(ctx, `INSERT INTO fact_records (position, id, student_id, subject, record_type, record_date) VALUES (0, 'f1', 'S1', 'math', 'grade', '2024-04-02T00:00:00Z')`)
	assert.NoError(t, err)
}

func TestVerifySchemaMissingTable(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	err := VerifySchema(ctx, db, config.DriverSQLite)
	assert.ErrorContains(t, err, "required table students does not exist")
}

func TestVerifySchemaUnknownDriver(t *testing.T) {
	err := VerifySchema(context.Background(), openSQLite(t), "mysql")
	assert.ErrorIs(t, err, config.ErrUnknownDriver)
}
