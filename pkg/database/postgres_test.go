package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithRetry(t *testing.T) {
	p := &flakyPinger{failures: 2}
	require.NoError(t, pingWithRetry(context.Background(), p, 3, time.Millisecond))
	assert.Equal(t, 3, p.calls)

	p = &flakyPinger{failures: 5}
	err := pingWithRetry(context.Background(), p, 1, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, p.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p = &flakyPinger{failures: 5}
	assert.ErrorIs(t, pingWithRetry(ctx, p, 3, time.Hour), context.Canceled)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "timetable", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=timetable sslmode=disable", dsn)
}

func TestMigrateAppliesPendingFiles(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	fsys := fstest.MapFS{
		"000001_create_schedules.up.sql":   {Data: []byte("CREATE TABLE schedules (id UUID)")},
		"000001_create_schedules.down.sql": {Data: []byte("DROP TABLE schedules")},
		"000002_add_index.up.sql":          {Data: []byte("CREATE INDEX idx ON schedules (id)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("000001_create_schedules"))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX idx ON schedules").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("000002_add_index").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db, fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000002_add_index"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	fsys := fstest.MapFS{"000001_broken.up.sql": {Data: []byte("CREATE TABLE broken")}}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db, fsys)
	require.Error(t, err)
	assert.Empty(t, applied)
	assert.Contains(t, err.Error(), "apply 000001_broken")
	require.NoError(t, mock.ExpectationsWereMet())
}
