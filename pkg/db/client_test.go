package db

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&testModel{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "kept"}).Error
	}))
	assert.EqualValues(t, 1, countRows(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&testModel{Name: "dropped"}).Error)
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, countRows(t, conn))
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn, txRetries: 2}

	attempts := 0
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&testModel{Name: "row"}).Error; err != nil {
			return err
		}
		if attempts == 1 {
			return &pgconn.PgError{Code: pgSerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.EqualValues(t, 1, countRows(t, conn), "aborted attempt must roll back")
}

func TestWithTxGivesUpAfterRetries(t *testing.T) {
	client := &Client{conn: newTestDB(t), txRetries: 1}

	attempts := 0
	err := client.WithTx(context.Background(), func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: pgDeadlockDetected}
	})
	require.Error(t, err)
	assert.True(t, IsRetryableTx(err))
	assert.Equal(t, 2, attempts)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	client := &Client{conn: newTestDB(t), txRetries: 3}

	attempts := 0
	err := client.WithTx(context.Background(), func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: pgUniqueViolation}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestNewOpensSQLiteAndPings(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{DSN: "file::memory:", MaxOpenConns: 1}, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, DialectSQLite, client.Dialect())
	assert.NoError(t, client.Ping(context.Background()))
	sqlDB, err := client.SQL()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{DSN: "  "}, true, nil)
	assert.Error(t, err)
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: newQueryLogger(logg, 1)})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))

	buf.Reset()
	var row testModel
	err = conn.First(&row).Error
	require.True(t, IsNotFound(err))
	assert.NotContains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	require.Error(t, conn.Exec("SELECT * FROM missing_table").Error)
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "missing_table")
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm duplicated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "sqlite message", err: errors.New("UNIQUE constraint failed: points_ledger.user_id"), want: true},
		{name: "postgres code", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "orders_code_key"}, want: true},
		{name: "postgres other constraint", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_email_key"}, constraint: "orders_code_key", want: false},
		{name: "postgres other code", err: &pgconn.PgError{Code: pgSerializationFailure}, want: false},
		{name: "other", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestForUpdateLeavesSQLiteQueriesUnlocked(t *testing.T) {
	var rows []testModel
	assert.NoError(t, ForUpdate(newTestDB(t)).Find(&rows).Error)
}
