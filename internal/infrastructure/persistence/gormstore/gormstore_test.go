package gormstore_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/gormstore"
)

// detachedPool is a connection pool that is not backed by *sql.DB.
type detachedPool struct{}

func (detachedPool) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, sql.ErrConnDone
}

func (detachedPool) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, sql.ErrConnDone
}

func (detachedPool) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, sql.ErrConnDone
}

func (detachedPool) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func TestSQLDB_ShouldReturnPool(t *testing.T) {
	sqlDB, err := gormstore.SQLDB(openDB(t))
	require.NoError(t, err)
	require.NoError(t, sqlDB.PingContext(context.Background()))
}

func TestSQLDB_WithoutSQLPool_ShouldWrapError(t *testing.T) {
	db := &gorm.DB{Config: &gorm.Config{ConnPool: detachedPool{}}}

	_, err := gormstore.SQLDB(db)
	require.ErrorIs(t, err, gorm.ErrInvalidDB)
	require.ErrorContains(t, err, "gorm sql db")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := gormstore.Open("oracle", "dsn")
	require.ErrorContains(t, err, "unknown driver")
}
