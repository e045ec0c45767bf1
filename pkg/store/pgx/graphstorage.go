package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements the GraphRepository interface on PostgreSQL.
// It relies on the database for concurrency control, so one instance can be
// shared by parallel batch workers.
type GraphDBStorage struct {
	conn pgxIConn
}

// NewGraphDBStorage creates a GraphDBStorage over an existing connection or
// pool.
func NewGraphDBStorage(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{
		conn: conn,
	}
}
