package db

import (
	"context"
	"fmt"

	"github.com/factgraph/backend/internal/util"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool against DATABASE_URL and verifies the
// connection with a ping.
func Connect(ctx context.Context) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}
