// Package postgres is the Game Repository's storage engine: connection
// pooling, schema migrations, and the bulk ingest pipeline described in the
// repository contract.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	"github.com/ayarotskyi/neochess/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects a pgxpool to databaseURL and applies any pending schema
// migrations before returning. Migration application goes through
// database/sql (goose's requirement), the pool is used for everything else.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	log := logger.FromContext(ctx).WithPrefix("postgres")

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug("applying migrations")
	if err := applyMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("database ready")
	return pool, nil
}

func applyMigrations(databaseURL string) error {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(conn, "migrations")
}
