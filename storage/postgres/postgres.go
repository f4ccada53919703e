package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/helioswap/dca-engine/storage"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type PostgresBackend struct {
	pool *pgxpool.Pool
}

var _ storage.DatabaseStorage = (*PostgresBackend)(nil)

func NewPostgresBackend(dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("fail to create connection pool, err: %w", err)
	}

	backend := &PostgresBackend{pool: pool}
	if err := backend.Migrate(); err != nil {
		return nil, fmt.Errorf("fail to migrate database, err: %w", err)
	}
	return backend, nil
}

func (p *PostgresBackend) Migrate() error {
	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("fail to set dialect, err: %w", err)
	}

	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return goose.Up(db, "migrations")
}

func (p *PostgresBackend) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
