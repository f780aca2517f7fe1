// Package storage is the durable store: the command queue, the inventory
// graph (slots, carriers, cookies), device snapshots and the append-only
// history tables.
package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soham10i/stf-hw/internal/config"
)

//go:embed schema.sql
var schemaSQL string

type PostgresClient struct {
	pool    *pgxpool.Pool
	maxRows int
}

func NewPostgresClient(cfg config.DatabaseConfig, retention config.RetentionConfig) (*PostgresClient, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool, maxRows: retention.MaxRows}, nil
}

// EnsureSchema applies the DDL and seeds fixed configuration rows (slots,
// devices). Idempotent.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return p.seed(ctx)
}

func (p *PostgresClient) Close() {
	p.pool.Close()
}

func (p *PostgresClient) Pool() *pgxpool.Pool {
	return p.pool
}

// Ping is the health-check hook.
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
