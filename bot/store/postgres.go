package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDocuments implements the Documents interface on a PostgreSQL
// table. It is the self-hosted alternative to the host platform's wiki
// pages: one row per page, the whole document as JSONB.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS documents (
//	    page       TEXT PRIMARY KEY,
//	    body       JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresDocuments struct {
	pool *pgxpool.Pool
}

func NewPostgresDocuments(ctx context.Context, connString string) (*PostgresDocuments, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresDocuments{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresDocuments) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			page       TEXT PRIMARY KEY,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (s *PostgresDocuments) Close() {
	s.pool.Close()
}

func (s *PostgresDocuments) Load(ctx context.Context, page string, v any) (bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE page = $1`, page).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresDocuments) Save(ctx context.Context, page string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (page, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (page) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = NOW()
	`, page, body)
	return err
}
