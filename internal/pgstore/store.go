// Package pgstore runs the unpivot query on PostgreSQL and persists analysis
// results there.
package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed sql/schema.sql
var schemaSQL string

// Store wraps a connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects to the database at connStr and pings it.
func Open(ctx context.Context, connStr string, log zerolog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return New(pool, log), nil
}

// New wraps an existing pool. Close closes it.
func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log.With().Str("component", "pgstore").Logger()}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates the result tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with spaces.
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, " ")
}

func floatToNumeric(f *float64) pgtype.Numeric {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return pgtype.Numeric{Valid: false}
	}
	bf := big.NewFloat(*f)
	text := bf.Text('f', -1)
	var num pgtype.Numeric
	num.Scan(text)
	return num
}
