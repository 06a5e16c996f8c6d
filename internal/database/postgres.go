package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

func ConnectDB(dbUrl string, opts ...func(*pgxpool.Config)) error {
	var err error
	config, err := pgxpool.ParseConfig(normalizeDSN(dbUrl))
	if err != nil {
		return fmt.Errorf("unable to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	for _, opt := range opts {
		if opt != nil {
			opt(config)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	DB, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := DB.Ping(ctx); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("unable to ping database: %w", err)
	}

	fmt.Println("Connected to PostgreSQL successfully")
	return nil
}

// WithMaxConns overrides the pool size; the worker runs with fewer
// connections than the API.
func WithMaxConns(n int32) func(*pgxpool.Config) {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
			if cfg.MinConns > n {
				cfg.MinConns = n
			}
		}
	}
}

func CloseDB() {
	if DB != nil {
		DB.Close()
	}
}

// normalizeDSN strips driver suffixes such as "+asyncpg" that pgx rejects.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	s = strings.Replace(s, "postgresql+asyncpg://", "postgresql://", 1)
	s = strings.Replace(s, "postgres+asyncpg://", "postgres://", 1)
	s = strings.Replace(s, "postgresql+pgx://", "postgresql://", 1)
	s = strings.Replace(s, "postgres+pgx://", "postgres://", 1)
	return s
}
