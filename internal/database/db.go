package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"datakiln/internal/config"
)

// Connect builds a pgx pool for the configured database and verifies the
// connection with a ping before returning it.
func Connect(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	// url.UserPassword properly encodes credentials with special characters.
	userInfo := url.UserPassword(cfg.User, cfg.Password)
	dsn := fmt.Sprintf(
		"postgres://%s@%s:%s/%s?sslmode=disable",
		userInfo.String(),
		cfg.Host,
		cfg.Port,
		url.PathEscape(cfg.Name),
	)

	log.Printf("Connecting to database: postgres://%s:***@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string (check your .env file): %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection pool established successfully")
	return pool, nil
}
