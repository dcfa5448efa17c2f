// Package incidentlog persists supervisor-observed source crashes to
// Postgres, adapted from the teacher's database connection/repository
// pair but scoped to a single narrow table: this module never persists
// raw events, windows, or aggregates.
package incidentlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ConnectionConfig holds connection pool configuration.
type ConnectionConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConnectionConfig returns sensible defaults for local development.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "pulsecore",
		Password:        "pulsecore",
		Database:        "pulsecore",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// Connection wraps a pooled Postgres connection.
type Connection struct {
	db *sql.DB
}

// Connect opens a connection pool and verifies connectivity.
func Connect(ctx context.Context, cfg ConnectionConfig) (*Connection, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("incidentlog: open connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("incidentlog: ping: %w", err)
	}

	return &Connection{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced callers.
func (c *Connection) DB() *sql.DB { return c.db }

// Close closes the pool.
func (c *Connection) Close() error { return c.db.Close() }
