// Package database opens the PostgreSQL connection and applies the embedded
// schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/kwai-club/kwai/internal/config"
)

// DriverName is the database/sql driver used for PostgreSQL.
const DriverName = "pgx"

// ErrNoDatabaseURL is returned when database.url is not configured.
var ErrNoDatabaseURL = errors.New("database.url is not set (KWAI_DATABASE_URL)")

// Open opens the database and verifies the connection. Pool limits are
// applied by the server.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, ErrNoDatabaseURL
	}

	db, err := sql.Open(DriverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
