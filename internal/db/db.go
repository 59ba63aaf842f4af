package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteFileName is the local database file used when no DSN is
// configured. Convenient for local runs; Postgres is the production
// target and the only dialect with vector search.
const SQLiteFileName = "toolscout.db"

// NewDBConnection creates a database connection based on the supplied
// DSN. An empty DSN falls back to a SQLite file in the current
// directory. "sqlite://path" selects a SQLite file explicitly.
func NewDBConnection(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case dsn == "":
		log.Printf("[db] no database URL configured, using local SQLite file %s\n", SQLiteFileName)
		dialector = sqlite.Open(SQLiteFileName)
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", dsn)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return conn, nil
}

// ConfigurePool applies connection pool limits: size base connections,
// overflow extras on top, and a max lifetime so stale connections get
// recycled.
func ConfigurePool(conn *gorm.DB, size, overflow int, recycle time.Duration) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to access the underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(size + overflow)
	sqlDB.SetMaxIdleConns(size)
	sqlDB.SetConnMaxLifetime(recycle)
	return nil
}

// Ping checks database reachability within the caller's deadline.
// Used by the readiness probe.
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsPostgres reports whether the connection speaks the postgres
// dialect. Vector and full-text SQL are gated on this.
func IsPostgres(conn *gorm.DB) bool {
	return conn.Dialector.Name() == "postgres"
}
