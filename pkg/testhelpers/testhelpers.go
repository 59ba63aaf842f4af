// Package testhelpers provides shared helpers for tests across the
// codebase.
package testhelpers

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/toolscout/toolscout/internal/migrations"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestEmbeddingDimension is the vector length used by tests. Small on
// purpose so fixture vectors stay readable.
const TestEmbeddingDimension = 8

// CreateTestDB creates an in-memory SQLite database with the full
// schema applied.
func CreateTestDB() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// A single connection keeps every query on the same in-memory DB.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrations.Migrate(conn, TestEmbeddingDimension); err != nil {
		return nil, err
	}
	return conn, nil
}

// SetupTestDB is CreateTestDB with the error handled for the caller.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := CreateTestDB()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return conn
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// AssertNotNil fails the test if v is nil.
func AssertNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected a value, got nil")
	}
}
