// internal/platform/postgres/pgtest/pgtest.go

// Package pgtest connects tests to a real PostgreSQL database and skips them
// when none is reachable.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"bloodbank/internal/platform/postgres"
)

// Open connects to the test database described by the PG* environment
// variables and applies the schema. It skips the test if the connection
// cannot be established.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PGHOST", "localhost"),
		getEnv("PGPORT", "5432"),
		getEnv("PGUSER", "user"),
		getEnv("PGPASSWORD", "password"),
		getEnv("PGDATABASE", "testdb"),
	)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("skipping database tests: could not connect to postgres: %v", err)
	}

	if err := postgres.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// SeedHospital inserts a bare hospital row and returns its id.
func SeedHospital(t testing.TB, db *sqlx.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO hospitals (hospital_id, name, phone, address, city, state, postal_code)
		VALUES ($1, $2, '555-0100', '1 Main St', 'Springfield', 'IL', '62701')
	`, id, "Test Hospital "+id.String()[:8])
	if err != nil {
		t.Fatalf("seed hospital: %v", err)
	}
	return id
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
