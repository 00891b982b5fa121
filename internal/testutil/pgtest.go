// Package testutil provides shared test infrastructure for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/migrations"
)

// PostgresImage is the container image used when no POSTGRES_URL is given.
const PostgresImage = "postgres:16-alpine"

// PGTest opens a migrated test database and returns it with a cleanup
// function that truncates application tables and releases the database.
//
//	db, cleanup := testutil.PGTest(t)
//	defer cleanup()
//
// POSTGRES_URL points at an existing server. Otherwise, when
// NEXORA_TESTCONTAINERS=1, a throwaway container is started. With neither
// set, or under -short, the test is skipped.
func PGTest(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbURL := os.Getenv("POSTGRES_URL")
	terminate := func() {}

	if dbURL == "" {
		if os.Getenv("NEXORA_TESTCONTAINERS") != "1" {
			t.Skip("POSTGRES_URL not set and NEXORA_TESTCONTAINERS disabled, skipping integration test")
		}
		container, err := tcpostgres.Run(ctx, PostgresImage,
			tcpostgres.WithDatabase("nexora_test"),
			tcpostgres.WithUsername("nexora"),
			tcpostgres.WithPassword("nexora"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("pgtest: start postgres container: %v", err)
		}
		terminate = func() {
			if err := testcontainers.TerminateContainer(container); err != nil {
				t.Logf("pgtest: terminate container: %v", err)
			}
		}
		dbURL, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			terminate()
			t.Fatalf("pgtest: connection string: %v", err)
		}
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		terminate()
		t.Fatalf("pgtest: open database: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		terminate()
		t.Fatalf("pgtest: connect to database: %v", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		terminate()
		t.Fatalf("pgtest: run migrations: %v", err)
	}

	cleanup := func() {
		truncateAll(ctx, db)
		_ = db.Close()
		terminate()
	}

	return db, cleanup
}

// Migrate applies every embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// truncateAll empties application tables between tests. goose's own
// version table is left alone.
func truncateAll(ctx context.Context, db *sql.DB) {
	rows, err := db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		  AND tablename <> 'goose_db_version'
	`)
	if err != nil {
		return
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}

	for _, name := range tables {
		// Table names come from pg_tables, not user input.
		_, _ = db.ExecContext(ctx, "TRUNCATE "+name+" CASCADE")
	}
}
