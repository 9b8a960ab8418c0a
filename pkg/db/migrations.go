package db

import (
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration represents a single database migration.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// MigrationStatusEntry represents a single migration in a status report.
type MigrationStatusEntry struct {
	Version   string
	AppliedAt *time.Time // nil for pending
}

// RunMigrations executes all embedded migration files in version order.
// A schema_migrations tracking table prevents re-running applied migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) (*MigrationResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	result := &MigrationResult{}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			result.Skipped = append(result.Skipped, m.Version)
			continue
		}

		if err := applyMigration(ctx, pool, m); err != nil {
			// Stop on first error so later migrations never run against a
			// partially migrated schema.
			return result, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}

		result.Applied = append(result.Applied, m.Version)
	}

	return result, nil
}

// MigrationStatuses reports each embedded migration with its applied timestamp.
func MigrationStatuses(ctx context.Context, pool *pgxpool.Pool) ([]MigrationStatusEntry, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	appliedAt := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan schema_migrations row: %w", err)
		}
		appliedAt[version] = at
	}

	entries := make([]MigrationStatusEntry, 0, len(migrations))
	for _, m := range migrations {
		entry := MigrationStatusEntry{Version: m.Version}
		if at, ok := appliedAt[m.Version]; ok {
			t := at
			entry.AppliedAt = &t
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ensureMigrationsTable creates the schema migrations tracking table if it doesn't exist.
func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// loadMigrations reads all embedded .sql files sorted by version prefix.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".sql") {
			continue
		}

		data, err := migrationFiles.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(name, filepath.Ext(name)),
			Name:    name,
			SQL:     string(data),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// appliedMigrations returns the set of already applied migration versions.
func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// applyMigration runs a single migration inside a transaction and records it.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit(ctx)
}
