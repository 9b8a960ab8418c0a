package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/pkg/db"
)

// DBCmd represents the db command group.
var DBCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database schema",
	Long: `Manage the PostgreSQL schema.

Connection settings come from the NTK_DB_* environment variables
(NTK_DB_HOST, NTK_DB_PORT, NTK_DB_NAME, NTK_DB_USER, NTK_DB_PASSWORD,
NTK_DB_SSLMODE).`,
}

// dbMigrateCmd applies pending migrations.
var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply all pending database migrations.

Migrations are embedded in the binary and applied in order. Each migration
runs in a transaction and is recorded so it is never applied twice.

Examples:
  notetakerd db migrate
  NTK_DB_HOST=db.internal notetakerd db migrate`,
	RunE: runDBMigrate,
}

// dbStatusCmd shows which migrations have been applied.
var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runDBStatus,
}

func init() {
	DBCmd.AddCommand(dbMigrateCmd)
	DBCmd.AddCommand(dbStatusCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	result, err := db.RunMigrations(ctx, pool)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(result.Applied) == 0 {
		fmt.Fprintln(out, "Database is up to date.")
		return nil
	}

	fmt.Fprintf(out, "Applied %d migration(s):\n", len(result.Applied))
	for _, name := range result.Applied {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	statuses, err := db.MigrationStatuses(ctx, pool)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-40s %s\n", "MIGRATION", "APPLIED AT")
	for _, s := range statuses {
		applied := "pending"
		if s.AppliedAt != nil {
			applied = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%-40s %s\n", s.Version, applied)
	}
	return nil
}
