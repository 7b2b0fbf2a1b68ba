package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"painfinder/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

The migration system tracks applied migrations in the schema_migrations
table and applies new migrations in sequential order.

Examples:
  painfinder migrate up
  painfinder migrate status`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context())
		},
	}
}

func runMigrateUp(ctx context.Context) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := persistence.NewMigrationManager(db.(*persistence.PostgresDB))
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("✅ All migrations applied successfully")
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := persistence.NewMigrationManager(db.(*persistence.PostgresDB))
	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	applied := 0
	fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")
	for _, m := range status {
		state := "pending"
		if m.Applied {
			state = "applied"
			applied++
		}
		fmt.Printf("%-10d %-10s %s\n", m.Version, state, m.Description)
	}
	fmt.Printf("\nApplied: %d | Pending: %d | Total: %d\n", applied, len(status)-applied, len(status))
	return nil
}
