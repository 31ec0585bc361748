package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/deliverus/deliverus-schema/cmd/deliverus/output"
	"github.com/deliverus/deliverus-schema/cmd/deliverus/tui"
	"github.com/deliverus/deliverus-schema/pkg/migration"
	"github.com/spf13/cobra"
)

var (
	// Migrate flags
	dryRun      bool
	upSteps     int
	downSteps   int
	interactive bool
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply, revert and inspect the registered migration units.

Subcommands:
  up      - Apply pending migrations
  down    - Revert applied migrations
  status  - Show migration status`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations in version order. Each unit runs in its own
transaction and the run stops at the first failure.

Examples:
  deliverus migrate up                 # Apply all pending migrations
  deliverus migrate up --steps 1       # Apply the next migration
  deliverus migrate up --dry-run       # Print the SQL without applying`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp(cmd.Context())
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert migrations",
	Long: `Revert applied migrations, newest first. Reverting drops tables and
their data.

Examples:
  deliverus migrate down               # Revert the last migration
  deliverus migrate down --steps 2     # Revert the last two migrations
  deliverus migrate down --dry-run     # Print the SQL without reverting`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show the status of every registered migration (pending, applied, failed).

Examples:
  deliverus migrate status
  deliverus migrate status --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateUpCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the SQL without applying")
	migrateUpCmd.Flags().IntVar(&upSteps, "steps", 0, "Number of migrations to apply (0 applies all)")

	migrateDownCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateDownCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the SQL without reverting")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "Number of migrations to revert")
}

func runMigrateUp(ctx context.Context) error {
	if interactive {
		return runInteractive(ctx, tui.ActionUp)
	}

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := newRunner(ctx, db)
	if err != nil {
		return err
	}

	if dryRun {
		pending, err := runner.Pending(ctx, units())
		if err != nil {
			return err
		}
		if upSteps > 0 && upSteps < len(pending) {
			pending = pending[:upSteps]
		}
		return previewUnits(ctx, "The following migrations would be applied:", pending, migration.PlanApply)
	}

	if err := runner.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = runner.Unlock(ctx) }()

	output.Section("Applying Migrations")
	applied, err := runner.Up(ctx, units(), upSteps)
	for _, unit := range applied {
		output.Success("Applied %s - %s", unit.Version(), unit.Name())
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	if len(applied) == 0 {
		output.Info("No pending migrations")
		return nil
	}

	fmt.Fprintln(output.Out)
	output.Success("Successfully applied %d migration(s)", len(applied))
	return nil
}

func runMigrateDown(ctx context.Context) error {
	if interactive {
		return runInteractive(ctx, tui.ActionDown)
	}

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := newRunner(ctx, db)
	if err != nil {
		return err
	}

	if dryRun {
		applied, err := runner.AppliedVersions(ctx)
		if err != nil {
			return err
		}
		sorted := migration.SortUnits(units())
		var toRevert []migration.Unit
		for i := len(sorted) - 1; i >= 0 && len(toRevert) < max(downSteps, 1); i-- {
			if applied[sorted[i].Version()] {
				toRevert = append(toRevert, sorted[i])
			}
		}
		return previewUnits(ctx, "The following migrations would be reverted:", toRevert, migration.PlanRevert)
	}

	if err := runner.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = runner.Unlock(ctx) }()

	output.Section("Reverting Migrations")
	reverted, err := runner.Down(ctx, units(), downSteps)
	for _, unit := range reverted {
		output.Success("Reverted %s - %s", unit.Version(), unit.Name())
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	if len(reverted) == 0 {
		output.Info("No migrations to revert")
		return nil
	}

	fmt.Fprintln(output.Out)
	output.Success("Successfully reverted %d migration(s)", len(reverted))
	return nil
}

type planFunc func(context.Context, migration.Unit) ([]string, error)

func previewUnits(ctx context.Context, header string, toRun []migration.Unit, plan planFunc) error {
	if len(toRun) == 0 {
		output.Info("Nothing to do")
		return nil
	}

	output.Section("DRY RUN - Preview")
	output.Info("%s", header)
	for _, unit := range toRun {
		output.Section(fmt.Sprintf("%s - %s", unit.Version(), unit.Name()))
		statements, err := plan(ctx, unit)
		if err != nil {
			return err
		}
		output.SQL(statements)
	}
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := newRunner(ctx, db)
	if err != nil {
		return err
	}

	status, err := runner.Status(ctx, units())
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(output.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	printStatusTable(status)
	return nil
}

func printStatusTable(status []migration.MigrationRecord) {
	w := tabwriter.NewWriter(output.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	_, _ = fmt.Fprintln(w, "-------\t----\t------\t----------")

	counts := make(map[migration.MigrationStatus]int)
	for _, record := range status {
		counts[record.Status]++

		appliedAt := "N/A"
		if record.AppliedAt != nil {
			appliedAt = record.AppliedAt.Format("2006-01-02 15:04:05")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n",
			record.Version,
			record.Name,
			output.StatusIcon(string(record.Status)),
			record.Status,
			appliedAt,
		)
	}
	_ = w.Flush()

	summary := fmt.Sprintf("\nSummary: %d applied, %d pending",
		counts[migration.StatusApplied], counts[migration.StatusPending])
	if failed := counts[migration.StatusFailed]; failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	output.Plain("%s", summary)

	for _, record := range status {
		if record.Status == migration.StatusFailed && record.Error != nil {
			output.Error("%s: %s", record.Version, *record.Error)
		}
	}
}

func runInteractive(ctx context.Context, action tui.Action) error {
	config, err := resolveConfig()
	if err != nil {
		return err
	}
	// The TUI owns the terminal
	if !verbose {
		log.SetOutput(io.Discard)
	}
	return tui.RunMigrateUI(ctx, action, config, units(), log)
}
