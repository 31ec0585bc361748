package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deliverus/deliverus-schema/cmd/deliverus/output"
	"github.com/deliverus/deliverus-schema/pkg/migration"
	"github.com/deliverus/deliverus-schema/pkg/migrations"
	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/deliverus/deliverus-schema/pkg/schema"
	"github.com/spf13/cobra"
)

var (
	// Schema flags
	downSQL bool
	outDir  string
)

// errDrift makes verify exit non-zero without repeating the report.
var errDrift = errors.New("schema drift detected")

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the declared schema",
}

var schemaSQLCmd = &cobra.Command{
	Use:   "sql",
	Short: "Print the SQL of every migration",
	Long: `Print the statements each migration runs, without a database.

Examples:
  deliverus schema sql                 # CREATE statements
  deliverus schema sql --down          # DROP statements
  deliverus schema sql --out ./sql     # Write {version}_{name}.up.sql/.down.sql files`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchemaSQL(cmd.Context())
	},
}

var schemaVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare the live database with the declared tables",
	Long: `Introspect every declared table and report columns, keys and enum
values that differ. Exits non-zero when anything differs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchemaVerify(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaSQLCmd, schemaVerifyCmd)

	schemaSQLCmd.Flags().BoolVar(&downSQL, "down", false, "Print the revert statements")
	schemaSQLCmd.Flags().StringVar(&outDir, "out", "", "Write script files into this directory")
}

func runSchemaSQL(ctx context.Context) error {
	if outDir != "" {
		files, err := migration.NewGenerator(outDir).GenerateAll(ctx, units())
		if err != nil {
			return err
		}
		for _, file := range files {
			output.Success("Wrote %s", file.UpPath)
			output.Success("Wrote %s", file.DownPath)
		}
		return nil
	}

	plan := migration.PlanApply
	if downSQL {
		plan = migration.PlanRevert
	}

	for _, unit := range migration.SortUnits(units()) {
		statements, err := plan(ctx, unit)
		if err != nil {
			return err
		}
		output.Plain("%s", migration.RenderScript(unit, statements))
	}
	return nil
}

type verifyResult struct {
	Table   string   `json:"table"`
	Missing bool     `json:"missing"`
	Drift   []string `json:"drift"`
}

func runSchemaVerify(ctx context.Context) error {
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := verifyTables(ctx, migration.NewIntrospector(db.Pool()), migrations.Tables())
	if err != nil {
		return err
	}

	drifted := false
	for _, result := range results {
		if result.Missing || len(result.Drift) > 0 {
			drifted = true
		}
	}

	if jsonOutput {
		if err := json.NewEncoder(output.Out).Encode(results); err != nil {
			return err
		}
	} else {
		for _, result := range results {
			switch {
			case result.Missing:
				output.Warning("%s does not exist", result.Table)
			case len(result.Drift) == 0:
				output.Success("%s matches its definition", result.Table)
			default:
				output.Error("%s differs from its definition", result.Table)
				for _, line := range result.Drift {
					output.Muted("  %s", line)
				}
			}
		}
	}

	if drifted {
		return errDrift
	}
	return nil
}

func verifyTables(ctx context.Context, introspector *migration.Introspector, tables []*schema.TableMetadata) ([]verifyResult, error) {
	differ := migration.NewDiffer()

	results := make([]verifyResult, 0, len(tables))
	for _, declared := range tables {
		live, err := introspector.IntrospectTable(ctx, declared.Name)
		if errors.Is(err, runtime.ErrNotFound) {
			results = append(results, verifyResult{Table: declared.Name, Missing: true, Drift: []string{}})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s: %w", declared.Name, err)
		}

		diff := differ.CompareTable(declared, live)
		drift := diff.Describe()
		if drift == nil {
			drift = []string{}
		}
		results = append(results, verifyResult{Table: declared.Name, Drift: drift})
		log.WithField("table", declared.Name).WithField("differences", len(drift)).Debug("verified table")
	}
	return results, nil
}
