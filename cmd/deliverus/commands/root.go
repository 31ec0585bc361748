package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/deliverus/deliverus-schema/pkg/migration"
	_ "github.com/deliverus/deliverus-schema/pkg/migrations" // registers units
	"github.com/deliverus/deliverus-schema/pkg/registry"
	"github.com/deliverus/deliverus-schema/pkg/runtime"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbURL      string
	envFile    string
	verbose    bool
	jsonOutput bool

	log = logrus.New()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deliverus",
	Short: "DeliverUS schema migrations",
	Long: `deliverus manages the PostgreSQL schema of the DeliverUS backend.

Each migration unit creates or drops one table inside its own transaction,
so a failed run leaves the schema as it was.

The database URL is taken from --db, then DATABASE_URL, then the PG*
variables. A .env file in the working directory is loaded first.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := runtime.LoadEnvFiles(envFile); err != nil {
				return err
			}
		} else if err := runtime.LoadEnvFiles(); err != nil {
			return err
		}

		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.WarnLevel)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		if jsonOutput {
			log.SetFormatter(&logrus.JSONFormatter{})
		}
		return nil
	},
}

// Execute runs the root command
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file instead of .env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// resolveConfig returns the connection settings from the flag or environment.
func resolveConfig() (*runtime.Config, error) {
	if dbURL != "" {
		return &runtime.Config{URL: dbURL}, nil
	}
	return runtime.ConfigFromEnv()
}

// connect opens a pool using the resolved configuration.
func connect(ctx context.Context) (*runtime.DB, error) {
	config, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	db, err := runtime.Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRunner creates a runner with the CLI logger and an initialized
// tracking table.
func newRunner(ctx context.Context, db *runtime.DB) (*migration.Runner, error) {
	runner := migration.NewRunner(db.Pool()).WithLogger(log)
	if err := runner.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return runner, nil
}

func units() []migration.Unit {
	return registry.All()
}
