package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/cmd/cli/commands"
	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
	"github.com/jakechorley/shiftplanner/pkg/metrics"
	"github.com/jakechorley/shiftplanner/pkg/postgres"
	"github.com/jakechorley/shiftplanner/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}
	pgDB    *postgres.DB
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shiftplanner",
		Short: "Shift planner CLI - build fair weekly staff schedules",
		Long:  `A CLI tool for generating weekly shift schedules from a team file, comparing penalty weights and serving the solver over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if pgDB != nil {
				pgDB.Close()
			}
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (selects shiftplanner.<env>.yaml and the log file prefix)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")

	// Add all commands
	rootCmd.AddCommand(commands.SolveCmd(app))
	rootCmd.AddCommand(commands.CompareCmd(app))
	rootCmd.AddCommand(commands.HistoryCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.TeamCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, metrics, scheduler and database
func initApp(cmd *cobra.Command) error {
	var err error
	app.Ctx = context.Background()

	// Initialize logger
	app.Logger, err = logging.InitLoggerWithOptions(env, logging.Options{Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Debug("Starting application", zap.String("environment", env))

	// Load configuration
	app.Logger.Debug("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		if !commands.ConfigOptional(cmd) {
			return fmt.Errorf("failed to load config: %w", err)
		}
		app.Logger.Debug("Continuing without configuration", zap.Error(err))
		app.Cfg = nil
	}

	// Initialize metrics
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector())
	recorder, err := metrics.NewPromRecorder(app.Registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	app.Scheduler = scheduler.New(app.Logger, recorder)

	if app.Cfg == nil || app.Cfg.DatabaseURL == "" {
		app.Logger.Debug("No database configured")
		return nil
	}

	// Initialize database
	app.Logger.Info("Connecting to database")
	pgDB, err = postgres.Open(app.Ctx, app.Cfg.DatabaseURL, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	app.Database = pgDB
	app.Logger.Debug("Database initialized successfully")

	return nil
}
