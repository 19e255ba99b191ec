package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nonsonwune/colegio_db/config"
	"github.com/nonsonwune/colegio_db/logging"
	"github.com/nonsonwune/colegio_db/store"
)

// app carries what every command needs once PersistentPreRunE has run.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
}

func main() {
	a := &app{}
	if err := a.rootCommand().ExecuteContext(context.Background()); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "colegio_db",
		Short: "Reconcile grade and attendance imports against the school roster",
		Long: `colegio_db imports grade and attendance exports, matches every row to a
roster student and a course section, and merges the results into the fact
store without creating duplicates.

Run without a subcommand to open the interactive menu.`,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMenu(cmd.Context(), os.Stdin)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "config file; environment variables override it")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		a.importCommand(),
		a.analyzeCommand(),
		a.matchCommand(),
		a.purgeCommand(),
		a.repairCommand(),
		a.statsCommand(),
		a.rosterCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	s, err := store.Open(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}

	a.cfg, a.logger, a.store = cfg, logger, s
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.logger != nil {
		// stderr sync fails on some terminals; nothing to recover
		_ = a.logger.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
