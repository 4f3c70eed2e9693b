package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"raqam/internal/cli"
	"raqam/internal/config"
	"raqam/internal/log"
)

var (
	flagTimeout time.Duration
	flagQuiet   bool

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "catchup",
	Short:         "Materialize due occurrences of recurring obligations",
	Long:          "Run, sweep or request catch-ups of recurring obligations and adjust budgets by hand.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cli.LoadEnvFile()

		loaded, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if flagQuiet {
			level = "error"
		}
		logger = cli.SetupLogger(level).WithComponent(log.ComponentCLI)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 5*time.Minute, "Overall deadline for the command")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

// withEngine opens the configured store, wires the engine and runs fn under
// the command deadline.
func withEngine(fn func(ctx context.Context, engine *cli.Engine) error) error {
	store, closeStore, err := cli.OpenStore(logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	return fn(ctx, cli.NewEngine(store, cfg, logger))
}
