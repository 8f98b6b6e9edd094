package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/shoruichecker/internal/app"
	"github.com/xxxsen/shoruichecker/internal/config"
	"github.com/xxxsen/shoruichecker/internal/runner"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "shoruichecker",
		Short:         "document consistency checker backed by a model CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
	rootCmd.AddCommand(
		newServeCmd(),
		newAnalyzeCmd(),
		newHistoryCmd(),
		newPDFCmd(),
		newGuidelinesCmd(),
		newReviewCmd(),
		newCheckCmd(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Debug("config loaded",
		zap.String("config", configPath),
		zap.String("backend", cfg.Runner.Backend),
		zap.String("data_dir", cfg.DataDir),
	)
	return cfg, nil
}

func newRunner(cfg *config.Config) (runner.Runner, error) {
	r, err := runner.New(cfg.Runner.Backend, runner.Options{
		CLIPath:      cfg.Runner.CLIPath,
		APIKey:       cfg.Runner.APIKey,
		ScratchDir:   cfg.ScratchDir,
		NoiseFilters: cfg.Runner.NoiseFilters,
	})
	if err != nil {
		return nil, fmt.Errorf("init runner: %w", err)
	}
	return r, nil
}

// openApp loads the config and builds the application around the configured
// runner. The caller closes it.
func openApp() (*config.Config, *app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	r, err := newRunner(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, r)
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}
