// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the daily-papers CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/daily-papers/internal/logging"
	"github.com/pdiddy/daily-papers/internal/secrets"
	"github.com/pdiddy/daily-papers/internal/telemetry"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys and webhooks loaded from .secrets/ at startup.
var loadedSecrets secrets.Set

// shutdownTelemetry flushes spans before exit. Set by PersistentPreRunE.
var shutdownTelemetry telemetry.ShutdownFunc

// rootCmd is the base command for the daily-papers CLI.
var rootCmd = &cobra.Command{
	Use:   "daily-papers",
	Short: "Fetch, classify, and report the day's AI papers",
	Long: `daily-papers fetches the papers published on a date from the Hugging Face
daily papers feed (or arXiv), asks a language model to categorize and
summarize each one, and writes per-date reports plus cross-date aggregates.

Runs are resumable: papers that already have a result are skipped, so an
interrupted date picks up where it stopped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s

		logger := logging.New(os.Stderr, viper.GetString("log_level"), viper.GetString("log_format"))
		slog.SetDefault(logger)
		if keys := s.Keys(); len(keys) > 0 {
			logger.Debug("loaded secrets", "keys", keys)
		}

		shutdown, err := telemetry.Setup(cmd.Context(), telemetryConfig(), version)
		if err != nil {
			return err
		}
		shutdownTelemetry = shutdown
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./daily-papers.yaml or ~/.config/daily-papers/daily-papers.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "root directory for metadata, reports, and state")
	rootCmd.PersistentFlags().String("log-level", "info", "diagnostic log level: debug, info, warn, error")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("daily-papers")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "daily-papers"))
		}
	}

	viper.SetEnvPrefix("DAILY_PAPERS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if shutdownTelemetry != nil {
		if serr := shutdownTelemetry(context.WithoutCancel(ctx)); serr != nil {
			slog.Warn("flushing traces", "error", serr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
