// Package main is the entry point for the nostrgit command line tool, a
// thin wrapper over the facade package's discover/push operations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chebizarro/nostr-git-sub004/consts"
	"github.com/chebizarro/nostr-git-sub004/internal/config"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
	"github.com/chebizarro/nostr-git-sub004/pkg/telemetry"
)

// Build information, set via -ldflags at build time and mirrored into
// consts so every package can report it without importing cmd/nostrgit.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nostrgit",
	Short: "nostrgit bridges git repositories with the NIP-34 signed-event network",
	Long: `nostrgit discovers repository announcements and state on Nostr relays,
materializes and keeps workspaces synced against vendor git hosts, and
coordinates pushes across every clone URL a repo announces.`,
}

func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nostrgit %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

// loadConfig loads the configuration file named by --config (or the
// package default path when unset) and initializes logging/telemetry.
func loadConfig() (*config.Config, func(), error) {
	path := configPath
	if path == "" {
		path = "./config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Sync()
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", zap.Error(err))
		}
		logger.Sync()
	}

	return cfg, cleanup, nil
}
