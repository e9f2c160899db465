// Package cli provides the command-line interface for redreader.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ppiankov/redreader/internal/config"
	"github.com/ppiankov/redreader/internal/privacy"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "redreader",
	Short: "Browse subreddit media and keep a saved list",
	Long:  "redreader pages through subreddit listings, keeps only image and video posts, and saves items locally or to a saved-collection server.",

	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("redreader %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".redreader", "config directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config directory, falling back to defaults when no
// config file exists yet.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		// Commands that need the config report the error themselves.
		cfg = config.Default()
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	var patterns []string
	if cfg.Privacy.Redact.Enabled {
		patterns = cfg.Privacy.Redact.Patterns
	}
	hook, err := privacy.NewHook(patterns)
	if err != nil {
		return fmt.Errorf("redact patterns: %w", err)
	}
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	log.AddHook(hook)
	return nil
}
