// CLAUDE:SUMMARY Cobra command tree for the baseline CLI: config loading, logging setup, store wiring shared by subcommands.
// Package cli implements the baseline command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/baseline/internal/config"
)

// app carries state shared by subcommands once the root pre-run has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	dataDir    string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "baseline",
		Short: "Collect and verify baseline captures of public web endpoints",
		Long: "Fetches URLs under a bounded policy, stores snapshots, and records every\n" +
			"attempt in a hash-chained ledger that can be verified offline.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", env("BASELINE_CONFIG", ""), "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", env("BASELINE_LOG_LEVEL", ""), "debug | info | warn | error (overrides config)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", env("BASELINE_DATA_DIR", ""), "data directory (overrides config)")

	root.AddCommand(
		newCollectCmd(a),
		newVerifyCmd(a),
		newURLsCmd(a),
		newSimilarityCmd(a),
		newHistoryCmd(a),
		newStatsCmd(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	if a.configPath != "" {
		cfg, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		a.cfg = config.Default()
	}
	if a.dataDir != "" {
		a.cfg = a.cfg.WithDataDir(a.dataDir)
	}

	level := a.cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(a.logger)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
