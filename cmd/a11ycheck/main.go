// Package main implements the a11ycheck CLI: mobile accessibility audits
// driven by a headless browser, with credit/trial gated usage.
package main

import (
	"fmt"
	"os"

	"a11ycheck/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "a11ycheck",
	Short: "Mobile accessibility auditing for web pages",
	Long: `a11ycheck audits web pages for mobile accessibility: it drives a headless
browser against a target URL under an emulated device profile, runs an
automated WCAG ruleset scan, measures touch-target sizes against the 24px and
44px thresholds, captures CLS and paint timings, and checks mobile-friendliness
heuristics. The four probe results are blended into a single composite score.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./"+config.DefaultFileName+")")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(creditsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
