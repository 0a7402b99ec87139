// Package main implements the whisker CLI — a thin cobra wrapper around
// the whisker library's compile/import/export/fmt/lint surface (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/writewhisker/whisker-core/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "whisker",
	Short: "whisker — interactive fiction compiler and runtime",
	Long: `whisker compiles WhiskerScript sources to a portable Story IR,
imports/exports between interactive-fiction formats, and hosts the
sandboxed runtime engine described in the Whisker specification.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		base, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logging.SetBase(base)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Get(logging.CategoryEngine).Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(compileCmd, importCmd, exportCmd, fmtCmd, lintCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
