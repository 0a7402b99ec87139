package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/internal/config"
	"github.com/writewhisker/whisker-core/whisker"
)

var (
	lintQuiet       bool
	lintMaxWarnings int
	lintConfigPath  string
)

var lintCmd = &cobra.Command{
	Use:   "lint <file.wsk>...",
	Short: "lint WhiskerScript sources (.whisker-lint.json)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintQuiet, "quiet", false, "suppress warning output, report only the final count")
	lintCmd.Flags().IntVar(&lintMaxWarnings, "max-warnings", -1, "exit nonzero if warnings exceed this count (-1: use config)")
	lintCmd.Flags().StringVar(&lintConfigPath, "config", ".whisker-lint.json", "path to the lint config file")
}

func runLint(cmd *cobra.Command, args []string) error {
	cfg, warnings, err := config.LoadLintConfig(lintConfigPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "whisker-lint: warning: %s\n", w)
	}
	disabled := make(map[string]bool, len(cfg.DisabledRules))
	for _, r := range cfg.DisabledRules {
		disabled[r] = true
	}

	g, _ := errgroup.WithContext(context.Background())
	results := make([][]diagnostics.Diagnostic, len(args))
	srcs := make([]string, len(args))
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			srcs[i] = string(data)
			compiled := whisker.Compile(string(data), whisker.CompileOptions{SourcePath: path})
			results[i] = filterDisabled(compiled.Diagnostics, disabled)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	for i, path := range args {
		if len(results[i]) == 0 {
			continue
		}
		total += len(results[i])
		if !lintQuiet {
			files := diagnostics.FileSet{path: diagnostics.NewFile(path, srcs[i])}
			fmt.Println(diagnostics.Format(results[i], diagnostics.ModeText, files))
		}
	}

	max := lintMaxWarnings
	if max < 0 {
		max = cfg.MaxWarnings
	}
	fmt.Printf("whisker-lint: %d warning(s)\n", total)
	if max >= 0 && total > max {
		return fmt.Errorf("whisker-lint: %d warning(s) exceeds max-warnings=%d", total, max)
	}
	return nil
}

func filterDisabled(diags []diagnostics.Diagnostic, disabled map[string]bool) []diagnostics.Diagnostic {
	if len(disabled) == 0 {
		return diags
	}
	out := diags[:0:0]
	for _, d := range diags {
		if disabled[string(d.Code)] {
			continue
		}
		out = append(out, d)
	}
	return out
}
