package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/internal/config"
	"github.com/writewhisker/whisker-core/internal/printer"
	"github.com/writewhisker/whisker-core/lexer"
	"github.com/writewhisker/whisker-core/parser"
)

var (
	fmtCheck      bool
	fmtWrite      bool
	fmtStdin      bool
	fmtDiff       bool
	fmtConfigPath string
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <file.wsk>...",
	Short: "format WhiskerScript sources (.whisker-fmt.json)",
	Args:  cobra.MinimumNArgs(0),
	RunE:  runFmt,
}

func init() {
	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "exit nonzero if any file is not already formatted")
	fmtCmd.Flags().BoolVar(&fmtWrite, "write", false, "rewrite files in place")
	fmtCmd.Flags().BoolVar(&fmtStdin, "stdin", false, "read a single source from stdin, write formatted output to stdout")
	fmtCmd.Flags().BoolVar(&fmtDiff, "diff", false, "print ---/+++ file headers followed by the full formatted output (not a line-level diff)")
	fmtCmd.Flags().StringVar(&fmtConfigPath, "config", ".whisker-fmt.json", "path to the fmt config file")
}

func runFmt(cmd *cobra.Command, args []string) error {
	cfg, warnings, err := config.LoadFmtConfig(fmtConfigPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "whisker-fmt: warning: %s\n", w)
	}

	if fmtStdin {
		src, err := readAll(os.Stdin)
		if err != nil {
			return err
		}
		out, diags := formatSource("<stdin>", src, cfg)
		reportDiags(diags, "<stdin>", src)
		fmt.Print(out)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("whisker-fmt: no input files (pass paths or --stdin)")
	}

	g, _ := errgroup.WithContext(context.Background())
	results := make([]fmtOutcome, len(args))
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			results[i] = formatFile(path, cfg)
			return nil
		})
	}
	_ = g.Wait()

	unformatted := 0
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "whisker-fmt: %s: %v\n", r.path, r.err)
			continue
		}
		reportDiags(r.diags, r.path, r.original)
		if r.original == r.formatted {
			continue
		}
		unformatted++
		switch {
		case fmtWrite:
			if err := os.WriteFile(r.path, []byte(r.formatted), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "whisker-fmt: %s: %v\n", r.path, err)
			}
		case fmtDiff:
			fmt.Printf("--- %s\n+++ %s (formatted)\n", r.path, r.path)
			fmt.Println(r.formatted)
		case fmtCheck:
			fmt.Println(r.path)
		default:
			fmt.Print(r.formatted)
		}
	}
	if fmtCheck && unformatted > 0 {
		return fmt.Errorf("whisker-fmt: %d file(s) not formatted", unformatted)
	}
	return nil
}

type fmtOutcome struct {
	path               string
	original, formatted string
	diags              []diagnostics.Diagnostic
	err                error
}

func formatFile(path string, cfg *config.FmtConfig) fmtOutcome {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmtOutcome{path: path, err: err}
	}
	formatted, diags := formatSource(path, string(data), cfg)
	return fmtOutcome{path: path, original: string(data), formatted: formatted, diags: diags}
}

func formatSource(path, src string, cfg *config.FmtConfig) (string, []diagnostics.Diagnostic) {
	file := diagnostics.NewFile(path, src)
	toks := lexer.New(file).Tokenize()
	doc, diags := parser.New(file, toks).Parse()
	return printer.Print(doc, *cfg), diags
}

func reportDiags(diags []diagnostics.Diagnostic, path, src string) {
	if len(diags) == 0 {
		return
	}
	files := diagnostics.FileSet{path: diagnostics.NewFile(path, src)}
	fmt.Fprintln(os.Stderr, diagnostics.Format(diags, diagnostics.ModeText, files))
}

func readAll(f *os.File) (string, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
