package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/story"
	"github.com/writewhisker/whisker-core/whisker"
)

var (
	compileTitle      string
	compileStart      string
	compileSourceMap  bool
	compileOutPath    string
	compileDiagMode   string
)

var compileCmd = &cobra.Command{
	Use:   "compile <file.wsk>",
	Short: "compile a WhiskerScript source file to Story IR JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileTitle, "title", "", "story title override")
	compileCmd.Flags().StringVar(&compileStart, "start", "", "start passage id override")
	compileCmd.Flags().BoolVar(&compileSourceMap, "source-map", false, "emit a source map")
	compileCmd.Flags().StringVarP(&compileOutPath, "out", "o", "", "output path (default stdout)")
	compileCmd.Flags().StringVar(&compileDiagMode, "diagnostics", "text", "diagnostic format: text|annotated|json")
}

func runCompile(cmd *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result := whisker.Compile(string(src), whisker.CompileOptions{
		Title:          compileTitle,
		SourcePath:     path,
		StartPassageID: compileStart,
		EmitSourceMap:  compileSourceMap,
	})

	if len(result.Diagnostics) > 0 {
		files := diagnostics.FileSet{path: diagnostics.NewFile(path, string(src))}
		mode := parseDiagMode(compileDiagMode)
		fmt.Fprintln(os.Stderr, whisker.FormatDiagnostics(result.Diagnostics, mode, files))
	}
	if diagnostics.HasFatal(result.Diagnostics) {
		return fmt.Errorf("compile failed: %s has fatal diagnostics", path)
	}

	out, err := story.MarshalCanonical(result.Story)
	if err != nil {
		return err
	}
	if compileOutPath == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(compileOutPath, out, 0o644)
}

func parseDiagMode(s string) diagnostics.Mode {
	switch s {
	case "annotated":
		return diagnostics.ModeAnnotated
	case "json":
		return diagnostics.ModeJSON
	default:
		return diagnostics.ModeText
	}
}
