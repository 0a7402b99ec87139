package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/story"
	"github.com/writewhisker/whisker-core/whisker"
)

var importFormatHint string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "import a foreign-format story (Harlowe/ink/SugarCube/Chapbook/Snowman) to Story IR JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <file.wsk>",
	Short: "compile a WhiskerScript source and export it to a foreign format",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	importCmd.Flags().StringVar(&importFormatHint, "format", "", "format name (default: auto-detect)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "target format name (required)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default stdout)")
	exportCmd.MarkFlagRequired("format")
}

func runImport(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	result, err := whisker.Import(string(src), importFormatHint)
	if err != nil {
		return err
	}
	out, err := story.MarshalCanonical(result.Story)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	compiled := whisker.Compile(string(src), whisker.CompileOptions{SourcePath: path})
	if compiled.Story == nil {
		return fmt.Errorf("export: %s failed to compile", path)
	}
	result, err := whisker.Export(compiled.Story, exportFormat, formats.Options{})
	if err != nil {
		return err
	}
	if exportOut == "" {
		fmt.Println(result.Content)
		return nil
	}
	return os.WriteFile(exportOut, []byte(result.Content), 0o644)
}
