package whisker

import (
	"fmt"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/formats"
	_ "github.com/writewhisker/whisker-core/formats/chapbook"
	_ "github.com/writewhisker/whisker-core/formats/harlowe"
	_ "github.com/writewhisker/whisker-core/formats/ink"
	_ "github.com/writewhisker/whisker-core/formats/snowman"
	_ "github.com/writewhisker/whisker-core/formats/sugarcube"
	"github.com/writewhisker/whisker-core/story"
)

// ImportResult is import's return value.
type ImportResult struct {
	Story       *story.Story
	Diagnostics []diagnostics.Diagnostic
}

// Import dispatches source to formatHint's adapter, or the first
// registered formats.Format that claims it when formatHint is empty, per
// spec §6's `import(source, format_hint?)`.
func Import(source string, formatHint string) (ImportResult, error) {
	reg := formats.Global()
	var f formats.Format
	var ok bool
	if formatHint != "" {
		f, ok = reg.Get(formatHint)
		if !ok {
			return ImportResult{}, fmt.Errorf("whisker: unknown format %q", formatHint)
		}
	} else {
		f, ok = reg.Detect(source)
		if !ok {
			return ImportResult{}, fmt.Errorf("whisker: no registered format recognizes this source")
		}
	}
	s, diags := f.Import(source)
	return ImportResult{Story: s, Diagnostics: diags}, nil
}

// ExportResult is export's return value.
type ExportResult struct {
	Content     string
	Diagnostics []diagnostics.Diagnostic
}

// Export renders s through the named format adapter, the inverse of
// Import.
func Export(s *story.Story, format string, opts formats.Options) (ExportResult, error) {
	f, ok := formats.Global().Get(format)
	if !ok {
		return ExportResult{}, fmt.Errorf("whisker: unknown format %q", format)
	}
	if canExport, reason := f.CanExport(s); !canExport {
		return ExportResult{}, fmt.Errorf("whisker: story cannot export to %q: %s", format, reason)
	}
	content, diags := f.Export(s, opts)
	return ExportResult{Content: content, Diagnostics: diags}, nil
}
