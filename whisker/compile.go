// Package whisker is the top-level Library API of spec §6: compile,
// import, export, engine construction, plugin registration, and
// diagnostic formatting, all as plain functions/constructors rather than
// a process-wide singleton — each call is handed (or builds) its own
// engine-scoped state, per spec §9's "Global singletons" design note.
package whisker

import (
	"github.com/writewhisker/whisker-core/codegen"
	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/lexer"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/semantic"
	"github.com/writewhisker/whisker-core/story"
)

// CompileOptions controls WhiskerScript compilation.
type CompileOptions struct {
	Title          string
	SourcePath     string
	StartPassageID string
	EmitSourceMap  bool
	Semantic       semantic.Options
}

// CompileResult is compile's return value: the lowered Story, every
// diagnostic collected across the lex/parse/semantic/codegen pipeline,
// and an optional source map.
type CompileResult struct {
	Story      *story.Story
	Diagnostics []diagnostics.Diagnostic
	SourceMap  *codegen.SourceMap
}

// Compile runs WhiskerScript source through the full front end: lex,
// parse, semantic analysis, and codegen. The compiler never throws —
// every stage's diagnostics are collected and returned alongside
// whatever partial Story codegen could still produce (spec §7).
func Compile(source string, opts CompileOptions) CompileResult {
	file := diagnostics.NewFile(opts.SourcePath, source)
	toks := lexer.New(file).Tokenize()

	p := parser.New(file, toks)
	doc, parseDiags := p.Parse()

	semOpts := opts.Semantic
	if semOpts == (semantic.Options{}) {
		semOpts = semantic.DefaultOptions()
	}
	table, semDiags := semantic.Analyze(doc, semOpts)

	result := codegen.Lower(doc, table, codegen.Options{
		Title:          opts.Title,
		SourcePath:     opts.SourcePath,
		EmitSourceMap:  opts.EmitSourceMap,
		StartPassageID: opts.StartPassageID,
	})

	all := append([]diagnostics.Diagnostic(nil), parseDiags...)
	all = append(all, semDiags...)
	if diags := result.Story.Validate(); len(diags) > 0 {
		all = append(all, diags...)
	}

	return CompileResult{Story: result.Story, Diagnostics: all, SourceMap: result.SourceMap}
}

// FormatDiagnostics is diagnostics.format(diags, mode) from spec §6.
func FormatDiagnostics(diags []diagnostics.Diagnostic, mode diagnostics.Mode, files diagnostics.Files) string {
	return diagnostics.Format(diags, mode, files)
}
