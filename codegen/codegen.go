package codegen

import (
	"bitbucket.org/creachadair/stringset"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/semantic"
	"github.com/writewhisker/whisker-core/story"
)

// Options controls lowering. SourcePath labels emitted source-map entries;
// EmitSourceMap turns on source-map recording at all (it is optional and
// orthogonal to the Story IR, per spec §4.5).
type Options struct {
	Title           string
	SourcePath      string
	EmitSourceMap   bool
	StartPassageID  string
}

// Result bundles the lowered Story IR with its (optional) source map.
type Result struct {
	Story      *story.Story
	SourceMap  *SourceMap // nil unless Options.EmitSourceMap
}

// Lower converts a parsed Document plus its resolved symbol table into a
// Story IR (spec §4.5: "Lowers the annotated AST into the Story IR").
// Lowering is total: even passages already flagged by the semantic pass
// (duplicates, unresolved references) are carried into the IR verbatim,
// since only structural failures block codegen — callers should check
// semantic diagnostics for fatality before calling Lower.
func Lower(doc *parser.Document, table *semantic.Table, opts Options) *Result {
	s := story.New(opts.Title)
	s.StartPassageID = opts.StartPassageID
	if s.StartPassageID == "" {
		s.StartPassageID = "Start"
	}

	var sm *SourceMap
	if opts.EmitSourceMap {
		sm = NewSourceMap(opts.SourcePath)
	}

	genLine := 0
	for _, id := range table.Order {
		sym := table.Passages[id]
		p := lowerPassage(sym.Passage, sm, opts.SourcePath, &genLine)
		// AddPassage only errors on empty/duplicate ids; the symbol table
		// has already deduplicated by the configured policy, so this
		// cannot fail here.
		_ = s.AddPassage(p)
	}

	return &Result{Story: s, SourceMap: sm}
}

func lowerPassage(decl *parser.PassageDecl, sm *SourceMap, sourcePath string, genLine *int) *story.Passage {
	p := &story.Passage{
		ID:            decl.ID,
		DisplayName:   decl.DisplayName,
		Content:       decl.Content,
		OnEnterScript: decl.OnEnter,
		OnExitScript:  decl.OnExit,
	}
	if len(decl.Tags) > 0 {
		p.Tags = stringset.New(decl.Tags...)
	}
	recordSpan(sm, sourcePath, decl.Span, genLine)
	for _, n := range decl.Content {
		recordSpan(sm, sourcePath, n.Span(), genLine)
	}
	return p
}

// recordSpan adds one source-map entry per content node, treating each
// node as occupying its own generated line — codegen emits the Story IR
// as one passage-content entry per line for source-map purposes, distinct
// from the Story IR's own in-memory shape.
func recordSpan(sm *SourceMap, sourcePath string, span diagnostics.Span, genLine *int) {
	if sm == nil {
		return
	}
	sm.Add(*genLine, 0, sourcePath, span.Start.Line-1, span.Start.Column-1)
	*genLine++
}
