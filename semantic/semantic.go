// Package semantic implements the Semantic Analyzer (spec §4.4): it walks
// the parsed Document, builds a passage symbol table, resolves choice and
// divert targets, and emits advisory diagnostics. Only structural failures
// (no passages, no start passage, malformed AST) are fatal; everything
// else proceeds so a Story IR can still be produced.
package semantic

import (
	"fmt"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/parser"
)

// DuplicatePolicy controls how a second passage declaration with an
// already-seen id is handled.
type DuplicatePolicy string

const (
	// FirstWins keeps the first-seen declaration and diagnoses the rest.
	FirstWins DuplicatePolicy = "first-wins"
	// LastWins replaces earlier declarations with the latest one seen.
	LastWins DuplicatePolicy = "last-wins"
	// Reject treats any duplicate id as a fatal malformed-AST error.
	Reject DuplicatePolicy = "reject"
)

// Options configures analysis thresholds. The zero value is usable but
// differs from DefaultOptions: its MaxPassageLength and
// MaxChoicesPerPassage of 0 disable those two checks.
type Options struct {
	DuplicatePassagePolicy DuplicatePolicy
	MaxPassageLength       int // in content nodes; 0 disables the check
	MaxChoicesPerPassage   int // 0 disables the check
	StartPassageID         string
}

// DefaultOptions returns the analyzer's defaults. This package does not
// read internal/config; callers pass any overrides in Options.
func DefaultOptions() Options {
	return Options{
		DuplicatePassagePolicy: FirstWins,
		MaxPassageLength:       200,
		MaxChoicesPerPassage:   20,
		StartPassageID:         "Start",
	}
}

// Symbol records where a passage id was declared, for duplicate/unreachable
// reporting.
type Symbol struct {
	Passage *parser.PassageDecl
	// Declared is the order index this symbol was first recorded at.
	Declared int
}

// Table is the resolved symbol table produced by Analyze.
type Table struct {
	Passages map[string]*Symbol
	Order    []string

	// referenced tracks which passage ids are reachable via a choice
	// target or Divert anywhere in the document.
	referenced map[string]bool
	// declaredVars and usedVars back the unused-variable check.
	declaredVars map[string]bool
	usedVars     map[string]bool
}

// Get returns the resolved passage for id under the duplicate policy
// applied during Analyze.
func (t *Table) Get(id string) (*parser.PassageDecl, bool) {
	sym, ok := t.Passages[id]
	if !ok {
		return nil, false
	}
	return sym.Passage, true
}

// Analyze walks doc, builds the symbol table, resolves references, and
// returns both alongside the diagnostics produced. A fatal diagnostic
// (WSK0290/WSK0291/WSK0292) means table/resolution results may be
// incomplete and callers should not proceed to code generation.
func Analyze(doc *parser.Document, opts Options) (*Table, []diagnostics.Diagnostic) {
	var diags []diagnostics.Diagnostic
	table := &Table{
		Passages:     make(map[string]*Symbol),
		referenced:   make(map[string]bool),
		declaredVars: make(map[string]bool),
		usedVars:     make(map[string]bool),
	}

	if len(doc.Passages) == 0 {
		diags = append(diags, diagnostics.New(diagnostics.CodeNoPassages, "document declares no passages"))
		return table, diags
	}

	for i, p := range doc.Passages {
		existing, dup := table.Passages[p.ID]
		if !dup {
			table.Passages[p.ID] = &Symbol{Passage: p, Declared: i}
			table.Order = append(table.Order, p.ID)
			continue
		}
		switch opts.DuplicatePassagePolicy {
		case Reject:
			diags = append(diags, diagnostics.New(diagnostics.CodeMalformedAST,
				fmt.Sprintf("duplicate passage id %q rejected by configuration", p.ID)).
				WithPrimarySpan(diagnostics.Location{Span: p.Span}))
			return table, diags
		case LastWins:
			table.Passages[p.ID] = &Symbol{Passage: p, Declared: i}
			diags = append(diags, duplicateDiag(p, existing))
		default: // FirstWins
			diags = append(diags, duplicateDiag(p, existing))
		}
	}

	startID := opts.StartPassageID
	if startID == "" {
		startID = "Start"
	}
	if _, ok := table.Get(startID); !ok {
		diags = append(diags, diagnostics.New(diagnostics.CodeNoStartPassage,
			fmt.Sprintf("start passage %q not found among declared passages", startID)))
	} else {
		table.referenced[startID] = true
	}

	for _, id := range table.Order {
		sym := table.Passages[id]
		walkPassage(sym.Passage, table, &diags, opts)
	}

	for name := range table.declaredVars {
		if !table.usedVars[name] {
			diags = append(diags, diagnostics.NewWarning(diagnostics.CodeUnusedVariable,
				fmt.Sprintf("variable %q is declared but never read", name)))
		}
	}

	for _, id := range table.Order {
		if !table.referenced[id] {
			diags = append(diags, diagnostics.NewWarning(diagnostics.CodeUnreachablePassage,
				fmt.Sprintf("passage %q has no inbound reference and is not the start passage", id)).
				WithPrimarySpan(diagnostics.Location{Span: table.Passages[id].Passage.Span}))
		}
	}

	return table, diags
}

func duplicateDiag(p, existing *parser.PassageDecl) diagnostics.Diagnostic {
	_ = existing
	return diagnostics.NewWarning(diagnostics.CodeDuplicatePassage,
		fmt.Sprintf("duplicate passage id %q", p.ID)).
		WithPrimarySpan(diagnostics.Location{Span: p.Span})
}

// walkPassage records references, variable use, and the length/choice-count
// warnings for a single passage.
func walkPassage(p *parser.PassageDecl, table *Table, diags *[]diagnostics.Diagnostic, opts Options) {
	choiceCount := 0
	if len(p.Content) == 0 {
		*diags = append(*diags, diagnostics.NewWarning(diagnostics.CodeEmptyPassage,
			fmt.Sprintf("passage %q has no content", p.ID)).
			WithPrimarySpan(diagnostics.Location{Span: p.Span}))
	}
	if opts.MaxPassageLength > 0 && len(p.Content) > opts.MaxPassageLength {
		*diags = append(*diags, diagnostics.NewWarning(diagnostics.CodePassageTooLong,
			fmt.Sprintf("passage %q has %d content nodes, exceeding the configured limit of %d",
				p.ID, len(p.Content), opts.MaxPassageLength)).
			WithPrimarySpan(diagnostics.Location{Span: p.Span}))
	}
	for _, n := range p.Content {
		walkNode(n, table, diags, &choiceCount)
	}
	if opts.MaxChoicesPerPassage > 0 && choiceCount > opts.MaxChoicesPerPassage {
		*diags = append(*diags, diagnostics.NewWarning(diagnostics.CodeTooManyChoices,
			fmt.Sprintf("passage %q offers %d choices, exceeding the configured limit of %d",
				p.ID, choiceCount, opts.MaxChoicesPerPassage)).
			WithPrimarySpan(diagnostics.Location{Span: p.Span}))
	}
	if p.OnEnter != nil {
		walkExpr(p.OnEnter, table)
	}
	if p.OnExit != nil {
		walkExpr(p.OnExit, table)
	}
}

func walkNode(n parser.Node, table *Table, diags *[]diagnostics.Diagnostic, choiceCount *int) {
	switch v := n.(type) {
	case *parser.Choice:
		*choiceCount++
		if v.HasTarget {
			resolveTarget(v.TargetID, table, diags, v)
		}
		for _, c := range v.InlineBody {
			walkNode(c, table, diags, choiceCount)
		}
		if v.Guard != nil {
			walkExpr(v.Guard, table)
		}
		if v.Action != nil {
			walkExpr(v.Action, table)
		}
	case *parser.Divert:
		resolveTarget(v.TargetID, table, diags, v)
	case *parser.Conditional:
		walkExpr(v.Cond, table)
		for _, c := range v.Then {
			walkNode(c, table, diags, choiceCount)
		}
		for _, branch := range v.Elsif {
			walkExpr(branch.Cond, table)
			for _, c := range branch.Body {
				walkNode(c, table, diags, choiceCount)
			}
		}
		for _, c := range v.Else {
			walkNode(c, table, diags, choiceCount)
		}
	case *parser.ForEach:
		walkExpr(v.Collection, table)
		for _, c := range v.Body {
			walkNode(c, table, diags, choiceCount)
		}
	case *parser.Assignment:
		table.declaredVars[v.Var] = true
		walkExpr(v.Expr, table)
	case *parser.Print:
		walkExpr(v.Expr, table)
	case *parser.Interpolation:
		walkExpr(v.Expr, table)
	case *parser.NamedHook:
		for _, c := range v.Body {
			walkNode(c, table, diags, choiceCount)
		}
	case *parser.Blockquote:
		for _, c := range v.Body {
			walkNode(c, table, diags, choiceCount)
		}
	case *parser.ListItem:
		for _, c := range v.Body {
			walkNode(c, table, diags, choiceCount)
		}
	}
}

// resolveTarget marks targetID reachable if it resolves, or emits
// WSK0201 (advisory, not fatal) if it doesn't, with node's span as the
// diagnostic's primary span.
func resolveTarget(targetID string, table *Table, diags *[]diagnostics.Diagnostic, node parser.Node) {
	if targetID == "" {
		return
	}
	if _, ok := table.Get(targetID); ok {
		table.referenced[targetID] = true
		return
	}
	*diags = append(*diags, diagnostics.NewWarning(diagnostics.CodeUnresolvedReference,
		fmt.Sprintf("reference to undeclared passage %q", targetID)).
		WithPrimarySpan(diagnostics.Location{Span: node.Span()}))
}

// walkExpr records variable reads for the unused-variable check. It does
// not resolve passage references (expressions never carry them).
func walkExpr(e parser.Expr, table *Table) {
	switch v := e.(type) {
	case *parser.VariableRef:
		table.usedVars[v.Name] = true
	case *parser.BinaryOp:
		walkExpr(v.Left, table)
		walkExpr(v.Right, table)
	case *parser.LogicalOp:
		walkExpr(v.Left, table)
		walkExpr(v.Right, table)
	case *parser.UnaryOp:
		walkExpr(v.Operand, table)
	case *parser.FunctionCall:
		for _, a := range v.Args {
			walkExpr(a, table)
		}
	case *parser.ArrayLiteral:
		for _, it := range v.Items {
			walkExpr(it, table)
		}
	case *parser.MapLiteral:
		for _, p := range v.Pairs {
			walkExpr(p.Value, table)
		}
	}
}
