// Package ink implements the Ink runtime JSON export/import adapter (spec
// §4.6/§6): schema version 20, knot names sanitized from passage ids, and
// a compatibility check that warns about top-level Raw escape-hatch nodes
// (embedded Lua or other host code) before export; passage tags and other
// node kinds are not inspected by that check. Content is encoded in the
// standard Ink runtime container forms (`["^", text]`, `"\n"`, `"done"`,
// `["*", body]`, `["->", target]`, `["#f", 1]`) rather than a
// Whisker-invented shape, so the output is consumable by real Ink hosts
// for the IR subset this adapter covers.
package ink

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

const schemaVersion = 20

func init() {
	formats.Global().MustRegister(Adapter{})
}

// Adapter implements formats.Format for Ink JSON.
type Adapter struct{}

func (Adapter) Name() string         { return "ink" }
func (Adapter) Extensions() []string { return []string{".ink.json", ".json"} }

func (Adapter) CanImport(source string) bool {
	trimmed := strings.TrimSpace(source)
	return strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"inkVersion"`) && strings.Contains(trimmed, `"root"`)
}

func (Adapter) CanExport(s *story.Story) (bool, string) {
	if s == nil {
		return false, "nil story"
	}
	if len(s.Passages) == 0 {
		return false, "story has no passages to export"
	}
	return true, ""
}

// doc is the on-disk shape of an Ink-compiled story: a schema-version
// tag, the entry-point `root` container, an (always empty, since Whisker
// has no LIST type) `listDefs` map, and one additional top-level key per
// knot, each holding that knot's container. encoding/json has no notion
// of "named struct field plus arbitrary extra keys at the same level",
// so Knots is folded in and out of the flat JSON object by the
// Marshal/UnmarshalJSON methods below.
type doc struct {
	InkVersion int
	Root       []any
	ListDefs   map[string]any
	Knots      map[string][]any
}

func (d doc) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Knots)+3)
	out["inkVersion"] = d.InkVersion
	out["root"] = d.Root
	out["listDefs"] = d.ListDefs
	for name, content := range d.Knots {
		out[name] = content
	}
	return json.Marshal(out)
}

func (d *doc) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["inkVersion"]; ok {
		if err := json.Unmarshal(v, &d.InkVersion); err != nil {
			return fmt.Errorf("ink: inkVersion: %w", err)
		}
	}
	if v, ok := raw["listDefs"]; ok {
		if err := json.Unmarshal(v, &d.ListDefs); err != nil {
			return fmt.Errorf("ink: listDefs: %w", err)
		}
	}
	if v, ok := raw["root"]; ok {
		if err := json.Unmarshal(v, &d.Root); err != nil {
			return fmt.Errorf("ink: root: %w", err)
		}
	}
	d.Knots = make(map[string][]any, len(raw))
	for key, v := range raw {
		if key == "inkVersion" || key == "listDefs" || key == "root" {
			continue
		}
		var content []any
		if err := json.Unmarshal(v, &content); err != nil {
			return fmt.Errorf("ink: knot %q: %w", key, err)
		}
		d.Knots[key] = content
	}
	return nil
}

var knotNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// sanitizeKnotName applies spec §4.6's Ink knot-name transform:
// each character outside [A-Za-z0-9_] becomes `_`, the result is
// lower-cased, and a numeric-leading name gets `_` prepended.
func sanitizeKnotName(id string) string {
	s := knotNameSanitizer.ReplaceAllString(id, "_")
	s = strings.ToLower(s)
	if s == "" {
		s = "_"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// checkCompatibility flags content that Ink cannot represent: each Raw
// escape-hatch node (Lua/host code) at the top level of a passage's
// content gets a warning, since export drops it. It never emits an
// error, and it does not look at passage tags or inside nested bodies.
func checkCompatibility(s *story.Story) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, p := range s.GetAllPassages() {
		for _, n := range p.Content {
			if raw, ok := n.(*parser.Raw); ok {
				diags = append(diags, diagnostics.NewWarning(diagnostics.CodeRawEscapeHatch,
					"passage \""+p.ID+"\" contains a raw "+raw.OriginalDialect+" escape hatch with no Ink equivalent; it will be dropped on export"))
			}
		}
	}
	return diags
}

// Export lowers a Story IR to Ink runtime JSON, schema version 20.
//
// The root container is a fixed shape — divert into the start knot,
// "done", a trailing `["#f", 1]` flags marker — mirroring how a compiled
// Ink story's outermost container diverts straight into its first knot
// and carries a count-start flag; per-story content lives in the
// knot containers, not in root itself (spec §8 scenario 5).
func (Adapter) Export(s *story.Story, opts formats.Options) (string, []diagnostics.Diagnostic) {
	diags := checkCompatibility(s)

	knotNames := make(map[string]string, len(s.Passages)) // passage id -> sanitized knot name
	used := make(map[string]string)                       // sanitized name -> original id, to flag collisions
	for _, p := range s.GetAllPassages() {
		name := sanitizeKnotName(p.ID)
		if orig, exists := used[name]; exists && orig != p.ID {
			diags = append(diags, diagnostics.NewWarning(diagnostics.CodeDuplicatePassage,
				"knot name collision: \""+p.ID+"\" and \""+orig+"\" both sanitize to \""+name+"\""))
		}
		used[name] = p.ID
		knotNames[p.ID] = name
	}
	nameFor := func(id string) string {
		if name, ok := knotNames[id]; ok {
			return name
		}
		return sanitizeKnotName(id)
	}

	out := doc{
		InkVersion: schemaVersion,
		ListDefs:   map[string]any{},
		Knots:      make(map[string][]any, len(s.Passages)),
	}
	out.Root = []any{
		[]any{"->", nameFor(s.StartPassageID)},
		"done",
		[]any{"#f", 1},
	}
	for _, p := range s.GetAllPassages() {
		out.Knots[nameFor(p.ID)] = renderKnot(p.Content, nameFor)
	}

	var raw []byte
	var err error
	if opts.Pretty {
		raw, err = json.MarshalIndent(out, "", "  ")
	} else {
		raw, err = json.Marshal(out)
	}
	if err != nil {
		diags = append(diags, diagnostics.New(diagnostics.CodeMalformedAST, "ink: "+err.Error()))
		return "", diags
	}
	return string(raw), diags
}

// renderKnot lowers one passage's content AST to an Ink container: text
// runs become `["^", text]` followed by a `"\n"` glue item, choices
// become `["*", body]`, diverts become `["->", target]`. A knot that
// never diverts and offers no choices is an ending and gets an explicit
// `"done"`. Every knot closes with the same `["#f", 1]` flags marker
// root does, for a uniform container shape.
func renderKnot(nodes []parser.Node, nameFor func(string) string) []any {
	var items []any
	var text strings.Builder
	flushText := func() {
		if text.Len() == 0 {
			return
		}
		items = append(items, []any{"^", text.String()}, "\n")
		text.Reset()
	}

	terminal := false
	for _, n := range nodes {
		switch v := n.(type) {
		case *parser.Text:
			text.WriteString(v.Literal)
		case *parser.Choice:
			flushText()
			body := []any{[]any{"^", v.Text}}
			if v.HasTarget {
				body = append(body, []any{"->", nameFor(v.TargetID)})
			}
			items = append(items, []any{"*", body})
			terminal = true
		case *parser.Divert:
			flushText()
			items = append(items, []any{"->", nameFor(v.TargetID)})
			terminal = true
		}
	}
	flushText()
	if !terminal {
		items = append(items, "done")
	}
	items = append(items, []any{"#f", 1})
	return items
}

// Import reconstructs a Story IR from Ink JSON in the runtime schema
// Export produces. Only text, choice and divert items are decoded;
// other container/control-code structure in hand-authored Ink is
// skipped. CanImport itself only checks for a JSON object carrying
// "inkVersion" and "root". Original (pre-sanitization) passage ids are not recoverable —
// real Ink doesn't carry them either — so imported passage ids are the
// sanitized knot names themselves (spec §8: "equivalent modulo
// documented lossy fields").
func (Adapter) Import(source string) (*story.Story, []diagnostics.Diagnostic) {
	var d doc
	if err := json.Unmarshal([]byte(source), &d); err != nil {
		return nil, []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodeMalformedAST, "ink: "+err.Error())}
	}

	s := story.New("")
	s.MetaInfo.TargetFormat = "ink"

	if start, ok := startKnotFromRoot(d.Root); ok {
		s.StartPassageID = start
	}

	names := make([]string, 0, len(d.Knots))
	for name := range d.Knots {
		names = append(names, name)
	}
	sort.Strings(names)

	var diags []diagnostics.Diagnostic
	for _, name := range names {
		content := nodesFromInk(d.Knots[name])
		if err := s.AddPassage(&story.Passage{ID: name, DisplayName: name, Content: content}); err != nil {
			diags = append(diags, diagnostics.New(diagnostics.CodeDuplicatePassage, err.Error()))
		}
	}
	return s, diags
}

// startKnotFromRoot reads the divert target out of root's fixed
// `[["->", name], "done", ["#f", 1]]` shape.
func startKnotFromRoot(root []any) (string, bool) {
	if len(root) == 0 {
		return "", false
	}
	entry, ok := root[0].([]any)
	if !ok || len(entry) != 2 {
		return "", false
	}
	tag, _ := entry[0].(string)
	target, _ := entry[1].(string)
	if tag != "->" || target == "" {
		return "", false
	}
	return target, true
}

// nodesFromInk is the decode counterpart of renderKnot.
func nodesFromInk(items []any) []parser.Node {
	var nodes []parser.Node
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, &parser.Text{Literal: text.String()})
			text.Reset()
		}
	}
	for _, raw := range items {
		switch v := raw.(type) {
		case string:
			switch v {
			case "\n":
				text.WriteString("\n")
			case "done":
				flush()
			}
		case []any:
			if len(v) == 0 {
				continue
			}
			tag, _ := v[0].(string)
			switch tag {
			case "^":
				if len(v) > 1 {
					if s, ok := v[1].(string); ok {
						text.WriteString(s)
					}
				}
			case "->":
				flush()
				if len(v) > 1 {
					if target, ok := v[1].(string); ok {
						nodes = append(nodes, &parser.Divert{TargetID: target})
					}
				}
			case "*":
				flush()
				if len(v) > 1 {
					if body, ok := v[1].([]any); ok {
						nodes = append(nodes, choiceFromInk(body))
					}
				}
			}
		}
	}
	flush()
	return nodes
}

func choiceFromInk(body []any) *parser.Choice {
	c := &parser.Choice{}
	for _, raw := range body {
		item, ok := raw.([]any)
		if !ok || len(item) == 0 {
			continue
		}
		tag, _ := item[0].(string)
		switch tag {
		case "^":
			if len(item) > 1 {
				if s, ok := item[1].(string); ok {
					c.Text = s
				}
			}
		case "->":
			if len(item) > 1 {
				if target, ok := item[1].(string); ok {
					c.TargetID = target
					c.HasTarget = true
				}
			}
		}
	}
	return c
}
