package story

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"bitbucket.org/creachadair/stringset"

	"github.com/writewhisker/whisker-core/parser"
)

// MarshalCanonical renders s as canonical JSON per spec §4.7/§8: object
// keys sorted lexicographically, arrays kept in insertion order, numbers
// using Go's shortest round-trip formatting (which encoding/json already
// performs for float64).
func MarshalCanonical(s *Story) ([]byte, error) {
	doc := storyDoc{
		Title:          s.MetaInfo.Title,
		Author:         s.MetaInfo.Author,
		IFID:           s.MetaInfo.IFID,
		TargetFormat:   s.MetaInfo.TargetFormat,
		TargetVersion:  s.MetaInfo.TargetVersion,
		Extras:         metadataToMap(s.MetaInfo.Extras),
		StartPassageID: s.StartPassageID,
		GlobalCSS:      s.GlobalCSS,
		GlobalScript:   s.GlobalScript,
	}
	for _, v := range s.Variables {
		doc.Variables = append(doc.Variables, variableDoc{Name: v.Name, Initial: valueToJSON(v.Initial)})
	}
	for _, p := range s.GetAllPassages() {
		doc.Passages = append(doc.Passages, passageToDoc(p))
	}
	return marshalSorted(doc)
}

// marshalSorted marshals v as indented JSON with every object's keys in
// lexicographic order. encoding/json sorts map keys but writes struct
// fields in declaration order, so v is encoded once, decoded into generic
// maps (numbers kept verbatim via UseNumber), and encoded again; arrays
// keep their order, which is where storyDoc holds insertion order.
func marshalSorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.MarshalIndent(generic, "", "  ")
}

func metadataToMap(m Metadata) []kv {
	var out []kv
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out = append(out, kv{Key: k, Value: v})
	}
	return out
}

type kv struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type variableDoc struct {
	Name    string          `json:"name"`
	Initial json.RawMessage `json:"initial"`
}

type storyDoc struct {
	Title          string          `json:"title"`
	Author         string          `json:"author,omitempty"`
	IFID           string          `json:"ifid"`
	TargetFormat   string          `json:"target_format,omitempty"`
	TargetVersion  string          `json:"target_version,omitempty"`
	Extras         []kv            `json:"extras,omitempty"`
	StartPassageID string          `json:"start_passage_id"`
	GlobalCSS      string          `json:"global_css,omitempty"`
	GlobalScript   string          `json:"global_script,omitempty"`
	Variables      []variableDoc   `json:"variables,omitempty"`
	Passages       []passageDoc    `json:"passages"`
}

type passageDoc struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Tags        []string        `json:"tags,omitempty"`
	HasPosition bool            `json:"has_position,omitempty"`
	PositionX   float64         `json:"position_x,omitempty"`
	PositionY   float64         `json:"position_y,omitempty"`
	Content     []json.RawMessage `json:"content"`
	OnEnter     json.RawMessage `json:"on_enter,omitempty"`
	OnExit      json.RawMessage `json:"on_exit,omitempty"`
	Metadata    []kv            `json:"metadata,omitempty"`
}

func passageToDoc(p *Passage) passageDoc {
	doc := passageDoc{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Tags:        sortedTags(p.Tags),
		HasPosition: p.HasPosition,
		PositionX:   p.PositionX,
		PositionY:   p.PositionY,
		Metadata:    metadataToMap(p.Metadata),
	}
	for _, n := range p.Content {
		raw, _ := marshalSorted(nodeToJSON(n))
		doc.Content = append(doc.Content, raw)
	}
	if p.OnEnterScript != nil {
		doc.OnEnter, _ = marshalSorted(exprToJSON(p.OnEnterScript))
	}
	if p.OnExitScript != nil {
		doc.OnExit, _ = marshalSorted(exprToJSON(p.OnExitScript))
	}
	return doc
}

func sortedTags(t stringset.Set) []string {
	if len(t) == 0 {
		return nil
	}
	tags := t.Elements()
	sort.Strings(tags)
	return tags
}

// stringMapToKV renders a plain map[string]string (e.g. parser.Choice's
// per-choice Metadata) as key-sorted pairs, since a Go map has no stable
// iteration order of its own.
func stringMapToKV(m map[string]string) []kv {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kv, 0, len(keys))
	for _, k := range keys {
		out = append(out, kv{Key: k, Value: m[k]})
	}
	return out
}

func kvToStringMap(pairs []kv) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out
}

// EncodeValue renders v as the same tagged JSON object MarshalCanonical
// uses for variable initials, so callers outside this package (e.g.
// engine.Save) can embed a Value in their own JSON documents without
// losing the Kind tag that story.Value.String erases.
func EncodeValue(v Value) json.RawMessage { return valueToJSON(v) }

// valueToJSON renders a Value as a tagged JSON object so Nil/Bool/
// Integer/Float/String/Array/Map round-trip without ambiguity (e.g. the
// string "0" vs the number 0, which matter to is_truthy).
func valueToJSON(v Value) json.RawMessage {
	type tagged struct {
		Kind string          `json:"kind"`
		V    json.RawMessage `json:"v,omitempty"`
	}
	var t tagged
	switch v.Kind {
	case KindNil:
		t.Kind = "nil"
	case KindBool:
		t.Kind = "bool"
		t.V, _ = json.Marshal(v.AsBool())
	case KindInteger:
		t.Kind = "integer"
		t.V, _ = json.Marshal(v.intV)
	case KindFloat:
		t.Kind = "float"
		t.V, _ = json.Marshal(v.floatV)
	case KindString:
		t.Kind = "string"
		s, _ := v.AsString()
		t.V, _ = json.Marshal(s)
	case KindArray:
		t.Kind = "array"
		items := make([]json.RawMessage, 0, len(v.Array()))
		for _, it := range v.Array() {
			items = append(items, valueToJSON(it))
		}
		t.V, _ = json.Marshal(items)
	case KindMap:
		t.Kind = "map"
		pairs := make([]kv2, 0, len(v.mapKeys))
		for i, k := range v.mapKeys {
			raw, _ := json.Marshal(valueToJSON(v.mapVals[i]))
			pairs = append(pairs, kv2{Key: k, Value: raw})
		}
		t.V, _ = json.Marshal(pairs)
	}
	out, _ := json.Marshal(t)
	return out
}

type kv2 struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// nodeToJSON and exprToJSON are tagged-variant encoders for the content
// and expression ASTs. Both are intentionally conservative: unknown or
// zero-value subtrees degrade to a "raw" tag carrying their Go %v
// rendering rather than failing serialization outright, since the Story
// IR must always be exportable to canonical JSON (spec §4.7).
func nodeToJSON(n parser.Node) any {
	switch v := n.(type) {
	case *parser.Text:
		return map[string]any{"type": "text", "literal": v.Literal, "flags": v.Flags, "lang": v.Lang}
	case *parser.Blockquote:
		return map[string]any{"type": "blockquote", "depth": v.Depth, "body": nodesToJSON(v.Body)}
	case *parser.ListItem:
		return map[string]any{"type": "list_item", "ordered": v.Ordered, "body": nodesToJSON(v.Body)}
	case *parser.HorizontalRule:
		return map[string]any{"type": "horizontal_rule"}
	case *parser.Interpolation:
		return map[string]any{"type": "interpolation", "expr": exprToJSON(v.Expr)}
	case *parser.Conditional:
		elsif := make([]map[string]any, 0, len(v.Elsif))
		for _, b := range v.Elsif {
			elsif = append(elsif, map[string]any{"cond": exprToJSON(b.Cond), "body": nodesToJSON(b.Body)})
		}
		return map[string]any{
			"type": "conditional", "cond": exprToJSON(v.Cond), "then": nodesToJSON(v.Then),
			"elsif": elsif, "else": nodesToJSON(v.Else), "has_else": v.HasElse,
		}
	case *parser.ForEach:
		return map[string]any{"type": "for_each", "binder": v.Binder, "collection": exprToJSON(v.Collection), "body": nodesToJSON(v.Body)}
	case *parser.Assignment:
		return map[string]any{"type": "assignment", "var": v.Var, "expr": exprToJSON(v.Expr)}
	case *parser.Print:
		return map[string]any{"type": "print", "expr": exprToJSON(v.Expr)}
	case *parser.Choice:
		var guard, action any
		if v.Guard != nil {
			guard = exprToJSON(v.Guard)
		}
		if v.Action != nil {
			action = exprToJSON(v.Action)
		}
		return map[string]any{
			"type": "choice", "text": v.Text, "target_id": v.TargetID, "has_target": v.HasTarget,
			"inline_body": nodesToJSON(v.InlineBody), "guard": guard, "action": action,
			"metadata": stringMapToKV(v.Metadata),
		}
	case *parser.Divert:
		return map[string]any{"type": "divert", "target_id": v.TargetID}
	case *parser.NamedHook:
		return map[string]any{"type": "named_hook", "name": v.Name, "visible": v.Visible, "body": nodesToJSON(v.Body)}
	case *parser.ScriptBlock:
		return map[string]any{"type": "script_block", "text": v.Text}
	case *parser.Warning:
		return map[string]any{"type": "warning", "message": v.Message}
	default:
		return map[string]any{"type": "unknown", "value": fmt.Sprintf("%v", v)}
	}
}

func nodesToJSON(nodes []parser.Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeToJSON(n))
	}
	return out
}

func exprToJSON(e parser.Expr) any {
	switch v := e.(type) {
	case *parser.Literal:
		m := map[string]any{"type": "literal", "kind": int(v.Kind), "bool": v.Bool, "number": v.Number, "string": v.String}
		if v.Kind == parser.LitArray {
			items := make([]any, 0, len(v.Array))
			for _, it := range v.Array {
				items = append(items, exprToJSON(it))
			}
			m["array"] = items
		}
		if v.Kind == parser.LitMap {
			pairs := make([]map[string]any, 0, len(v.Map))
			for _, p := range v.Map {
				pairs = append(pairs, map[string]any{"key": p.Key, "value": exprToJSON(p.Value)})
			}
			m["map"] = pairs
		}
		return m
	case *parser.VariableRef:
		return map[string]any{"type": "variable_ref", "name": v.Name}
	case *parser.BinaryOp:
		return map[string]any{"type": "binary_op", "op": string(v.Op), "left": exprToJSON(v.Left), "right": exprToJSON(v.Right)}
	case *parser.LogicalOp:
		return map[string]any{"type": "logical_op", "op": string(v.Op), "left": exprToJSON(v.Left), "right": exprToJSON(v.Right)}
	case *parser.UnaryOp:
		return map[string]any{"type": "unary_op", "op": string(v.Op), "operand": exprToJSON(v.Operand)}
	case *parser.FunctionCall:
		args := make([]any, 0, len(v.Args))
		for _, a := range v.Args {
			args = append(args, exprToJSON(a))
		}
		return map[string]any{"type": "function_call", "name": v.Name, "args": args}
	case *parser.ArrayLiteral:
		items := make([]any, 0, len(v.Items))
		for _, it := range v.Items {
			items = append(items, exprToJSON(it))
		}
		return map[string]any{"type": "array_literal", "items": items}
	case *parser.MapLiteral:
		pairs := make([]map[string]any, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			pairs = append(pairs, map[string]any{"key": p.Key, "value": exprToJSON(p.Value)})
		}
		return map[string]any{"type": "map_literal", "pairs": pairs}
	case *parser.Raw:
		return map[string]any{"type": "raw", "text": v.Text, "original_dialect": v.OriginalDialect}
	default:
		return map[string]any{"type": "unknown"}
	}
}
