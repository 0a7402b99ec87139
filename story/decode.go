package story

import (
	"encoding/json"
	"fmt"

	"bitbucket.org/creachadair/stringset"

	"github.com/writewhisker/whisker-core/parser"
)

// DecodeCanonical reconstructs a *Story from bytes produced by
// MarshalCanonical, satisfying spec §8's round-trip property: IR →
// canonical JSON → IR is the identity on all reachable IR shapes.
// Passage diagnostics.Span positions are not carried by the canonical
// format (spec §4.7 treats them as source provenance, not IR state) and
// come back zero-valued; everything the interpreter and renderer touch
// round-trips exactly.
func DecodeCanonical(data []byte) (*Story, error) {
	var doc storyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("story: decode canonical: %w", err)
	}

	s := &Story{
		MetaInfo: Info{
			Title:         doc.Title,
			Author:        doc.Author,
			IFID:          doc.IFID,
			TargetFormat:  doc.TargetFormat,
			TargetVersion: doc.TargetVersion,
			Extras:        kvToMetadata(doc.Extras),
		},
		Passages:       make(map[string]*Passage, len(doc.Passages)),
		StartPassageID: doc.StartPassageID,
		GlobalCSS:      doc.GlobalCSS,
		GlobalScript:   doc.GlobalScript,
	}
	for _, vd := range doc.Variables {
		v, err := DecodeValue(vd.Initial)
		if err != nil {
			return nil, fmt.Errorf("story: decode variable %q: %w", vd.Name, err)
		}
		s.Variables = append(s.Variables, VariableDecl{Name: vd.Name, Initial: v})
	}
	for _, pd := range doc.Passages {
		p, err := passageFromDoc(pd)
		if err != nil {
			return nil, err
		}
		if err := s.AddPassage(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func passageFromDoc(doc passageDoc) (*Passage, error) {
	p := &Passage{
		ID:          doc.ID,
		DisplayName: doc.DisplayName,
		Tags:        stringset.New(doc.Tags...),
		PositionX:   doc.PositionX,
		PositionY:   doc.PositionY,
		HasPosition: doc.HasPosition,
		Metadata:    kvToMetadata(doc.Metadata),
	}
	for _, raw := range doc.Content {
		n, err := nodeFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("story: passage %q: %w", doc.ID, err)
		}
		p.Content = append(p.Content, n)
	}
	if len(doc.OnEnter) > 0 {
		e, err := exprFromJSON(doc.OnEnter)
		if err != nil {
			return nil, fmt.Errorf("story: passage %q on_enter: %w", doc.ID, err)
		}
		p.OnEnterScript = e
	}
	if len(doc.OnExit) > 0 {
		e, err := exprFromJSON(doc.OnExit)
		if err != nil {
			return nil, fmt.Errorf("story: passage %q on_exit: %w", doc.ID, err)
		}
		p.OnExitScript = e
	}
	return p, nil
}

func kvToMetadata(pairs []kv) Metadata {
	var m Metadata
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// DecodeValue is the decode counterpart of EncodeValue/valueToJSON: it
// reconstructs a Value from the tagged {"kind": ..., "v": ...} shape,
// recovering the Kind distinctions (e.g. the string "0" vs the number 0)
// that Value.String erases.
func DecodeValue(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 {
		return Nil, nil
	}
	var t struct {
		Kind string          `json:"kind"`
		V    json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return Nil, fmt.Errorf("story: decode value: %w", err)
	}
	switch t.Kind {
	case "", "nil":
		return Nil, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(t.V, &b); err != nil {
			return Nil, fmt.Errorf("story: decode bool value: %w", err)
		}
		return Bool(b), nil
	case "integer":
		var n int64
		if err := json.Unmarshal(t.V, &n); err != nil {
			return Nil, fmt.Errorf("story: decode integer value: %w", err)
		}
		return Int(n), nil
	case "float":
		var f float64
		if err := json.Unmarshal(t.V, &f); err != nil {
			return Nil, fmt.Errorf("story: decode float value: %w", err)
		}
		return Float(f), nil
	case "string":
		var str string
		if err := json.Unmarshal(t.V, &str); err != nil {
			return Nil, fmt.Errorf("story: decode string value: %w", err)
		}
		return Str(str), nil
	case "array":
		var items []json.RawMessage
		if err := json.Unmarshal(t.V, &items); err != nil {
			return Nil, fmt.Errorf("story: decode array value: %w", err)
		}
		vals := make([]Value, 0, len(items))
		for _, it := range items {
			v, err := DecodeValue(it)
			if err != nil {
				return Nil, err
			}
			vals = append(vals, v)
		}
		return Arr(vals...), nil
	case "map":
		var pairs []kv2
		if err := json.Unmarshal(t.V, &pairs); err != nil {
			return Nil, fmt.Errorf("story: decode map value: %w", err)
		}
		out := NewMap()
		for _, p := range pairs {
			v, err := DecodeValue(p.Value)
			if err != nil {
				return Nil, err
			}
			out = out.Set(p.Key, v)
		}
		return out, nil
	default:
		return Nil, fmt.Errorf("story: unknown value kind %q", t.Kind)
	}
}

// nodeEnvelope is the decode counterpart of nodeToJSON's per-variant
// map[string]any: a flat struct wide enough to cover every content node
// variant, with unused fields left at their zero value per type.
type nodeEnvelope struct {
	Type       string          `json:"type"`
	Literal    string          `json:"literal"`
	Flags      []string        `json:"flags"`
	Lang       string          `json:"lang"`
	Depth      int             `json:"depth"`
	Ordered    bool            `json:"ordered"`
	Body       json.RawMessage `json:"body"`
	Expr       json.RawMessage `json:"expr"`
	Cond       json.RawMessage `json:"cond"`
	Then       json.RawMessage `json:"then"`
	Elsif      json.RawMessage `json:"elsif"`
	Else       json.RawMessage `json:"else"`
	HasElse    bool            `json:"has_else"`
	Binder     string          `json:"binder"`
	Collection json.RawMessage `json:"collection"`
	Var        string          `json:"var"`
	Text       string          `json:"text"`
	TargetID   string          `json:"target_id"`
	HasTarget  bool            `json:"has_target"`
	InlineBody json.RawMessage `json:"inline_body"`
	Guard      json.RawMessage `json:"guard"`
	Action     json.RawMessage `json:"action"`
	Metadata   []kv            `json:"metadata"`
	Name       string          `json:"name"`
	Visible    bool            `json:"visible"`
	Message    string          `json:"message"`
	Value      string          `json:"value"`
}

type elsifEnvelope struct {
	Cond json.RawMessage `json:"cond"`
	Body json.RawMessage `json:"body"`
}

func nodesFromJSON(raw json.RawMessage) ([]parser.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("story: decode node list: %w", err)
	}
	out := make([]parser.Node, 0, len(items))
	for _, it := range items {
		n, err := nodeFromJSON(it)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func nodeFromJSON(raw json.RawMessage) (parser.Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("story: decode node: %w", err)
	}
	switch env.Type {
	case "text":
		var flags []parser.FormatFlag
		for _, f := range env.Flags {
			flags = append(flags, parser.FormatFlag(f))
		}
		return &parser.Text{Literal: env.Literal, Flags: flags, Lang: env.Lang}, nil
	case "blockquote":
		body, err := nodesFromJSON(env.Body)
		if err != nil {
			return nil, err
		}
		return &parser.Blockquote{Depth: env.Depth, Body: body}, nil
	case "list_item":
		body, err := nodesFromJSON(env.Body)
		if err != nil {
			return nil, err
		}
		return &parser.ListItem{Ordered: env.Ordered, Body: body}, nil
	case "horizontal_rule":
		return &parser.HorizontalRule{}, nil
	case "interpolation":
		e, err := exprFromJSON(env.Expr)
		if err != nil {
			return nil, err
		}
		return &parser.Interpolation{Expr: e}, nil
	case "conditional":
		cond, err := exprFromJSON(env.Cond)
		if err != nil {
			return nil, err
		}
		then, err := nodesFromJSON(env.Then)
		if err != nil {
			return nil, err
		}
		els, err := nodesFromJSON(env.Else)
		if err != nil {
			return nil, err
		}
		var elsifs []parser.CondBranch
		if len(env.Elsif) > 0 {
			var raws []elsifEnvelope
			if err := json.Unmarshal(env.Elsif, &raws); err != nil {
				return nil, fmt.Errorf("story: decode elsif: %w", err)
			}
			for _, r := range raws {
				c, err := exprFromJSON(r.Cond)
				if err != nil {
					return nil, err
				}
				b, err := nodesFromJSON(r.Body)
				if err != nil {
					return nil, err
				}
				elsifs = append(elsifs, parser.CondBranch{Cond: c, Body: b})
			}
		}
		return &parser.Conditional{Cond: cond, Then: then, Elsif: elsifs, Else: els, HasElse: env.HasElse}, nil
	case "for_each":
		coll, err := exprFromJSON(env.Collection)
		if err != nil {
			return nil, err
		}
		body, err := nodesFromJSON(env.Body)
		if err != nil {
			return nil, err
		}
		return &parser.ForEach{Binder: env.Binder, Collection: coll, Body: body}, nil
	case "assignment":
		e, err := exprFromJSON(env.Expr)
		if err != nil {
			return nil, err
		}
		return &parser.Assignment{Var: env.Var, Expr: e}, nil
	case "print":
		e, err := exprFromJSON(env.Expr)
		if err != nil {
			return nil, err
		}
		return &parser.Print{Expr: e}, nil
	case "choice":
		inline, err := nodesFromJSON(env.InlineBody)
		if err != nil {
			return nil, err
		}
		var guard, action parser.Expr
		if len(env.Guard) > 0 {
			if guard, err = exprFromJSON(env.Guard); err != nil {
				return nil, err
			}
		}
		if len(env.Action) > 0 {
			if action, err = exprFromJSON(env.Action); err != nil {
				return nil, err
			}
		}
		return &parser.Choice{
			Text: env.Text, TargetID: env.TargetID, HasTarget: env.HasTarget,
			InlineBody: inline, Guard: guard, Action: action,
			Metadata: kvToStringMap(env.Metadata),
		}, nil
	case "divert":
		return &parser.Divert{TargetID: env.TargetID}, nil
	case "named_hook":
		body, err := nodesFromJSON(env.Body)
		if err != nil {
			return nil, err
		}
		return &parser.NamedHook{Name: env.Name, Visible: env.Visible, Body: body}, nil
	case "script_block":
		return &parser.ScriptBlock{Text: env.Text}, nil
	case "warning":
		return &parser.Warning{Message: env.Message}, nil
	case "unknown":
		return &parser.Warning{Message: env.Value}, nil
	default:
		return nil, fmt.Errorf("story: unknown node type %q", env.Type)
	}
}

// exprEnvelope is the decode counterpart of exprToJSON.
type exprEnvelope struct {
	Type            string          `json:"type"`
	Kind            int             `json:"kind"`
	Bool            bool            `json:"bool"`
	Number          float64         `json:"number"`
	String          string          `json:"string"`
	Array           json.RawMessage `json:"array"`
	Map             json.RawMessage `json:"map"`
	Name            string          `json:"name"`
	Op              string          `json:"op"`
	Left            json.RawMessage `json:"left"`
	Right           json.RawMessage `json:"right"`
	Operand         json.RawMessage `json:"operand"`
	Args            json.RawMessage `json:"args"`
	Items           json.RawMessage `json:"items"`
	Pairs           json.RawMessage `json:"pairs"`
	Text            string          `json:"text"`
	OriginalDialect string          `json:"original_dialect"`
}

type mapPairEnvelope struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func exprsFromJSON(raw json.RawMessage) ([]parser.Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("story: decode expr list: %w", err)
	}
	out := make([]parser.Expr, 0, len(items))
	for _, it := range items {
		e, err := exprFromJSON(it)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func mapPairsFromJSON(raw json.RawMessage) ([]parser.MapPair, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var raws []mapPairEnvelope
	if err := json.Unmarshal(raw, &raws); err != nil {
		return nil, fmt.Errorf("story: decode map pairs: %w", err)
	}
	out := make([]parser.MapPair, 0, len(raws))
	for _, r := range raws {
		v, err := exprFromJSON(r.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, parser.MapPair{Key: r.Key, Value: v})
	}
	return out, nil
}

func exprFromJSON(raw json.RawMessage) (parser.Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env exprEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("story: decode expr: %w", err)
	}
	switch env.Type {
	case "literal":
		lit := &parser.Literal{Kind: parser.LiteralKind(env.Kind), Bool: env.Bool, Number: env.Number, String: env.String}
		if lit.Kind == parser.LitArray {
			items, err := exprsFromJSON(env.Array)
			if err != nil {
				return nil, err
			}
			lit.Array = items
		}
		if lit.Kind == parser.LitMap {
			pairs, err := mapPairsFromJSON(env.Map)
			if err != nil {
				return nil, err
			}
			lit.Map = pairs
		}
		return lit, nil
	case "variable_ref":
		return &parser.VariableRef{Name: env.Name}, nil
	case "binary_op":
		l, err := exprFromJSON(env.Left)
		if err != nil {
			return nil, err
		}
		r, err := exprFromJSON(env.Right)
		if err != nil {
			return nil, err
		}
		return &parser.BinaryOp{Op: parser.BinaryOperator(env.Op), Left: l, Right: r}, nil
	case "logical_op":
		l, err := exprFromJSON(env.Left)
		if err != nil {
			return nil, err
		}
		r, err := exprFromJSON(env.Right)
		if err != nil {
			return nil, err
		}
		return &parser.LogicalOp{Op: parser.LogicalOperator(env.Op), Left: l, Right: r}, nil
	case "unary_op":
		o, err := exprFromJSON(env.Operand)
		if err != nil {
			return nil, err
		}
		return &parser.UnaryOp{Op: parser.UnaryOperator(env.Op), Operand: o}, nil
	case "function_call":
		args, err := exprsFromJSON(env.Args)
		if err != nil {
			return nil, err
		}
		return &parser.FunctionCall{Name: env.Name, Args: args}, nil
	case "array_literal":
		items, err := exprsFromJSON(env.Items)
		if err != nil {
			return nil, err
		}
		return &parser.ArrayLiteral{Items: items}, nil
	case "map_literal":
		pairs, err := mapPairsFromJSON(env.Pairs)
		if err != nil {
			return nil, err
		}
		return &parser.MapLiteral{Pairs: pairs}, nil
	case "raw":
		return &parser.Raw{Text: env.Text, OriginalDialect: env.OriginalDialect}, nil
	case "unknown":
		return &parser.Raw{Text: "", OriginalDialect: "unknown"}, nil
	default:
		return nil, fmt.Errorf("story: unknown expr type %q", env.Type)
	}
}
