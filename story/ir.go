package story

import (
	"fmt"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/uuid"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/parser"
)

// Metadata is a free-form key-value bag, serialized in insertion order.
type Metadata struct {
	keys []string
	vals map[string]string
}

// Set stores key=value, preserving first-seen key order.
func (m *Metadata) Set(key, value string) {
	if m.vals == nil {
		m.vals = make(map[string]string)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Get returns the value for key, if set.
func (m *Metadata) Get(key string) (string, bool) {
	if m.vals == nil {
		return "", false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (m *Metadata) Keys() []string { return append([]string(nil), m.keys...) }

// Info is a Story's `metadata` field per spec §3.
type Info struct {
	Title            string
	Author           string
	IFID             string
	TargetFormat     string
	TargetVersion    string
	Extras           Metadata
}

// VariableDecl is one of a Story's declared variables with its initial
// value.
type VariableDecl struct {
	Name    string
	Initial Value
}

// Choice mirrors spec §3's Choice content node.
type Choice struct {
	Text       string
	TargetID   string // empty when InlineBody is used instead
	HasTarget  bool
	InlineBody []parser.Node
	Condition  parser.Expr
	Action     parser.Expr
	Metadata   Metadata
}

// Passage mirrors spec §3's Passage.
type Passage struct {
	ID            string
	DisplayName   string
	Tags          stringset.Set
	PositionX     float64
	PositionY     float64
	HasPosition   bool
	Content       []parser.Node
	OnEnterScript parser.Expr
	OnExitScript  parser.Expr
	Metadata      Metadata
}

// Story is the top-level IR container (spec §3/§4.7). Passages own their
// content ASTs by value-id only: choices/diverts hold target ids as
// strings, never pointers, so the story graph's natural cycles never
// become Go reference cycles (spec §9, "Cyclic references").
type Story struct {
	MetaInfo       Info
	Passages       map[string]*Passage
	order          []string // insertion order, for GetAllPassages
	StartPassageID string
	GlobalCSS      string
	GlobalScript   string
	Variables      []VariableDecl
}

// New creates an empty Story with a freshly minted IFID.
func New(title string) *Story {
	return &Story{
		MetaInfo: Info{Title: title, IFID: uuid.NewString()},
		Passages: make(map[string]*Passage),
	}
}

// AddPassage inserts p, rejecting empty or duplicate ids per §4.7's local
// mutation invariants ("empty ids rejected, duplicate ids rejected or
// merged per policy" — this base method always rejects; callers wanting
// "first/last wins" merge policy, per spec §9 open question (a), should
// check Has themselves before calling AddPassage).
func (s *Story) AddPassage(p *Passage) error {
	if p.ID == "" {
		return fmt.Errorf("story: passage id must not be empty")
	}
	if _, exists := s.Passages[p.ID]; exists {
		return fmt.Errorf("story: duplicate passage id %q", p.ID)
	}
	s.Passages[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

// GetPassage looks up a passage by id.
func (s *Story) GetPassage(id string) (*Passage, bool) {
	p, ok := s.Passages[id]
	return p, ok
}

// Has reports whether a passage id is already present.
func (s *Story) Has(id string) bool {
	_, ok := s.Passages[id]
	return ok
}

// GetAllPassages returns passages in deterministic insertion order.
func (s *Story) GetAllPassages() []*Passage {
	out := make([]*Passage, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.Passages[id])
	}
	return out
}

// SetMetadata sets a top-level metadata extra on the story.
func (s *Story) SetMetadata(key, value string) {
	s.MetaInfo.Extras.Set(key, value)
}

// Validate checks the invariants of spec §3: every start_passage_id
// resolves, ids are unique (guaranteed by AddPassage) and non-empty, and
// every choice/divert target is either resolvable or recorded as an
// unresolved-reference diagnostic by the caller (semantic analysis owns
// producing those diagnostics; Validate only checks structural integrity
// needed to produce a usable IR).
func (s *Story) Validate() []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	if len(s.Passages) == 0 {
		diags = append(diags, diagnostics.New(diagnostics.CodeNoPassages, "story has no passages"))
		return diags
	}
	if s.StartPassageID == "" {
		diags = append(diags, diagnostics.New(diagnostics.CodeNoStartPassage, "story has no start passage"))
	} else if !s.Has(s.StartPassageID) {
		diags = append(diags, diagnostics.New(diagnostics.CodeNoStartPassage,
			fmt.Sprintf("start passage %q does not resolve", s.StartPassageID)))
	}
	return diags
}
