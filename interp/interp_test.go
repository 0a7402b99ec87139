package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/writewhisker/whisker-core/capability"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

type mapState struct {
	vars map[string]story.Value
}

func newMapState() *mapState { return &mapState{vars: make(map[string]story.Value)} }

func (m *mapState) Get(name string) (story.Value, bool) {
	v, ok := m.vars[name]
	return v, ok
}

func (m *mapState) Set(name string, v story.Value) { m.vars[name] = v }

func lit(n float64) parser.Expr { return &parser.Literal{Kind: parser.LitNumber, Number: n} }

func TestIsTruthyMatchesSpecTable(t *testing.T) {
	cases := []struct {
		name string
		v    story.Value
		want bool
	}{
		{"int zero", story.Int(0), false},
		{"float zero", story.Float(0), false},
		{"empty string", story.Str(""), false},
		{"string zero", story.Str("0"), true},
		{"string false", story.Str("false"), true},
		{"empty map", story.NewMap(), true},
		{"nil", story.Nil, false},
		{"bool false", story.Bool(false), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsTruthy(c.v))
		})
	}
}

func TestEvalMissingVariableYieldsNil(t *testing.T) {
	in := New(newMapState(), capability.AllSet(), nil)
	v, diags, err := in.Eval(&parser.VariableRef{Name: "ghost"})
	assert.Nil(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, story.KindNil, v.Kind)
}

func TestEvalDivisionByZeroYieldsNilAndWarning(t *testing.T) {
	in := New(newMapState(), capability.AllSet(), nil)
	expr := &parser.BinaryOp{Op: parser.OpDiv, Left: lit(1), Right: lit(0)}
	v, diags, err := in.Eval(expr)
	assert.Nil(t, err)
	assert.Equal(t, story.KindNil, v.Kind)
	assert.NotEmpty(t, diags)
}

func TestEvalIntegerFloatMixPromotesToFloat(t *testing.T) {
	state := newMapState()
	state.Set("n", story.Int(1))
	in := New(state, capability.AllSet(), nil)
	left := &parser.VariableRef{Name: "n"} // an Integer from state; numeric literals are always Float in the AST
	right := &parser.Literal{Kind: parser.LitNumber, Number: 2}
	v, _, err := in.Eval(&parser.BinaryOp{Op: parser.OpAdd, Left: left, Right: right})
	assert.Nil(t, err)
	assert.Equal(t, story.KindFloat, v.Kind)
}

func TestAssignRequiresStateWriteCapability(t *testing.T) {
	state := newMapState()
	in := New(state, capability.NewSet(capability.StateRead), nil)
	diags := in.Assign("hp", story.Int(10))
	assert.NotEmpty(t, diags)
	_, ok := state.Get("hp")
	assert.False(t, ok)
}

func TestExecutionBudgetAbortsTurn(t *testing.T) {
	budget := NewBudget(2, 0)
	in := New(newMapState(), capability.AllSet(), budget)
	expr := &parser.BinaryOp{Op: parser.OpAdd, Left: lit(1), Right: lit(2)}
	_, _, err := in.Eval(expr)
	assert.NotNil(t, err)
}
