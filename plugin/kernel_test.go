package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/writewhisker/whisker-core/capability"
)

type fakeState struct {
	vars map[string]interface{}
}

func (f *fakeState) Get(name string) (interface{}, bool) { v, ok := f.vars[name]; return v, ok }
func (f *fakeState) Set(name string, v interface{}) error { f.vars[name] = v; return nil }

func TestCapabilityDenialBlocksWriteButNotDeclaredRead(t *testing.T) {
	state := &fakeState{vars: map[string]interface{}{"hp": 10}}
	k := NewKernel(func(string) StateAccessor { return state }, nil)

	m := &Manifest{
		Name:         "community-hp",
		Version:      "1.0.0",
		Capabilities: capability.NewSet(capability.StateRead),
	}
	assert.NoError(t, k.Load(m))

	ctx := k.contextFor(m)
	gated := ctx.State()

	setErr := gated.Set("hp", 10)
	assert.NotNil(t, setErr)

	v, getErr := gated.Get("hp")
	assert.Nil(t, getErr)
	assert.Equal(t, 10, v)
}

func TestCircularDependencyFailsLoad(t *testing.T) {
	k := NewKernel(nil, nil)
	a := &Manifest{Name: "a", Version: "1.0.0", Dependencies: map[string]string{"b": "*"}}
	b := &Manifest{Name: "b", Version: "1.0.0", Dependencies: map[string]string{"a": "*"}}
	err := k.Load(a, b)
	assert.Error(t, err)
}

func TestObserverDispatchRunsInPriorityThenRegistrationOrder(t *testing.T) {
	k := NewKernel(nil, nil)
	var calls []string

	low := &Manifest{Name: "low", Version: "1.0.0", Observers: map[HookName][]ObserverBinding{
		HookPassageEnter: {{Priority: 10, Handler: func(ctx *Context, payload interface{}) { calls = append(calls, "low") }}},
	}}
	high := &Manifest{Name: "high", Version: "1.0.0", Observers: map[HookName][]ObserverBinding{
		HookPassageEnter: {{Priority: 90, Handler: func(ctx *Context, payload interface{}) { calls = append(calls, "high") }}},
	}}
	assert.NoError(t, k.Load(low, high))

	k.DispatchObserver(HookPassageEnter, nil)
	assert.Equal(t, []string{"low", "high"}, calls)
}

func TestTransformDispatchLeftFoldsAndNilMeansNoChange(t *testing.T) {
	k := NewKernel(nil, nil)
	doubler := &Manifest{Name: "doubler", Version: "1.0.0", Transforms: map[HookName][]TransformBinding{
		HookPassageRender: {{Priority: 10, Handler: func(ctx *Context, v interface{}) (interface{}, bool) {
			return v.(int) * 2, true
		}}},
	}}
	noop := &Manifest{Name: "noop", Version: "1.0.0", Transforms: map[HookName][]TransformBinding{
		HookPassageRender: {{Priority: 20, Handler: func(ctx *Context, v interface{}) (interface{}, bool) {
			return nil, false
		}}},
	}}
	assert.NoError(t, k.Load(doubler, noop))

	result := k.DispatchTransform(HookPassageRender, 5)
	assert.Equal(t, 10, result)
}

func TestErroredPluginSkippedForDispatch(t *testing.T) {
	k := NewKernel(nil, nil)
	boom := &Manifest{
		Name:    "boom",
		Version: "1.0.0",
		OnInit:  func(ctx *Context) error { return assert.AnError },
		Observers: map[HookName][]ObserverBinding{
			HookPassageEnter: {{Priority: 10, Handler: func(ctx *Context, payload interface{}) {
				t.Fatal("errored plugin handler must not run")
			}}},
		},
	}
	err := k.Load(boom)
	assert.Error(t, err)
	st, ok := k.State("boom")
	assert.True(t, ok)
	assert.Equal(t, StateErrored, st)

	k.DispatchObserver(HookPassageEnter, nil)
}
