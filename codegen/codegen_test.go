package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/lexer"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/semantic"
)

func lower(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	file := diagnostics.NewFile("t.wsk", src)
	toks := lexer.New(file).Tokenize()
	doc, parseDiags := parser.New(file, toks).Parse()
	require.Empty(t, errorsOf(parseDiags))
	table, semDiags := semantic.Analyze(doc, semantic.DefaultOptions())
	require.False(t, diagnostics.HasFatal(semDiags))
	return Lower(doc, table, opts)
}

func errorsOf(diags []diagnostics.Diagnostic) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range diags {
		if d.Severity == diagnostics.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func TestLowerProducesValidStory(t *testing.T) {
	src := ":: Start\nHello\n+ [Go] -> End\n:: End\nBye"
	result := lower(t, src, Options{Title: "T", StartPassageID: "Start"})
	require.Empty(t, result.Story.Validate())
	assert.Len(t, result.Story.GetAllPassages(), 2)
	assert.Nil(t, result.SourceMap)
}

func TestLowerWithSourceMapRoundTrips(t *testing.T) {
	src := ":: Start\nHello\n:: End\nBye"
	result := lower(t, src, Options{Title: "T", StartPassageID: "Start", EmitSourceMap: true, SourcePath: "t.wsk"})
	require.NotNil(t, result.SourceMap)

	raw, err := result.SourceMap.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":3`)

	path, line, col, ok := result.SourceMap.Resolve(0, 0)
	require.True(t, ok)
	assert.Equal(t, "t.wsk", path)
	assert.GreaterOrEqual(t, line, 0)
	assert.GreaterOrEqual(t, col, 0)
}

func TestVLQRoundTrip(t *testing.T) {
	sm := NewSourceMap("gen.wsk")
	sm.Add(0, 0, "a.wsk", 0, 0)
	sm.Add(0, 5, "a.wsk", 1, 2)
	sm.Add(1, 0, "b.wsk", 3, 0)

	raw, err := sm.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeMappings("gen.wsk", sm.Sources, sm.encodedMappings())
	require.NoError(t, err)

	p, l, c, ok := decoded.Resolve(0, 5)
	require.True(t, ok)
	assert.Equal(t, "a.wsk", p)
	assert.Equal(t, 1, l)
	assert.Equal(t, 2, c)

	p, l, c, ok = decoded.Resolve(1, 0)
	require.True(t, ok)
	assert.Equal(t, "b.wsk", p)
	assert.Equal(t, 3, l)
	assert.Equal(t, 0, c)

	_ = raw
}

func TestVLQHandlesNegativeDeltas(t *testing.T) {
	sm := NewSourceMap("gen.wsk")
	sm.Add(0, 0, "a.wsk", 10, 10)
	sm.Add(0, 2, "a.wsk", 0, 0) // negative deltas against the previous segment

	decoded, err := DecodeMappings("gen.wsk", sm.Sources, sm.encodedMappings())
	require.NoError(t, err)
	_, l, c, ok := decoded.Resolve(0, 2)
	require.True(t, ok)
	assert.Equal(t, 0, l)
	assert.Equal(t, 0, c)
}
