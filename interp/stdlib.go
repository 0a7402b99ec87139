package interp

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/story"
)

// stdlibFunc is one restricted standard library entry point, per spec
// §4.9's enumeration: pure math, pure strings, pure arrays/maps, and
// coarse read-only time. Nothing here touches the filesystem, network,
// process state, or host reflection.
type stdlibFunc func(args []story.Value) (story.Value, []diagnostics.Diagnostic)

var processStart = time.Now()

var stdlib = map[string]stdlibFunc{
	"min":       fnMin,
	"max":       fnMax,
	"abs":       fnAbs,
	"floor":     fnFloor,
	"ceil":      fnCeil,
	"round":     fnRound,
	"sqrt":      fnSqrt,
	"pow":       fnPow,
	"length":    fnLength,
	"substring": fnSubstring,
	"upper":     fnUpper,
	"lower":     fnLower,
	"trim":      fnTrim,
	"find":      fnFind,
	"replace":   fnReplace,
	"split":     fnSplit,
	"join":      fnJoin,
	"append":    fnAppend,
	"remove_at": fnRemoveAt,
	"contains":  fnContains,
	"keys":      fnKeys,
	"values":    fnValues,
	"now":       fnNow,
	"elapsed":   fnElapsed,
}

func argErr(fn string) []diagnostics.Diagnostic {
	return []diagnostics.Diagnostic{diagnostics.NewWarning(diagnostics.CodeMalformedAST, fn+"(): wrong argument count or type")}
}

func num(args []story.Value, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return args[i].AsNumber()
}

func str(args []story.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	return args[i].AsString()
}

func intArg(args []story.Value, i int) (int, bool) {
	n, ok := num(args, i)
	if !ok {
		return 0, false
	}
	return int(n), true
}

func fnMin(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok1 := num(args, 0)
	b, ok2 := num(args, 1)
	if !ok1 || !ok2 {
		return story.Nil, argErr("min")
	}
	if a < b {
		return story.Float(a), nil
	}
	return story.Float(b), nil
}

func fnMax(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok1 := num(args, 0)
	b, ok2 := num(args, 1)
	if !ok1 || !ok2 {
		return story.Nil, argErr("max")
	}
	if a > b {
		return story.Float(a), nil
	}
	return story.Float(b), nil
}

func fnAbs(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok := num(args, 0)
	if !ok {
		return story.Nil, argErr("abs")
	}
	return story.Float(math.Abs(a)), nil
}

func fnFloor(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok := num(args, 0)
	if !ok {
		return story.Nil, argErr("floor")
	}
	return story.Float(math.Floor(a)), nil
}

func fnCeil(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok := num(args, 0)
	if !ok {
		return story.Nil, argErr("ceil")
	}
	return story.Float(math.Ceil(a)), nil
}

func fnRound(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok := num(args, 0)
	if !ok {
		return story.Nil, argErr("round")
	}
	return story.Float(math.Round(a)), nil
}

func fnSqrt(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok := num(args, 0)
	if !ok {
		return story.Nil, argErr("sqrt")
	}
	return story.Float(math.Sqrt(a)), nil
}

func fnPow(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	a, ok1 := num(args, 0)
	b, ok2 := num(args, 1)
	if !ok1 || !ok2 {
		return story.Nil, argErr("pow")
	}
	return story.Float(math.Pow(a, b)), nil
}

func fnLength(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 1 {
		return story.Nil, argErr("length")
	}
	switch args[0].Kind {
	case story.KindString:
		s, _ := args[0].AsString()
		return story.Int(int64(len(s))), nil
	case story.KindArray:
		return story.Int(int64(len(args[0].Array()))), nil
	case story.KindMap:
		return story.Int(int64(len(args[0].Keys()))), nil
	default:
		return story.Nil, argErr("length")
	}
}

// fnSubstring takes 1-indexed, inclusive surface indices per spec §3's
// "1-indexed surface array bias"; the interpreter translates to Go's
// 0-indexed, half-open slicing internally.
func fnSubstring(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok := str(args, 0)
	start, ok2 := intArg(args, 1)
	end, ok3 := intArg(args, 2)
	if !ok || !ok2 || !ok3 {
		return story.Nil, argErr("substring")
	}
	runes := []rune(s)
	lo := start - 1
	if lo < 0 {
		lo = 0
	}
	if lo > len(runes) {
		lo = len(runes)
	}
	hi := end
	if hi > len(runes) {
		hi = len(runes)
	}
	if hi < lo {
		hi = lo
	}
	return story.Str(string(runes[lo:hi])), nil
}

func fnUpper(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok := str(args, 0)
	if !ok {
		return story.Nil, argErr("upper")
	}
	return story.Str(strings.ToUpper(s)), nil
}

func fnLower(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok := str(args, 0)
	if !ok {
		return story.Nil, argErr("lower")
	}
	return story.Str(strings.ToLower(s)), nil
}

func fnTrim(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok := str(args, 0)
	if !ok {
		return story.Nil, argErr("trim")
	}
	return story.Str(strings.TrimSpace(s)), nil
}

func fnFind(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok1 := str(args, 0)
	needle, ok2 := str(args, 1)
	if !ok1 || !ok2 {
		return story.Nil, argErr("find")
	}
	idx := strings.Index(s, needle)
	if idx < 0 {
		return story.Int(-1), nil
	}
	return story.Int(int64(len([]rune(s[:idx]))) + 1), nil
}

func fnReplace(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok1 := str(args, 0)
	from, ok2 := str(args, 1)
	to, ok3 := str(args, 2)
	if !ok1 || !ok2 || !ok3 {
		return story.Nil, argErr("replace")
	}
	return story.Str(strings.ReplaceAll(s, from, to)), nil
}

func fnSplit(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	s, ok1 := str(args, 0)
	sep, ok2 := str(args, 1)
	if !ok1 || !ok2 {
		return story.Nil, argErr("split")
	}
	parts := strings.Split(s, sep)
	items := make([]story.Value, len(parts))
	for i, p := range parts {
		items[i] = story.Str(p)
	}
	return story.Arr(items...), nil
}

func fnJoin(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 2 || args[0].Kind != story.KindArray {
		return story.Nil, argErr("join")
	}
	sep, ok := str(args, 1)
	if !ok {
		return story.Nil, argErr("join")
	}
	parts := make([]string, 0, len(args[0].Array()))
	for _, v := range args[0].Array() {
		parts = append(parts, v.String())
	}
	return story.Str(strings.Join(parts, sep)), nil
}

func fnAppend(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 2 || args[0].Kind != story.KindArray {
		return story.Nil, argErr("append")
	}
	items := append([]story.Value(nil), args[0].Array()...)
	items = append(items, args[1])
	return story.Arr(items...), nil
}

func fnRemoveAt(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 2 || args[0].Kind != story.KindArray {
		return story.Nil, argErr("remove_at")
	}
	idx, ok := intArg(args, 1)
	if !ok {
		return story.Nil, argErr("remove_at")
	}
	src := args[0].Array()
	i := idx - 1 // 1-indexed surface syntax
	if i < 0 || i >= len(src) {
		return args[0], argErr("remove_at")
	}
	out := make([]story.Value, 0, len(src)-1)
	out = append(out, src[:i]...)
	out = append(out, src[i+1:]...)
	return story.Arr(out...), nil
}

func fnContains(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 2 {
		return story.Nil, argErr("contains")
	}
	switch args[0].Kind {
	case story.KindArray:
		for _, v := range args[0].Array() {
			if story.Equal(v, args[1]) {
				return story.Bool(true), nil
			}
		}
		return story.Bool(false), nil
	case story.KindMap:
		key, ok := args[1].AsString()
		if !ok {
			return story.Nil, argErr("contains")
		}
		_, found := args[0].Get(key)
		return story.Bool(found), nil
	case story.KindString:
		s, _ := args[0].AsString()
		needle, ok := args[1].AsString()
		if !ok {
			return story.Nil, argErr("contains")
		}
		return story.Bool(strings.Contains(s, needle)), nil
	default:
		return story.Nil, argErr("contains")
	}
}

func fnKeys(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 1 || args[0].Kind != story.KindMap {
		return story.Nil, argErr("keys")
	}
	ks := args[0].Keys()
	items := make([]story.Value, len(ks))
	for i, k := range ks {
		items[i] = story.Str(k)
	}
	return story.Arr(items...), nil
}

func fnValues(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	if len(args) != 1 || args[0].Kind != story.KindMap {
		return story.Nil, argErr("values")
	}
	ks := args[0].Keys()
	items := make([]story.Value, 0, len(ks))
	for _, k := range ks {
		v, _ := args[0].Get(k)
		items = append(items, v)
	}
	return story.Arr(items...), nil
}

func fnNow(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	return story.Int(time.Now().UnixMilli()), nil
}

// fnElapsed returns monotonic milliseconds since the interpreter package
// was first loaded, read-only and coarse per spec §4.9.
func fnElapsed(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
	return story.Int(int64(time.Since(processStart) / time.Millisecond)), nil
}

// sortArray sorts an array in place by a named comparator, used by the "sort" builtin exposed through FunctionCall with
// name "sort" — comparator must be one of the pure ordering helpers
// ("asc_number", "asc_string"); arbitrary callback expressions are not
// supported since the interpreter has no closures over Expr.
func sortArray(items []story.Value, comparator string) {
	switch comparator {
	case "asc_string":
		sort.Slice(items, func(i, j int) bool {
			si, _ := items[i].AsString()
			sj, _ := items[j].AsString()
			return si < sj
		})
	default: // "asc_number" and unrecognized comparators fall back to numeric order
		sort.Slice(items, func(i, j int) bool {
			ni, _ := items[i].AsNumber()
			nj, _ := items[j].AsNumber()
			return ni < nj
		})
	}
}

func init() {
	stdlib["sort"] = func(args []story.Value) (story.Value, []diagnostics.Diagnostic) {
		if len(args) < 1 || args[0].Kind != story.KindArray {
			return story.Nil, argErr("sort")
		}
		comparator := "asc_number"
		if c, ok := str(args, 1); ok {
			comparator = c
		}
		items := append([]story.Value(nil), args[0].Array()...)
		sortArray(items, comparator)
		return story.Arr(items...), nil
	}
}
