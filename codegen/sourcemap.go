// Package codegen lowers the annotated AST (parser.Document plus the
// semantic.Table built over it) into the Story IR of the story package,
// optionally recording a VLQ-encoded Source Map v3 from generated
// positions back to source positions (spec §4.5).
package codegen

import (
	"encoding/json"
	"fmt"
	"strings"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// segment is one VLQ-encoded mapping within a single generated line:
// [genColumn, sourceIndex, sourceLine, sourceColumn] delta-encoded against
// the previous segment on the same line, per the Source Map v3 spec.
type segment struct {
	genColumn    int
	sourceIndex  int
	sourceLine   int
	sourceColumn int
}

// SourceMap accumulates mappings for one generated artifact (spec §4.5);
// it is optional and orthogonal to the Story IR it describes.
type SourceMap struct {
	File    string
	Sources []string

	lines         [][]segment
	prevSource    int
	prevSrcLine   int
	prevSrcColumn int
	haveOnLine    bool
}

// NewSourceMap creates an empty map over the named generated file.
func NewSourceMap(file string) *SourceMap {
	return &SourceMap{File: file}
}

// sourceIndex returns the index of path within Sources, appending it if
// this is the first mapping referencing it.
func (m *SourceMap) sourceIndex(path string) int {
	for i, s := range m.Sources {
		if s == path {
			return i
		}
	}
	m.Sources = append(m.Sources, path)
	return len(m.Sources) - 1
}

// Add records a mapping from a generated (line, column) — both 0-based —
// to a source (path, line, column), also 0-based.
func (m *SourceMap) Add(genLine, genColumn int, sourcePath string, srcLine, srcColumn int) {
	for len(m.lines) <= genLine {
		m.lines = append(m.lines, nil)
	}
	m.lines[genLine] = append(m.lines[genLine], segment{
		genColumn:    genColumn,
		sourceIndex:  m.sourceIndex(sourcePath),
		sourceLine:   srcLine,
		sourceColumn: srcColumn,
	})
}

// encodedMappings is the Source Map v3 "mappings" field: semicolon-
// separated generated lines, each a comma-separated list of VLQ groups,
// every field delta-encoded against the previous segment on the line,
// with the source index/line/column running cumulatively across the
// whole map (per the spec, not reset per line).
func (m *SourceMap) encodedMappings() string {
	var lines []string
	prevSource, prevLine, prevCol := 0, 0, 0
	for _, segs := range m.lines {
		var groups []string
		prevGenCol := 0
		for _, s := range segs {
			var vlq strings.Builder
			encodeVLQ(&vlq, s.genColumn-prevGenCol)
			encodeVLQ(&vlq, s.sourceIndex-prevSource)
			encodeVLQ(&vlq, s.sourceLine-prevLine)
			encodeVLQ(&vlq, s.sourceColumn-prevCol)
			groups = append(groups, vlq.String())
			prevGenCol = s.genColumn
			prevSource = s.sourceIndex
			prevLine = s.sourceLine
			prevCol = s.sourceColumn
		}
		lines = append(lines, strings.Join(groups, ","))
	}
	return strings.Join(lines, ";")
}

// v3Doc is the on-disk Source Map v3 JSON shape.
type v3Doc struct {
	Version  int      `json:"version"`
	File     string   `json:"file"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Marshal renders the map as Source Map v3 JSON.
func (m *SourceMap) Marshal() ([]byte, error) {
	doc := v3Doc{
		Version:  3,
		File:     m.File,
		Sources:  m.Sources,
		Names:    []string{},
		Mappings: m.encodedMappings(),
	}
	return json.Marshal(doc)
}

// Resolve returns the source location mapped to generated (line, column),
// or false if no mapping covers it. It picks the last segment on the
// line whose genColumn is <= column, matching standard source-map lookup
// semantics (a mapping covers everything up to the next one).
func (m *SourceMap) Resolve(genLine, genColumn int) (sourcePath string, srcLine, srcColumn int, ok bool) {
	if genLine < 0 || genLine >= len(m.lines) {
		return "", 0, 0, false
	}
	segs := m.lines[genLine]
	var best *segment
	for i := range segs {
		if segs[i].genColumn <= genColumn {
			best = &segs[i]
		}
	}
	if best == nil {
		return "", 0, 0, false
	}
	if best.sourceIndex < 0 || best.sourceIndex >= len(m.Sources) {
		return "", 0, 0, false
	}
	return m.Sources[best.sourceIndex], best.sourceLine, best.sourceColumn, true
}

// encodeVLQ appends the Base64-VLQ encoding of n to b, per the Source Map
// v3 spec: the sign occupies the low bit, values are emitted 5 bits at a
// time least-significant-group-first, and every group but the last has
// its continuation bit (0x20) set.
func encodeVLQ(b *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		b.WriteByte(base64Chars[digit])
		if v == 0 {
			break
		}
	}
}

// decodeVLQ reads one Base64-VLQ value starting at s[0], returning the
// value and the number of runes consumed.
func decodeVLQ(s string) (int, int, error) {
	result := 0
	shift := 0
	consumed := 0
	for _, ch := range s {
		consumed++
		digit := strings.IndexByte(base64Chars, byte(ch))
		if digit < 0 {
			return 0, 0, fmt.Errorf("codegen: invalid VLQ character %q", ch)
		}
		cont := digit & 0x20
		result |= (digit & 0x1f) << shift
		if cont == 0 {
			if result&1 == 1 {
				return -(result >> 1), consumed, nil
			}
			return result >> 1, consumed, nil
		}
		shift += 5
	}
	return 0, 0, fmt.Errorf("codegen: truncated VLQ sequence")
}

// DecodeMappings parses a Source Map v3 "mappings" string back into a
// SourceMap's line/segment structure, cumulative fields reconstructed in
// the same running order they were encoded in.
func DecodeMappings(file string, sources []string, mappings string) (*SourceMap, error) {
	m := &SourceMap{File: file, Sources: append([]string(nil), sources...)}
	prevSource, prevLine, prevCol := 0, 0, 0
	for lineNum, line := range strings.Split(mappings, ";") {
		if line == "" {
			m.lines = append(m.lines, nil)
			continue
		}
		var segs []segment
		prevGenCol := 0
		for _, group := range strings.Split(line, ",") {
			if group == "" {
				continue
			}
			rest := group
			vals := make([]int, 0, 4)
			for len(rest) > 0 {
				n, consumed, err := decodeVLQ(rest)
				if err != nil {
					return nil, fmt.Errorf("codegen: decoding mappings line %d: %w", lineNum, err)
				}
				vals = append(vals, n)
				rest = rest[consumed:]
			}
			if len(vals) < 4 {
				return nil, fmt.Errorf("codegen: malformed mapping group %q on line %d", group, lineNum)
			}
			genCol := prevGenCol + vals[0]
			srcIdx := prevSource + vals[1]
			srcLine := prevLine + vals[2]
			srcCol := prevCol + vals[3]
			segs = append(segs, segment{genColumn: genCol, sourceIndex: srcIdx, sourceLine: srcLine, sourceColumn: srcCol})
			prevGenCol, prevSource, prevLine, prevCol = genCol, srcIdx, srcLine, srcCol
		}
		m.lines = append(m.lines, segs)
	}
	return m, nil
}
