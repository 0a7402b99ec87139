// Package diagnostics provides source positions, spans, and diagnostic
// records shared by every front-end and runtime subsystem in Whisker.
package diagnostics

import "strings"

// Position is a 1-based line/column, 0-based byte offset into a SourceFile.
type Position struct {
	Line   int
	Column int
	Offset int
}

// tabWidth is the column boundary tabs advance to, per spec §4.1.
const tabWidth = 8

// Advance updates p in place for having consumed rune ch, and returns the
// updated position. Newlines reset the column; tabs advance to the next
// 8-column boundary; everything else advances one column.
func (p Position) Advance(ch rune) Position {
	next := p
	next.Offset += utf8RuneLen(ch)
	switch ch {
	case '\n':
		next.Line++
		next.Column = 1
	case '\t':
		next.Column += tabWidth - ((next.Column - 1) % tabWidth)
	default:
		next.Column++
	}
	return next
}

// utf8RuneLen avoids importing unicode/utf8 solely for this.
func utf8RuneLen(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}

// Span covers a half-open range [Start, End) within a single SourceFile.
type Span struct {
	Start Position
	End   Position
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	merged := s
	if other.Start.Offset < merged.Start.Offset {
		merged.Start = other.Start
	}
	if other.End.Offset > merged.End.Offset {
		merged.End = other.End
	}
	return merged
}

// Location ties a Span to the file it was found in.
type Location struct {
	Path string
	Span Span
}

// File is a named source buffer with a lazily computed line index.
type File struct {
	Path    string
	Content string

	lineOffsets []int // byte offset of the start of each line; computed lazily
}

// NewFile constructs a File. The line index is built on first use.
func NewFile(path, content string) *File {
	return &File{Path: path, Content: content}
}

func (f *File) ensureIndex() {
	if f.lineOffsets != nil {
		return
	}
	offsets := []int{0}
	for i, b := range []byte(f.Content) {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	f.lineOffsets = offsets
}

// Line returns the 1-based line's text, without its trailing newline.
func (f *File) Line(n int) string {
	f.ensureIndex()
	if n < 1 || n > len(f.lineOffsets) {
		return ""
	}
	start := f.lineOffsets[n-1]
	end := len(f.Content)
	if n < len(f.lineOffsets) {
		end = f.lineOffsets[n] - 1
	}
	if end < start {
		end = start
	}
	line := f.Content[start:end]
	return strings.TrimSuffix(line, "\r")
}

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int {
	f.ensureIndex()
	return len(f.lineOffsets)
}
