package syntax

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"
)

// Point is a zero-based row and byte column.
type Point struct {
	Row    int `json:"row" msgpack:"row"`
	Column int `json:"column" msgpack:"column"`
}

func (p Point) String() string { return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1) }

// Position is the end-of-text position of a document: its length in
// bytes and the row/column just past its last byte.
type Position struct {
	Byte  int
	Point Point
}

// EndPosition computes the end-of-text position of src.
func EndPosition(src []byte) Position {
	rows := bytes.Count(src, []byte{'\n'})
	lastLine := 0
	if i := bytes.LastIndexByte(src, '\n'); i >= 0 {
		lastLine = i + 1
	}
	return Position{
		Byte:  len(src),
		Point: Point{Row: rows, Column: len(src) - lastLine},
	}
}

// FromSitter converts a tree-sitter point.
func FromSitter(p sitter.Point) Point {
	return Point{Row: int(p.Row), Column: int(p.Column)}
}

// ToSitter converts a point for use in an edit descriptor.
func ToSitter(p Point) (sitter.Point, error) {
	row, err := safecast.Conv[uint32](p.Row)
	if err != nil {
		return sitter.Point{}, fmt.Errorf("syntax: row %d: %w", p.Row, err)
	}
	col, err := safecast.Conv[uint32](p.Column)
	if err != nil {
		return sitter.Point{}, fmt.Errorf("syntax: column %d: %w", p.Column, err)
	}
	return sitter.Point{Row: row, Column: col}, nil
}

// ToSitterOffset converts a byte offset for use in an edit descriptor.
func ToSitterOffset(offset int) (uint32, error) {
	v, err := safecast.Conv[uint32](offset)
	if err != nil {
		return 0, fmt.Errorf("syntax: offset %d: %w", offset, err)
	}
	return v, nil
}

// LineIndex maps between byte offsets and row/column positions of one
// immutable text. Columns are available in bytes and in UTF-16 code units.
type LineIndex struct {
	text   string
	starts []int
}

func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Lines is the number of rows, at least 1.
func (li *LineIndex) Lines() int { return len(li.starts) }

// Point returns the row and byte column of offset, clamped to the text.
func (li *LineIndex) Point(offset int) Point {
	offset = min(max(offset, 0), len(li.text))
	row := sort.SearchInts(li.starts, offset+1) - 1
	return Point{Row: row, Column: offset - li.starts[row]}
}

// Offset returns the byte offset of a row and byte column, clamped to the
// row's extent.
func (li *LineIndex) Offset(p Point) int {
	if p.Row < 0 {
		return 0
	}
	if p.Row >= len(li.starts) {
		return len(li.text)
	}
	start, end := li.lineBounds(p.Row)
	return min(start+max(p.Column, 0), end)
}

// UTF16Point returns the row and UTF-16 column of offset.
func (li *LineIndex) UTF16Point(offset int) Point {
	p := li.Point(offset)
	start := li.starts[p.Row]
	return Point{Row: p.Row, Column: utf16Len(li.text[start : start+p.Column])}
}

// OffsetUTF16 converts a row and UTF-16 column to a byte offset. Columns
// past the end of the row clamp to the row end; a column that falls inside
// a surrogate pair resolves to the start of that rune.
func (li *LineIndex) OffsetUTF16(p Point) int {
	if p.Row < 0 {
		return 0
	}
	if p.Row >= len(li.starts) {
		return len(li.text)
	}
	start, end := li.lineBounds(p.Row)
	units := 0
	for i := start; i < end; {
		r, size := utf8.DecodeRuneInString(li.text[i:end])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > p.Column {
			return i
		}
		units += n
		i += size
	}
	return end
}

// lineBounds returns the byte range of row, excluding its newline.
func (li *LineIndex) lineBounds(row int) (int, int) {
	start := li.starts[row]
	end := len(li.text)
	if row+1 < len(li.starts) {
		end = li.starts[row+1] - 1
	}
	return start, end
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
