package reparse

import (
	"github.com/jward/rubyscope/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// WholeDocumentEdit describes a change that replaces the entire document:
// it starts at byte 0 and runs to the old end, which becomes the new end.
func WholeDocumentEdit(oldEnd, newEnd syntax.Position) (sitter.EditInput, error) {
	return newEdit(0, oldEnd.Byte, newEnd.Byte, syntax.Point{}, oldEnd.Point, newEnd.Point)
}

// MinimalEdit describes the change from before to after as the region
// between their common prefix and common suffix.
func MinimalEdit(before, after []byte) (sitter.EditInput, error) {
	prefix := 0
	for prefix < len(before) && prefix < len(after) && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(before)-prefix && suffix < len(after)-prefix &&
		before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}
	oldEnd := len(before) - suffix
	newEnd := len(after) - suffix

	return newEdit(prefix, oldEnd, newEnd,
		syntax.EndPosition(before[:prefix]).Point,
		syntax.EndPosition(before[:oldEnd]).Point,
		syntax.EndPosition(after[:newEnd]).Point,
	)
}

func newEdit(start, oldEnd, newEnd int, startPt, oldEndPt, newEndPt syntax.Point) (sitter.EditInput, error) {
	var (
		in  sitter.EditInput
		err error
	)
	if in.StartIndex, err = syntax.ToSitterOffset(start); err != nil {
		return in, err
	}
	if in.OldEndIndex, err = syntax.ToSitterOffset(oldEnd); err != nil {
		return in, err
	}
	if in.NewEndIndex, err = syntax.ToSitterOffset(newEnd); err != nil {
		return in, err
	}
	if in.StartPoint, err = syntax.ToSitter(startPt); err != nil {
		return in, err
	}
	if in.OldEndPoint, err = syntax.ToSitter(oldEndPt); err != nil {
		return in, err
	}
	if in.NewEndPoint, err = syntax.ToSitter(newEndPt); err != nil {
		return in, err
	}
	return in, nil
}
