package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser produces a concrete syntax tree. When old is non-nil it has
// already been edited to match src and is used as a reuse base.
type Parser interface {
	Parse(old *sitter.Tree, src []byte) (*sitter.Tree, error)
}

// TreeSitter is the Ruby parser. A fresh sitter.Parser is created per
// call since tree-sitter parsers are not safe for concurrent use.
type TreeSitter struct{}

func NewParser() *TreeSitter { return &TreeSitter{} }

// Parse always runs to completion: no deadline or cancellation flag is
// installed on the underlying parser.
func (TreeSitter) Parse(old *sitter.Tree, src []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(Language())

	tree, err := p.ParseCtx(context.Background(), old, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("syntax: parse: parser returned no tree")
	}
	return tree, nil
}
