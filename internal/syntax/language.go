// Package syntax wraps the tree-sitter Ruby grammar: parsing, diagnostic
// extraction and conversions between byte offsets and row/column points.
package syntax

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// LanguageID is the editor language id for Ruby documents.
const LanguageID = "ruby"

var rubyExts = map[string]bool{
	".rb":      true,
	".rake":    true,
	".gemspec": true,
	".ru":      true,
	".rbw":     true,
}

var rubyNames = map[string]bool{
	"Rakefile":  true,
	"Gemfile":   true,
	"Guardfile": true,
}

// grammar is initialized on first use.
var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the Ruby grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = ruby.GetLanguage()
	})
	return grammar
}

// IsRubyFile reports whether path names a Ruby source file, by extension
// or by one of the conventional extensionless names.
func IsRubyFile(path string) bool {
	base := filepath.Base(path)
	if rubyNames[base] {
		return true
	}
	return rubyExts[strings.ToLower(filepath.Ext(base))]
}
