// Package reparse keeps the concrete syntax tree of each open file and
// updates it incrementally as the file's text changes.
package reparse

import (
	"fmt"
	"sync"

	"github.com/jward/rubyscope/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rubyscope.reparse")

// State is the per-file parse state.
type State uint8

const (
	Unparsed State = iota
	Parsed
)

func (s State) String() string {
	if s == Parsed {
		return "parsed"
	}
	return "unparsed"
}

// Result is handed to the consumer of a parse. Tree is only valid for the
// duration of the consumer call.
type Result struct {
	Tree        *sitter.Tree
	Diagnostics []syntax.Diagnostic
	// Edit is the descriptor applied to the previous tree; nil on a first
	// parse.
	Edit *sitter.EditInput
	// Fallback is set when an edit arrived with no stored tree and was
	// handled as a first parse.
	Fallback bool
}

// Consumer reads a parse result while the file is still locked.
type Consumer func(Result) error

// Reparser tracks one tree per file identity. Operations on different
// files proceed in parallel; an operation on one file holds that file's
// lock exclusively until its consumer returns.
type Reparser struct {
	parser  syntax.Parser
	minimal bool

	mu    sync.Mutex
	files map[string]*file
}

type file struct {
	mu   sync.RWMutex
	tree *sitter.Tree
	end  syntax.Position
	// text is kept only for minimal edit descriptors.
	text []byte
}

// Option configures a Reparser.
type Option func(*Reparser)

// WithMinimalEdits derives the edited region from the common prefix and
// suffix of the old and new text instead of marking the whole document as
// changed.
func WithMinimalEdits(enabled bool) Option {
	return func(r *Reparser) { r.minimal = enabled }
}

func New(p syntax.Parser, opts ...Option) *Reparser {
	r := &Reparser{parser: p, files: make(map[string]*file)}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reparser) entry(identity string, create bool) *file {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[identity]
	if !ok && create {
		f = &file{}
		r.files[identity] = f
	}
	return f
}

// State reports whether identity has a stored tree.
func (r *Reparser) State(identity string) State {
	f := r.entry(identity, false)
	if f == nil {
		return Unparsed
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.tree == nil {
		return Unparsed
	}
	return Parsed
}

// Parse performs a first parse of src, replacing any stored tree.
func (r *Reparser) Parse(identity string, src []byte, consume Consumer) error {
	f := r.entry(identity, true)
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.parseLocked(identity, f, src, false, consume)
}

// Reparse applies the change from the stored text to src and reparses,
// reusing the unaffected parts of the stored tree. Reparsing a file with no
// stored tree is a caller bug; it is logged and handled as a first parse.
func (r *Reparser) Reparse(identity string, src []byte, consume Consumer) error {
	f := r.entry(identity, true)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tree == nil {
		log.Errorf("reparse of %s with no stored tree, falling back to a full parse", identity)
		return r.parseLocked(identity, f, src, true, consume)
	}

	newEnd := syntax.EndPosition(src)
	var (
		edit sitter.EditInput
		err  error
	)
	if r.minimal {
		edit, err = MinimalEdit(f.text, src)
	} else {
		edit, err = WholeDocumentEdit(f.end, newEnd)
	}
	if err != nil {
		return fmt.Errorf("reparse: %s: %w", identity, err)
	}

	f.tree.Edit(edit)
	tree, err := r.parser.Parse(f.tree, src)
	if err != nil {
		return fmt.Errorf("reparse: %s: %w", identity, err)
	}
	log.Debugf("reparsed %s: bytes %d..%d -> %d", identity, edit.StartIndex, edit.OldEndIndex, edit.NewEndIndex)
	return r.commitLocked(f, tree, src, newEnd, &edit, false, consume)
}

func (r *Reparser) parseLocked(identity string, f *file, src []byte, fallback bool, consume Consumer) error {
	tree, err := r.parser.Parse(nil, src)
	if err != nil {
		return fmt.Errorf("reparse: first parse of %s: %w", identity, err)
	}
	log.Debugf("parsed %s (%d bytes)", identity, len(src))
	return r.commitLocked(f, tree, src, syntax.EndPosition(src), nil, fallback, consume)
}

// commitLocked installs tree, extracts diagnostics and runs the consumer.
func (r *Reparser) commitLocked(f *file, tree *sitter.Tree, src []byte, end syntax.Position, edit *sitter.EditInput, fallback bool, consume Consumer) error {
	if f.tree != nil {
		f.tree.Close()
	}
	f.tree = tree
	f.end = end
	if r.minimal {
		f.text = append(f.text[:0], src...)
	}

	diags, err := syntax.ExtractDiagnostics(tree, src)
	if err != nil {
		return fmt.Errorf("reparse: %w", err)
	}
	if consume == nil {
		return nil
	}
	return consume(Result{Tree: tree, Diagnostics: diags, Edit: edit, Fallback: fallback})
}

// View runs fn with shared access to the stored tree. It reports false when
// identity has none.
func (r *Reparser) View(identity string, fn func(*sitter.Tree)) bool {
	f := r.entry(identity, false)
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.tree == nil {
		return false
	}
	fn(f.tree)
	return true
}

// Forget drops the stored tree for identity.
func (r *Reparser) Forget(identity string) {
	r.mu.Lock()
	f, ok := r.files[identity]
	delete(r.files, identity)
	r.mu.Unlock()
	if !ok {
		return
	}
	f.mu.Lock()
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
	f.mu.Unlock()
}

// Close releases every stored tree.
func (r *Reparser) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.files))
	for id := range r.files {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Forget(id)
	}
}
