package store

// Reader is the read side of the store used by scripts and the CLI.
// Writes go through CommitBatch only.
type Reader interface {
	FileByPath(path string) (*File, error)
	Files() ([]*File, error)
	ScopesByFile(fileID int64) ([]*Scope, error)
	ScopesByName(name string) ([]*Scope, error)
	ScopesByPath(path string) ([]*Scope, error)
	ScopeChain(scopeID int64) ([]*Scope, error)
	NodesInScope(scopeID int64) ([]*Node, error)
	DiagnosticsByFile(fileID int64) ([]*Diagnostic, error)
}

// Compile-time check: *Store satisfies Reader.
var _ Reader = (*Store)(nil)
