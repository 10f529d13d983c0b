package store

import "time"

type File struct {
	ID          int64
	Path        string
	Hash        string
	Generation  uint64
	Failed      bool
	NodeCount   int
	LastIndexed time.Time
}

// Scope is one scope-introducing definition, or the root row of a file
// (Kind "root", empty Path).
type Scope struct {
	ID            int64
	FileID        int64
	ParentScopeID *int64
	Kind          string
	Name          string
	Path          string
	Depth         int
	NodeID        *int64
	StartByte     int
	EndByte       int
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
}

type Node struct {
	ID        int64
	FileID    int64
	ScopeID   *int64
	NodeID    int64
	Kind      string
	StartByte int
	EndByte   int
}

type Diagnostic struct {
	ID            int64
	FileID        int64
	Kind          string
	ConstructKind string
	StartByte     int
	EndByte       int
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	Snippet       string
}
