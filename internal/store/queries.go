package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

const fileCols = `id, path, hash, generation, failed, node_count, last_indexed`

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var gen int64
	err := scanner.Scan(&f.ID, &f.Path, &f.Hash, &gen, &f.Failed, &f.NodeCount, &f.LastIndexed)
	if err != nil {
		return nil, err
	}
	f.Generation = uint64(gen)
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileByPath returns nil, nil when the path was never committed.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) Files() ([]*File, error) {
	files, err := s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

func (s *Store) FilesByPaths(paths []string) ([]*File, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	files, err := s.queryFiles(
		"SELECT "+fileCols+" FROM files WHERE path IN ("+placeholderList(len(paths))+") ORDER BY path",
		stringsToArgs(paths)...,
	)
	if err != nil {
		return nil, fmt.Errorf("files by paths: %w", err)
	}
	return files, nil
}

// DeleteFile removes a file and, by cascade, all of its rows.
func (s *Store) DeleteFile(path string) error {
	if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// --- Scope operations ---

const scopeCols = `id, file_id, parent_scope_id, kind, name, path, depth, node_id,
	start_byte, end_byte, start_line, start_col, end_line, end_col`

func scanScope(scanner interface{ Scan(...any) error }) (*Scope, error) {
	sc := &Scope{}
	err := scanner.Scan(
		&sc.ID, &sc.FileID, &sc.ParentScopeID, &sc.Kind, &sc.Name, &sc.Path, &sc.Depth, &sc.NodeID,
		&sc.StartByte, &sc.EndByte, &sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol,
	)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Store) queryScopes(query string, args ...any) ([]*Scope, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

func (s *Store) ScopeByID(id int64) (*Scope, error) {
	sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scope by id: %w", err)
	}
	return sc, nil
}

// ScopesByFile returns a file's scopes in source order, root first.
func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	scopes, err := s.queryScopes(
		"SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY start_byte, depth, id", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	return scopes, nil
}

// ScopesByName finds definitions by their last path segment across files.
func (s *Store) ScopesByName(name string) ([]*Scope, error) {
	scopes, err := s.queryScopes(
		"SELECT "+scopeCols+" FROM scopes WHERE name = ? ORDER BY file_id, start_byte", name)
	if err != nil {
		return nil, fmt.Errorf("scopes by name: %w", err)
	}
	return scopes, nil
}

// ScopesByPath finds definitions by their rendered path, e.g. "Foo::Bar#baz".
func (s *Store) ScopesByPath(path string) ([]*Scope, error) {
	scopes, err := s.queryScopes(
		"SELECT "+scopeCols+" FROM scopes WHERE path = ? AND kind != 'root' ORDER BY file_id, start_byte", path)
	if err != nil {
		return nil, fmt.Errorf("scopes by path: %w", err)
	}
	return scopes, nil
}

// ScopeChain walks parent_scope_id from the given scope up to the file
// root. The first element is the scope itself.
func (s *Store) ScopeChain(scopeID int64) ([]*Scope, error) {
	var chain []*Scope
	current := &scopeID
	for current != nil {
		sc, err := s.ScopeByID(*current)
		if err != nil {
			return nil, fmt.Errorf("scope chain: %w", err)
		}
		if sc == nil {
			break
		}
		chain = append(chain, sc)
		current = sc.ParentScopeID
	}
	return chain, nil
}

// --- Node operations ---

const nodeCols = `id, file_id, scope_id, node_id, kind, start_byte, end_byte`

func (s *Store) queryNodes(query string, args ...any) ([]*Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n := &Node{}
		if err := rows.Scan(&n.ID, &n.FileID, &n.ScopeID, &n.NodeID, &n.Kind, &n.StartByte, &n.EndByte); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// NodesInScope returns the nodes whose home scope is scopeID, in id order.
func (s *Store) NodesInScope(scopeID int64) ([]*Node, error) {
	nodes, err := s.queryNodes("SELECT "+nodeCols+" FROM nodes WHERE scope_id = ? ORDER BY node_id", scopeID)
	if err != nil {
		return nil, fmt.Errorf("nodes in scope: %w", err)
	}
	return nodes, nil
}

func (s *Store) NodesByKind(fileID int64, kind string) ([]*Node, error) {
	nodes, err := s.queryNodes(
		"SELECT "+nodeCols+" FROM nodes WHERE file_id = ? AND kind = ? ORDER BY node_id", fileID, kind)
	if err != nil {
		return nil, fmt.Errorf("nodes by kind: %w", err)
	}
	return nodes, nil
}

// KindCounts tallies a file's nodes by kind.
func (s *Store) KindCounts(fileID int64) (map[string]int, error) {
	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM nodes WHERE file_id = ? GROUP BY kind", fileID)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// --- Diagnostic operations ---

func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, kind, construct_kind, start_byte, end_byte,
			start_line, start_col, end_line, end_col, snippet
		 FROM diagnostics WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.FileID, &d.Kind, &d.ConstructKind, &d.StartByte, &d.EndByte,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol, &d.Snippet); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}
