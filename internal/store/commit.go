package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch replaces everything stored for the batch's file with the
// batch contents within a single transaction. Fake (negative) IDs are
// remapped to real IDs, and all FK references within the batch are
// rewritten using the fakeToReal mapping.
//
// A batch whose generation is older than the stored one is dropped and
// reported as not applied.
//
// Insert order respects FK dependencies:
//  1. File
//  2. Scopes (depend on file_id, parent_scope_id)
//  3. Nodes (depend on file_id, scope_id)
//  4. Diagnostics (depend on file_id)
func (s *Store) CommitBatch(batch *Batch) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	var stored uint64
	err = tx.QueryRow(`SELECT generation FROM files WHERE path = ?`, batch.File.Path).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, fmt.Errorf("commit batch: lookup %q: %w", batch.File.Path, err)
	case stored > batch.File.Generation:
		return false, nil
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, batch.File.Path); err != nil {
		return false, fmt.Errorf("commit batch: delete %q: %w", batch.File.Path, err)
	}

	fakeToReal := make(map[int64]int64)

	// 1. File
	f := batch.File
	fileID, err := insertFileTx(tx, &f)
	if err != nil {
		return false, fmt.Errorf("commit batch: file %q: %w", f.Path, err)
	}
	fakeToReal[batch.File.ID] = fileID

	// 2. Scopes. Parents always precede children in the batch.
	for _, sc := range batch.Scopes {
		sc.FileID = fileID
		if sc.ParentScopeID != nil && *sc.ParentScopeID < 0 {
			realID, ok := fakeToReal[*sc.ParentScopeID]
			if !ok {
				return false, fmt.Errorf("commit batch: scope %q has parent_scope_id=%d not in fakeToReal map", sc.Path, *sc.ParentScopeID)
			}
			sc.ParentScopeID = &realID
		}
		realID, err := insertScopeTx(tx, &sc)
		if err != nil {
			return false, fmt.Errorf("commit batch: scope %q: %w", sc.Path, err)
		}
		fakeToReal[sc.ID] = realID
	}

	// 3. Nodes
	for _, n := range batch.Nodes {
		n.FileID = fileID
		if n.ScopeID != nil && *n.ScopeID < 0 {
			realID := fakeToReal[*n.ScopeID]
			n.ScopeID = &realID
		}
		if _, err := insertNodeTx(tx, &n); err != nil {
			return false, fmt.Errorf("commit batch: node %d: %w", n.NodeID, err)
		}
	}

	// 4. Diagnostics
	for _, d := range batch.Diagnostics {
		d.FileID = fileID
		if _, err := insertDiagnosticTx(tx, &d); err != nil {
			return false, fmt.Errorf("commit batch: diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit batch: %w", err)
	}
	return true, nil
}

// --- Transaction-scoped insert helpers ---

func insertFileTx(tx *sql.Tx, f *File) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO files (path, hash, generation, failed, node_count, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.Path, f.Hash, int64(f.Generation), f.Failed, f.NodeCount, f.LastIndexed,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertScopeTx(tx *sql.Tx, sc *Scope) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO scopes (file_id, parent_scope_id, kind, name, path, depth, node_id,
			start_byte, end_byte, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.FileID, sc.ParentScopeID, sc.Kind, sc.Name, sc.Path, sc.Depth, sc.NodeID,
		sc.StartByte, sc.EndByte, sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertNodeTx(tx *sql.Tx, n *Node) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO nodes (file_id, scope_id, node_id, kind, start_byte, end_byte)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.FileID, n.ScopeID, n.NodeID, n.Kind, n.StartByte, n.EndByte,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDiagnosticTx(tx *sql.Tx, d *Diagnostic) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO diagnostics (file_id, kind, construct_kind, start_byte, end_byte,
			start_line, start_col, end_line, end_col, snippet)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Kind, d.ConstructKind, d.StartByte, d.EndByte,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol, d.Snippet,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
