// Package rubyscope is the analysis core of a Ruby language server. It
// parses Ruby source with tree-sitter, flattens the tree into an arena of
// nodes that each record their lexical scope, and answers "which scope
// encloses this offset" for editor features.
//
// # Pipeline
//
// Each file version goes through the same steps:
//
//  1. Parse: tree-sitter produces a concrete syntax tree, reusing the
//     previous tree for an open document that was edited.
//  2. Diagnose: error and missing markers are collected from the tree.
//  3. Flatten: the tree is walked once, assigning dense node ids and
//     recording the scope path (class, module, def, defs frames) each node
//     was written in.
//  4. Index: nodes are grouped by home scope for member lookups.
//
// The result is an immutable [FileAnalysis]. A newer version of a file
// replaces its analysis whole.
//
// # Usage
//
// One-shot analysis is memoized by file identity and content:
//
//	e, err := rubyscope.New()
//	if err != nil { ... }
//	defer e.Close()
//
//	fa, err := e.Analyze(ctx, "app/models/user.rb", src)
//	path, ok := fa.FindScopeGate(120)
//	fmt.Println(path) // User#save
//
// Editors open a document once and then send versioned edits:
//
//	_, err = e.Open(ctx, uri, 1, text)
//	_, err = e.Edit(ctx, uri, 2, []rubyscope.TextEdit{{Range: &rubyscope.Range{Start: 10, End: 12}, Text: "x"}})
//	path, ok := e.FindScopeGate(uri, 14)
//
// A version that does not increase aborts the document's session until it
// is reopened; see [VersionError].
//
// # Store
//
// [WithStore] attaches an in-memory SQLite mirror of the current analyses
// (files, scopes, nodes, diagnostics) for cross-file lookups such as
// "every definition named Cart". It never touches disk.
package rubyscope
