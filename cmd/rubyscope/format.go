package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

const snippetWidth = 60

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	pathColor    = color.New(color.FgCyan)
	faintColor   = color.New(color.Faint)
)

// formatScopeText prints the breadcrumb, or "(top level)" for the root.
func formatScopeText(w io.Writer, s CLIScope) {
	path := s.Path
	if path == "" {
		path = "(top level)"
	}
	fmt.Fprintf(w, "%s:%d:%d\t%s\n", s.File, s.Line, s.Col, pathColor.Sprint(path))
}

// formatDiagnosticsText prints compiler-style "file:line:col: severity:
// message" lines, each followed by the offending snippet.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		sev := errorColor.Sprint(d.Severity)
		if d.Severity == "warning" {
			sev = warningColor.Sprint(d.Severity)
		}
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", d.File, d.StartLine, d.StartCol, sev, d.Message)
		if d.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", faintColor.Sprint(truncate(d.Snippet)))
		}
	}
}

// formatOutlineText indents each definition by its depth. Names are padded
// by display width so the line column stays aligned for wide identifiers.
func formatOutlineText(w io.Writer, syms []CLISymbol) {
	width := 0
	labels := make([]string, len(syms))
	for i, s := range syms {
		labels[i] = strings.Repeat("  ", outlineDepth(s.Path)) + s.Kind + " " + s.Name
		width = max(width, runewidth.StringWidth(labels[i]))
	}
	for i, s := range syms {
		loc := fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
		if s.File != "" {
			loc = s.File + ":" + loc
		}
		fmt.Fprintf(w, "%s  %s  %s\n", runewidth.FillRight(labels[i], width), pathColor.Sprint(s.Path), loc)
	}
}

// outlineDepth counts the frames in a rendered breadcrumb.
func outlineDepth(path string) int {
	return strings.Count(path, "::") + strings.Count(path, "#") + strings.Count(path, ".")
}

// formatNodesText formats CLINode results as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tLINE\tSPAN\tSCOPE\tOPENS")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d..%d\t%s\t%s\n",
			n.ID, n.Kind, n.Line, n.Begin, n.End, n.Scope, n.Opens)
	}
	tw.Flush()
}

// formatDumpText formats a CLIDump as readable text.
func formatDumpText(w io.Writer, d CLIDump) {
	fmt.Fprintf(w, "File: %s\n", d.File)
	fmt.Fprintf(w, "Generation: %d\n", d.Generation)
	fmt.Fprintf(w, "Fingerprint: %s\n", d.Fingerprint)
	if d.Failed {
		fmt.Fprintln(w, errorColor.Sprint("Parse failed"))
	}
	fmt.Fprintln(w)

	if len(d.Outline) > 0 {
		fmt.Fprintln(w, "Outline:")
		formatOutlineText(w, d.Outline)
		fmt.Fprintln(w)
	}
	if len(d.Diagnostics) > 0 {
		fmt.Fprintln(w, "Diagnostics:")
		formatDiagnosticsText(w, d.Diagnostics)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Nodes (%d):\n", len(d.Nodes))
	formatNodesText(w, d.Nodes)
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNODES\tSCOPES\tDIAGNOSTICS\tFAILED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%t\n", f.Path, f.Nodes, f.Scopes, f.Diagnostics, f.Failed)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIScope:
		formatScopeText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLISymbol:
		formatOutlineText(w, v)
	case CLIDump:
		formatDumpText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	return runewidth.Truncate(s, snippetWidth, "…")
}
