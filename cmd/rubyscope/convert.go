package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/syntax"
)

// analyzeFile reads path and analyzes it under the name it was given on
// the command line.
func analyzeFile(ctx context.Context, engine *rubyscope.Engine, path string) (*rubyscope.FileAnalysis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return engine.Analyze(ctx, path, content)
}

// parseOffset accepts a byte offset or a 1-based LINE:COL pair.
func parseOffset(fa *rubyscope.FileAnalysis, arg string) (int, error) {
	line, col, ok := strings.Cut(arg, ":")
	if !ok {
		return parseIntArg(arg, "offset")
	}
	l, err := parseIntArg(line, "line")
	if err != nil {
		return 0, err
	}
	c, err := parseIntArg(col, "col")
	if err != nil {
		return 0, err
	}
	if l == 0 || c == 0 {
		return 0, fmt.Errorf("invalid position %q: lines and columns start at 1", arg)
	}
	return fa.Lines().Offset(syntax.Point{Row: l - 1, Column: c - 1}), nil
}

func toCLIScope(file string, fa *rubyscope.FileAnalysis, offset int, p rubyscope.Path) CLIScope {
	pt := fa.Lines().Point(offset)
	frames := make([]CLIFrame, 0, p.Depth())
	for _, f := range p.Frames() {
		frames = append(frames, CLIFrame{Kind: f.Kind.String(), Name: f.Name})
	}
	return CLIScope{
		File:      file,
		Offset:    offset,
		Line:      pt.Row + 1,
		Col:       pt.Column + 1,
		Path:      p.String(),
		Namespace: p.Namespace().String(),
		Frames:    frames,
	}
}

func severityName(k syntax.DiagnosticKind) string {
	if k == syntax.Missing {
		return "warning"
	}
	return "error"
}

func toCLIDiagnostic(file string, d rubyscope.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:      file,
		Kind:      d.Kind.String(),
		Severity:  severityName(d.Kind),
		Construct: d.ConstructKind,
		Message:   d.Message(),
		StartLine: d.Start.Row + 1,
		StartCol:  d.Start.Column + 1,
		EndLine:   d.End.Row + 1,
		EndCol:    d.End.Column + 1,
		Snippet:   d.Snippet,
	}
}

func toCLISymbol(file string, sym rubyscope.Symbol) CLISymbol {
	return CLISymbol{
		Name:      sym.Frame.Name,
		Kind:      sym.Frame.Kind.String(),
		Path:      sym.Path.String(),
		File:      file,
		StartLine: sym.Start.Row + 1,
		StartCol:  sym.Start.Column + 1,
		EndLine:   sym.End.Row + 1,
		EndCol:    sym.End.Column + 1,
	}
}

func toCLIDump(file string, fa *rubyscope.FileAnalysis) CLIDump {
	dump := CLIDump{
		File:        file,
		Fingerprint: fa.Fingerprint,
		Generation:  fa.Generation,
		Failed:      fa.Failed,
		Outline:     []CLISymbol{},
		Nodes:       make([]CLINode, 0, len(fa.Nodes)),
		Diagnostics: make([]CLIDiagnostic, 0, len(fa.Diagnostics)),
	}
	for _, sym := range fa.Outline() {
		dump.Outline = append(dump.Outline, toCLISymbol("", sym))
	}
	for _, n := range fa.Nodes {
		cn := CLINode{
			ID:    int(n.ID),
			Kind:  string(n.Kind()),
			Scope: n.Scope.String(),
			Begin: n.Span.Begin,
			End:   n.Span.End,
			Line:  fa.Lines().Point(n.Span.Begin).Row + 1,
		}
		if _, ok := n.Frame(); ok {
			cn.Opens = n.EffectivePath().String()
		}
		dump.Nodes = append(dump.Nodes, cn)
	}
	for _, d := range fa.Diagnostics {
		dump.Diagnostics = append(dump.Diagnostics, toCLIDiagnostic("", d))
	}
	return dump
}
