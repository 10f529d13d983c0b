package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/risor-io/risor/object"
	"github.com/spf13/cobra"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/lsp"
	"github.com/jward/rubyscope/internal/runtime"
	"github.com/jward/rubyscope/internal/store"
)

// errDiagnosticsFound makes the diagnostics command exit 1 after its
// output has been written.
var errDiagnosticsFound = errors.New("syntax diagnostics found")

// --- scope ---

var scopeCmd = &cobra.Command{
	Use:   "scope FILE OFFSET",
	Short: "Print the innermost scope at a byte offset or LINE:COL",
	Long:  "Prints the innermost scope enclosing a position. OFFSET is a byte offset or a 1-based LINE:COL pair.",
	Args:  cobra.ExactArgs(2),
	RunE:  runScope,
}

func runScope(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return outputError("scope", err)
	}
	defer engine.Close()

	fa, err := analyzeFile(cmdContext(cmd), engine, args[0])
	if err != nil {
		return outputError("scope", err)
	}
	offset, err := parseOffset(fa, args[1])
	if err != nil {
		return outputError("scope", err)
	}
	p, ok := fa.FindScopeGate(offset)
	if !ok {
		return outputError("scope", fmt.Errorf("%s has no nodes", args[0]))
	}
	return outputResult(CLIResult{Command: "scope", Results: toCLIScope(args[0], fa, offset, p)})
}

// --- diagnostics ---

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics FILE...",
	Short: "Report syntax errors and missing tokens",
	Long:  "Reports syntax diagnostics for each file. Exits with status 1 when any are found.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return outputError("diagnostics", err)
	}
	defer engine.Close()

	results, err := engine.AnalyzeFiles(cmdContext(cmd), args)
	if err != nil {
		return outputError("diagnostics", err)
	}
	diags := []CLIDiagnostic{}
	for _, fa := range results {
		for _, d := range fa.Diagnostics {
			diags = append(diags, toCLIDiagnostic(fa.Identity, d))
		}
	}
	if err := outputResult(CLIResult{Command: "diagnostics", Results: diags}); err != nil {
		return err
	}
	if len(diags) > 0 {
		errorHandled = true
		return errDiagnosticsFound
	}
	return nil
}

// --- dump ---

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Dump the flattened nodes, outline and diagnostics of a file",
	Long:  "Dumps the full analysis of one file. --format msgpack writes a binary snapshot.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return outputError("dump", err)
	}
	defer engine.Close()

	fa, err := analyzeFile(cmdContext(cmd), engine, args[0])
	if err != nil {
		return outputError("dump", err)
	}
	return outputResult(CLIResult{Command: "dump", Results: toCLIDump(args[0], fa)})
}

// --- index ---

var flagFind string

var indexCmd = &cobra.Command{
	Use:   "index [DIR]",
	Short: "Analyze every Ruby file under a directory",
	Long:  "Analyzes every Ruby file under DIR into an in-memory index and prints a per-file summary, or the definitions matching --find.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagFind, "find", "", "list class, module and method definitions with this name")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	dir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}

	s, err := store.NewStore()
	if err != nil {
		return outputError("index", err)
	}
	defer s.Close()

	engine, err := newEngine(rubyscope.WithStore(s))
	if err != nil {
		return outputError("index", err)
	}
	defer engine.Close()

	results, err := engine.AnalyzeDirectory(cmdContext(cmd), dir)
	if err != nil {
		return outputError("index", err)
	}
	log.Infof("indexed %d files under %s in %s", len(results), dir, time.Since(start).Round(time.Millisecond))

	if flagFind != "" {
		syms, err := findDefinitions(s, dir, flagFind)
		if err != nil {
			return outputError("index", err)
		}
		return outputResult(CLIResult{Command: "index", Results: syms})
	}
	files, err := summarizeFiles(s, dir)
	if err != nil {
		return outputError("index", err)
	}
	return outputResult(CLIResult{Command: "index", Results: files})
}

func relPath(dir, path string) string {
	if rel, err := filepath.Rel(dir, path); err == nil {
		return rel
	}
	return path
}

func findDefinitions(s *store.Store, dir, name string) ([]CLISymbol, error) {
	scopes, err := s.ScopesByName(name)
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string)
	syms := make([]CLISymbol, 0, len(scopes))
	for _, sc := range scopes {
		path, ok := paths[sc.FileID]
		if !ok {
			f, err := s.FileByID(sc.FileID)
			if err != nil {
				return nil, err
			}
			if f != nil {
				path = relPath(dir, f.Path)
			}
			paths[sc.FileID] = path
		}
		syms = append(syms, CLISymbol{
			Name:      sc.Name,
			Kind:      sc.Kind,
			Path:      sc.Path,
			File:      path,
			StartLine: sc.StartLine + 1,
			StartCol:  sc.StartCol + 1,
			EndLine:   sc.EndLine + 1,
			EndCol:    sc.EndCol + 1,
		})
	}
	return syms, nil
}

func summarizeFiles(s *store.Store, dir string) ([]CLIFile, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	out := make([]CLIFile, 0, len(files))
	for _, f := range files {
		scopes, err := s.ScopesByFile(f.ID)
		if err != nil {
			return nil, err
		}
		diags, err := s.DiagnosticsByFile(f.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, CLIFile{
			Path:        relPath(dir, f.Path),
			Failed:      f.Failed,
			Nodes:       f.NodeCount,
			Scopes:      max(len(scopes)-1, 0), // without the root row
			Diagnostics: len(diags),
		})
	}
	return out, nil
}

// --- script ---

var flagScriptIndex string

var scriptCmd = &cobra.Command{
	Use:   "script FILE.risor [ARG...]",
	Short: "Run a Risor script against the analysis API",
	Long:  "Runs a Risor script with the rubyscope builtins. Extra arguments are available to the script as args. --index pre-loads a directory into the store.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScript,
}

func init() {
	scriptCmd.Flags().StringVar(&flagScriptIndex, "index", "", "analyze this directory into the store before running")
}

func runScript(cmd *cobra.Command, args []string) error {
	scriptPath, err := resolveFilePath(args[0])
	if err != nil {
		return err
	}

	s, err := store.NewStore()
	if err != nil {
		return err
	}
	defer s.Close()

	engine, err := newEngine(rubyscope.WithStore(s))
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmdContext(cmd)
	if flagScriptIndex != "" {
		dir, err := resolveTargetDir([]string{flagScriptIndex})
		if err != nil {
			return err
		}
		if _, err := engine.AnalyzeDirectory(ctx, dir); err != nil {
			return err
		}
	}

	scriptArgs := make([]object.Object, 0, len(args)-1)
	for _, a := range args[1:] {
		scriptArgs = append(scriptArgs, object.NewString(a))
	}
	rt := runtime.NewRuntime(engine, filepath.Dir(scriptPath), runtime.WithStore(s))
	return rt.RunScript(ctx, filepath.Base(scriptPath), map[string]any{
		"args": object.NewList(scriptArgs),
	})
}

// --- lsp ---

var (
	flagStdio bool
	flagPort  int
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the language server",
	Long:  "Serves diagnostics, hover and document symbols over the Language Server Protocol, on stdio by default or on a TCP port.",
	Args:  cobra.NoArgs,
	RunE:  runLSP,
}

func init() {
	lspCmd.Flags().BoolVar(&flagStdio, "stdio", true, "serve on stdin/stdout")
	lspCmd.Flags().IntVar(&flagPort, "port", 0, "serve on this TCP port instead of stdio")
	lspCmd.Flags().Duration("debounce", 0, "delay diagnostics after changes")
	lspCmd.MarkFlagsMutuallyExclusive("stdio", "port")
}

func runLSP(cmd *cobra.Command, _ []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := lsp.New(engine, lsp.WithDebounce(cfg.Debounce))
	if flagPort > 0 {
		return srv.RunTCP("127.0.0.1:" + strconv.Itoa(flagPort))
	}
	return srv.RunStdio()
}

// cmdContext returns the command's context, or Background when the command
// is invoked outside Execute (as in tests).
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
