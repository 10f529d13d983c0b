package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/tliron/commonlog"

	"github.com/jward/rubyscope/internal/analysis"
	"github.com/jward/rubyscope/internal/store"
)

var log = commonlog.GetLogger("rubyscope.script")

// Analyzer runs the analysis pipeline for one file version.
type Analyzer interface {
	Analyze(ctx context.Context, identity string, content []byte) (*analysis.FileAnalysis, error)
}

// Runtime embeds a Risor VM and exposes file analyses, and optionally the
// in-memory store, to user scripts.
type Runtime struct {
	analyzer   Analyzer
	store      *store.Store
	scriptsDir string
	fsys       fs.FS

	mu       sync.RWMutex
	analyses map[string]*analysis.FileAnalysis
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithStore exposes the store builtins (scopes_named, scope_chain,
// db_query). Scripts see whatever has been committed so far.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// NewRuntime creates a Runtime that analyzes files through a and loads
// scripts relative to scriptsDir.
func NewRuntime(a Analyzer, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		analyzer:   a,
		scriptsDir: scriptsDir,
		analyses:   make(map[string]*analysis.FileAnalysis),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	log.Debugf("running script %s", label)
	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// remember records the latest analysis a script produced for an identity.
func (r *Runtime) remember(fa *analysis.FileAnalysis) {
	r.mu.Lock()
	r.analyses[fa.Identity] = fa
	r.mu.Unlock()
}

func (r *Runtime) lookup(identity string) (*analysis.FileAnalysis, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fa, ok := r.analyses[identity]
	return fa, ok
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":    mustProxy(&logObject{}),
		"query":  makeQueryFn(r),
		"lookup": makeLookupFn(r),
	}

	if r.analyzer != nil {
		globals["analyze"] = makeAnalyzeFn(r)
		globals["analyze_source"] = makeAnalyzeSourceFn(r)
	}
	globals["scope_at"] = makeScopeAtFn(r)
	globals["members"] = makeMembersFn(r)
	globals["diagnostics"] = makeDiagnosticsFn(r)
	globals["outline"] = makeOutlineFn(r)

	if r.store != nil {
		globals["scopes_named"] = makeScopesNamedFn(r.store)
		globals["scope_chain"] = makeScopeChainFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct{}

func (l *logObject) Info(msg string) {
	log.Info(msg)
}

func (l *logObject) Warn(msg string) {
	log.Warning(msg)
}

func (l *logObject) Error(msg string) {
	log.Error(msg)
}
