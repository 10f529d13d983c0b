package rubyscope

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jward/rubyscope/internal/analysis"
	"github.com/jward/rubyscope/internal/cache"
	"github.com/jward/rubyscope/internal/reparse"
	"github.com/jward/rubyscope/internal/scope"
	"github.com/jward/rubyscope/internal/store"
	"github.com/jward/rubyscope/internal/syntax"
)

// Engine owns the analysis cache, the per-document trees and sessions, and
// the optional store. It is safe for concurrent use; operations on
// different files never block each other beyond short map lookups.
type Engine struct {
	parser  syntax.Parser
	strict  bool
	jobs    int
	minimal bool
	store   *store.Store
	tracer  trace.Tracer
	tp      trace.TracerProvider
	log     commonlog.Logger

	cache    *cache.Cache[*analysis.FileAnalysis]
	reparser *reparse.Reparser

	mu       sync.Mutex
	sessions map[string]*session

	closed atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithParser replaces the tree-sitter Ruby parser, mainly for tests.
func WithParser(p syntax.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithStrict treats a tree with error or missing markers as a failed parse:
// the analysis keeps its diagnostics but has no nodes.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithStore mirrors every new analysis into s. The caller owns s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithJobs bounds AnalyzeFiles parallelism. Values below 1 mean 1.
func WithJobs(n int) Option {
	return func(e *Engine) { e.jobs = max(n, 1) }
}

// WithMinimalEdits makes incremental reparses describe only the changed
// region of the text instead of the whole document.
func WithMinimalEdits(enabled bool) Option {
	return func(e *Engine) { e.minimal = enabled }
}

// WithTracerProvider sets where spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tp = tp }
}

// WithLogger replaces the "rubyscope.engine" logger.
func WithLogger(l commonlog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine. The zero configuration parses with tree-sitter,
// is lenient about syntax errors and keeps no store.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		parser:   syntax.NewParser(),
		jobs:     goruntime.NumCPU(),
		log:      commonlog.GetLogger("rubyscope.engine"),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		return nil, fmt.Errorf("rubyscope: new: nil parser")
	}
	e.tracer = newTracer(e.tp)
	e.cache = cache.New[*analysis.FileAnalysis](cache.WithObserver(func(ev cache.Event) {
		if ev.Hit {
			e.log.Debugf("cache hit %s", ev.Identity)
		} else {
			e.log.Debugf("cache miss %s (shared=%t)", ev.Identity, ev.Shared)
		}
	}))
	e.reparser = reparse.New(e.parser, reparse.WithMinimalEdits(e.minimal))
	return e, nil
}

// Close releases every stored tree. The store, if any, belongs to the
// caller and stays open.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.reparser.Close()
	return nil
}

// Store returns the attached store, or nil.
func (e *Engine) Store() *Store {
	return e.store
}

// Computations counts how many times the analysis pipeline has run.
func (e *Engine) Computations() uint64 {
	return e.cache.Computations()
}

// Analyze returns the analysis of content for identity. Repeated calls
// with the same content reuse the previous result.
func (e *Engine) Analyze(ctx context.Context, identity string, content []byte) (*FileAnalysis, error) {
	fa, computed, err := e.analyze(ctx, identity, content)
	if err != nil {
		return nil, err
	}
	if computed {
		if err := e.commit(fa); err != nil {
			return nil, err
		}
	}
	return fa, nil
}

// analyze runs the memoized full-fidelity pipeline without touching the
// store. computed reports whether this call produced a new generation.
func (e *Engine) analyze(ctx context.Context, identity string, content []byte) (*FileAnalysis, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrClosed
	}
	computed := false
	entry, err := e.cache.Get(identity, content, func(fp string, gen uint64) (*analysis.FileAnalysis, error) {
		computed = true
		return e.parseFresh(ctx, identity, fp, gen, content)
	})
	if err != nil {
		return nil, false, fmt.Errorf("rubyscope: analyze %s: %w", identity, err)
	}
	return entry.Value, computed, nil
}

func (e *Engine) parseFresh(ctx context.Context, identity, fp string, gen uint64, content []byte) (_ *analysis.FileAnalysis, err error) {
	ctx, span := e.startSpan(ctx, spanParse, identity, attribute.Int("rubyscope.bytes", len(content)))
	defer func() { endSpan(span, err) }()

	tree, err := e.parser.Parse(nil, content)
	if err != nil {
		// No tree at all is still a generation: an empty, failed analysis.
		e.log.Warningf("parse of %s produced no tree: %v", identity, err)
		return e.build(ctx, identity, fp, gen, content, nil, nil), nil
	}
	defer tree.Close()

	diags, err := syntax.ExtractDiagnostics(tree, content)
	if err != nil {
		return nil, err
	}
	return e.build(ctx, identity, fp, gen, content, tree, diags), nil
}

func (e *Engine) build(ctx context.Context, identity, fp string, gen uint64, content []byte, tree *sitter.Tree, diags []syntax.Diagnostic) *analysis.FileAnalysis {
	_, span := e.startSpan(ctx, spanFlatten, identity, attribute.Int64("rubyscope.generation", int64(gen)))
	defer span.End()

	fa := analysis.Build(analysis.Input{
		Identity:    identity,
		Fingerprint: fp,
		Generation:  gen,
		Source:      content,
		Tree:        tree,
		Diagnostics: diags,
		Strict:      e.strict,
	})
	span.SetAttributes(
		attribute.Int("rubyscope.nodes", len(fa.Nodes)),
		attribute.Int("rubyscope.diagnostics", len(fa.Diagnostics)),
	)
	return fa
}

// commit mirrors fa into the store when one is attached.
func (e *Engine) commit(fa *analysis.FileAnalysis) error {
	if e.store == nil {
		return nil
	}
	applied, err := e.store.CommitBatch(store.NewBatch(fa))
	if err != nil {
		return fmt.Errorf("rubyscope: store %s: %w", fa.Identity, err)
	}
	if !applied {
		e.log.Debugf("store already holds a newer generation of %s", fa.Identity)
	}
	return nil
}

// Open starts (or restarts) an editing session for identity with a first
// parse of text. Reopening clears an aborted session.
func (e *Engine) Open(ctx context.Context, identity string, version int32, text []byte) (*FileAnalysis, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	s := e.sessionFor(identity, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	fa, err := e.parseSession(ctx, identity, text, false)
	if err != nil {
		return nil, fmt.Errorf("rubyscope: open %s: %w", identity, err)
	}
	s.version = version
	s.text = append([]byte(nil), text...)
	s.aborted = false
	e.log.Debugf("opened %s at version %d", identity, version)
	return fa, nil
}

// Edit applies edits in order to the document's text and reparses it
// incrementally. version must be strictly greater than the current one.
func (e *Engine) Edit(ctx context.Context, identity string, version int32, edits []TextEdit) (*FileAnalysis, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	s := e.sessionFor(identity, false)
	if s == nil {
		e.log.Errorf("edit of %s at version %d without an open session", identity, version)
		if !endsInReplacement(edits) {
			return nil, fmt.Errorf("rubyscope: edit %s: %w", identity, ErrUnknownDocument)
		}
		text, err := applyEdits(nil, edits)
		if err != nil {
			return nil, fmt.Errorf("rubyscope: edit %s: %w", identity, err)
		}
		return e.Open(ctx, identity, version, text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return nil, fmt.Errorf("rubyscope: edit %s: %w", identity, ErrSessionAborted)
	}
	if version <= s.version {
		verr := &VersionError{Identity: identity, Current: s.version, Rejected: version}
		e.log.Errorf("%v; aborting session", verr)
		s.aborted = true
		s.text = nil
		e.reparser.Forget(identity)
		e.cache.Invalidate(identity)
		if e.store != nil {
			if err := e.store.DeleteFile(identity); err != nil {
				e.log.Warningf("drop %s from store: %v", identity, err)
			}
		}
		return nil, verr
	}

	text, err := applyEdits(s.text, edits)
	if err != nil {
		return nil, fmt.Errorf("rubyscope: edit %s: %w", identity, err)
	}

	if cur, ok := e.cache.Peek(identity); ok && cur.Fingerprint == cache.Fingerprint(text) {
		s.version = version
		s.text = text
		return cur.Value, nil
	}

	fa, err := e.parseSession(ctx, identity, text, true)
	if err != nil {
		return nil, fmt.Errorf("rubyscope: edit %s: %w", identity, err)
	}
	s.version = version
	s.text = text
	return fa, nil
}

// parseSession runs the reparser for identity and installs the result as a
// new generation. The session lock must be held.
func (e *Engine) parseSession(ctx context.Context, identity string, text []byte, incremental bool) (_ *analysis.FileAnalysis, err error) {
	name := spanParse
	if incremental {
		name = spanReparse
	}
	ctx, span := e.startSpan(ctx, name, identity, attribute.Int("rubyscope.bytes", len(text)))
	defer func() { endSpan(span, err) }()

	entry, err := e.cache.Replace(identity, text, func(fp string, gen uint64) (*analysis.FileAnalysis, error) {
		var fa *analysis.FileAnalysis
		consume := func(res reparse.Result) error {
			if res.Fallback {
				span.SetAttributes(attribute.Bool("rubyscope.fallback", true))
			}
			fa = e.build(ctx, identity, fp, gen, text, res.Tree, res.Diagnostics)
			return nil
		}
		var perr error
		if incremental {
			perr = e.reparser.Reparse(identity, text, consume)
		} else {
			perr = e.reparser.Parse(identity, text, consume)
		}
		if perr != nil {
			return nil, perr
		}
		return fa, nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.commit(entry.Value); err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// CloseFile ends the session for identity and drops its tree, its cached
// analysis and its store rows.
func (e *Engine) CloseFile(identity string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	s := e.dropSession(identity)
	if s != nil {
		// Wait for an in-flight edit to finish.
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	e.reparser.Forget(identity)
	e.cache.Invalidate(identity)
	if e.store != nil {
		if err := e.store.DeleteFile(identity); err != nil {
			return fmt.Errorf("rubyscope: close %s: %w", identity, err)
		}
	}
	e.log.Debugf("closed %s", identity)
	return nil
}

// Analysis returns the current generation for identity.
func (e *Engine) Analysis(identity string) (*FileAnalysis, bool) {
	if s := e.sessionFor(identity, false); s != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.aborted {
			return nil, false
		}
	}
	entry, ok := e.cache.Peek(identity)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// FindScopeGate returns the innermost scope enclosing offset in the current
// generation of identity. The boolean is false when the file is unknown or
// produced no nodes; the root scope is an empty, non-nil Path.
func (e *Engine) FindScopeGate(identity string, offset int) (scope.Path, bool) {
	fa, ok := e.Analysis(identity)
	if !ok {
		return nil, false
	}
	return fa.FindScopeGate(offset)
}

// Text returns the current text and version of an open document.
func (e *Engine) Text(identity string) (string, int32, error) {
	s := e.sessionFor(identity, false)
	if s == nil {
		return "", 0, fmt.Errorf("rubyscope: text %s: %w", identity, ErrUnknownDocument)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aborted {
		return "", s.version, fmt.Errorf("rubyscope: text %s: %w", identity, ErrSessionAborted)
	}
	return string(s.text), s.version, nil
}

// IsAborted reports whether err means the document must be reopened.
func IsAborted(err error) bool {
	return errors.Is(err, ErrStaleVersion) || errors.Is(err, ErrSessionAborted)
}
