// Package lsp serves rubyscope analyses over the Language Server Protocol.
// It keeps one engine session per open Ruby document, publishes syntax
// diagnostics and answers hover and document-symbol requests from the
// scope index.
package lsp

import (
	"os"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/jward/rubyscope"
)

const (
	serverName    = "rubyscope"
	serverVersion = "0.1.0"
	rubyLanguage  = "ruby"
)

var log = commonlog.GetLogger("rubyscope.lsp")

// Server is the rubyscope language server.
type Server struct {
	handler protocol.Handler
	glspSrv *glspserver.Server
	engine  *rubyscope.Engine

	// Documents opened with a languageId other than ruby. Changes to them
	// never reach the engine.
	ignoredMu sync.Mutex
	ignored   map[string]bool

	debounceDelay time.Duration
	debounceMu    sync.Mutex
	debounce      map[string]*time.Timer

	notifyMu sync.Mutex
	notify   glsp.NotifyFunc

	exitFn func(int)
}

// Option configures the server.
type Option func(*Server)

// WithDebounce delays diagnostics after didChange by d. Zero publishes
// synchronously.
func WithDebounce(d time.Duration) Option {
	return func(s *Server) { s.debounceDelay = max(d, 0) }
}

// New creates a server backed by engine. The caller owns engine.
func New(engine *rubyscope.Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		ignored:  make(map[string]bool),
		debounce: make(map[string]*time.Timer),
		exitFn:   os.Exit,
	}
	for _, o := range opts {
		o(s)
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		Exit:        s.exit,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.glspSrv = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// RunStdio serves on stdin and stdout.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

// RunTCP listens on addr.
func (s *Server) RunTCP(addr string) error {
	return s.glspSrv.RunTCP(addr)
}

func (s *Server) initialize(ctx *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	s.captureNotify(ctx)
	log.Debug("initializing")

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}

	version := serverVersion
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.captureNotify(ctx)
	s.sendNotification(protocol.ServerWindowLogMessage, &protocol.LogMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: "rubyscope server initialized",
	})
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	s.debounceMu.Lock()
	for _, t := range s.debounce {
		t.Stop()
	}
	s.debounce = make(map[string]*time.Timer)
	s.debounceMu.Unlock()
	log.Info("shutting down")
	return nil
}

func (s *Server) exit(_ *glsp.Context) error {
	s.exitFn(0)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, _ *protocol.SetTraceParams) error {
	return nil
}

func (s *Server) setIgnored(uri string, ignored bool) {
	s.ignoredMu.Lock()
	defer s.ignoredMu.Unlock()
	if ignored {
		s.ignored[uri] = true
	} else {
		delete(s.ignored, uri)
	}
}

func (s *Server) isIgnored(uri string) bool {
	s.ignoredMu.Lock()
	defer s.ignoredMu.Unlock()
	return s.ignored[uri]
}

// captureNotify keeps the latest notify function for publishing from
// debounce timers.
func (s *Server) captureNotify(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	s.notifyMu.Lock()
	s.notify = ctx.Notify
	s.notifyMu.Unlock()
}

func (s *Server) sendNotification(method string, params any) {
	s.notifyMu.Lock()
	fn := s.notify
	s.notifyMu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
