package lsp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/rubyscope"
	"github.com/jward/rubyscope/internal/syntax"
)

const diagnosticSource = "rubyscope"

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.captureNotify(ctx)
	uri := params.TextDocument.URI
	if params.TextDocument.LanguageID != rubyLanguage {
		log.Debugf("ignoring %s document %s", params.TextDocument.LanguageID, uri)
		s.setIgnored(uri, true)
		return nil
	}
	s.setIgnored(uri, false)

	fa, err := s.engine.Open(context.Background(), uri, params.TextDocument.Version, []byte(params.TextDocument.Text))
	if err != nil {
		log.Errorf("open %s: %v", uri, err)
		return nil
	}
	s.publish(uri, fa)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.captureNotify(ctx)
	uri := params.TextDocument.URI
	if s.isIgnored(uri) {
		return nil
	}

	// An unknown or aborted document has no text; the engine decides what
	// to do with the edits.
	text, _, _ := s.engine.Text(uri)
	edits := changesToEdits(text, params.ContentChanges)

	fa, err := s.engine.Edit(context.Background(), uri, params.TextDocument.Version, edits)
	var verr *rubyscope.VersionError
	switch {
	case errors.As(err, &verr):
		s.cancelDebounce(uri)
		s.clearDiagnostics(uri)
		s.sendNotification(protocol.ServerWindowShowMessage, &protocol.ShowMessageParams{
			Type: protocol.MessageTypeError,
			Message: fmt.Sprintf("rubyscope: %s received version %d after %d; reopen the file to resume analysis",
				uri, verr.Rejected, verr.Current),
		})
		return nil
	case errors.Is(err, rubyscope.ErrSessionAborted):
		log.Debugf("dropping change to aborted %s", uri)
		return nil
	case err != nil:
		log.Errorf("change %s: %v", uri, err)
		return nil
	}

	if s.debounceDelay <= 0 {
		s.publish(uri, fa)
		return nil
	}
	s.debounceMu.Lock()
	if t, ok := s.debounce[uri]; ok {
		t.Stop()
	}
	s.debounce[uri] = time.AfterFunc(s.debounceDelay, func() {
		s.debounceMu.Lock()
		delete(s.debounce, uri)
		s.debounceMu.Unlock()
		if cur, ok := s.engine.Analysis(uri); ok {
			s.publish(uri, cur)
		}
	})
	s.debounceMu.Unlock()
	return nil
}

func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.captureNotify(ctx)
	uri := params.TextDocument.URI
	s.cancelDebounce(uri)
	if fa, ok := s.engine.Analysis(uri); ok {
		s.publish(uri, fa)
	}
	return nil
}

func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.cancelDebounce(uri)
	if s.isIgnored(uri) {
		s.setIgnored(uri, false)
		return nil
	}
	if err := s.engine.CloseFile(uri); err != nil {
		log.Warningf("close %s: %v", uri, err)
	}
	s.clearDiagnostics(uri)
	return nil
}

func (s *Server) cancelDebounce(uri string) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if t, ok := s.debounce[uri]; ok {
		t.Stop()
		delete(s.debounce, uri)
	}
}

// publish sends the syntax diagnostics of fa for uri.
func (s *Server) publish(uri string, fa *rubyscope.FileAnalysis) {
	li := fa.Lines()
	diags := make([]protocol.Diagnostic, 0, len(fa.Diagnostics))
	for _, d := range fa.Diagnostics {
		diags = append(diags, protocol.Diagnostic{
			Range:    toRange(li, d.Span),
			Severity: severity(d.Kind),
			Source:   strPtr(diagnosticSource),
			Message:  d.Message(),
		})
	}
	log.Debugf("publishing %d diagnostics for %s (generation %d)", len(diags), uri, fa.Generation)
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

func (s *Server) clearDiagnostics(uri string) {
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func severity(k syntax.DiagnosticKind) *protocol.DiagnosticSeverity {
	sev := protocol.DiagnosticSeverityError
	if k == syntax.Missing {
		sev = protocol.DiagnosticSeverityWarning
	}
	return &sev
}
