package rubyscope

import "sync"

// session is the editor-side state of one open document. Its lock also
// serializes parsing for the document.
type session struct {
	mu      sync.RWMutex
	version int32
	text    []byte
	aborted bool
}

// sessionFor returns the session for identity, creating it when create is
// set. The map lock is held only for the lookup.
func (e *Engine) sessionFor(identity string, create bool) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[identity]
	if !ok && create {
		s = &session{}
		e.sessions[identity] = s
	}
	return s
}

func (e *Engine) dropSession(identity string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[identity]
	delete(e.sessions, identity)
	return s
}

// OpenDocuments lists the identities with a live session, aborted or not.
func (e *Engine) OpenDocuments() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}
