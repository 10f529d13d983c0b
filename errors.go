package rubyscope

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleVersion is wrapped by every *VersionError.
	ErrStaleVersion = errors.New("rubyscope: stale document version")
	// ErrSessionAborted is returned for a document whose session was
	// aborted by a version violation. Open it again to recover.
	ErrSessionAborted = errors.New("rubyscope: session aborted")
	// ErrUnknownDocument is returned for an incremental edit of a document
	// that was never opened.
	ErrUnknownDocument = errors.New("rubyscope: unknown document")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("rubyscope: engine closed")
	// ErrEditRange is returned when an edit's range falls outside the
	// document it applies to.
	ErrEditRange = errors.New("rubyscope: edit range out of bounds")
)

// VersionError reports an edit whose version was not strictly greater than
// the document's current version.
type VersionError struct {
	Identity string
	Current  int32
	Rejected int32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("rubyscope: %s: version %d is not newer than %d", e.Identity, e.Rejected, e.Current)
}

func (e *VersionError) Unwrap() error { return ErrStaleVersion }
