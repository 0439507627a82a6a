package remote

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an operation requires a signed-in
// user and none is present.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrNotFound indicates a missing or unauthorized row lookup. Row-level
// security makes the two cases indistinguishable to the client.
var ErrNotFound = errors.New("record not found")

// RemoteError wraps a failure reported by the backend for a table, auth, or
// storage call.
type RemoteError struct {
	Op      string // e.g. "select", "insert", "storage.remove"
	Table   string // table or bucket, when applicable
	Status  int    // HTTP status, 0 for non-HTTP drivers
	Code    string // backend error code, when provided
	Message string
	Err     error // underlying cause, when available
}

func (e *RemoteError) Error() string {
	switch {
	case e.Table != "" && e.Message != "":
		return fmt.Sprintf("remote %s %s: %s", e.Op, e.Table, e.Message)
	case e.Message != "":
		return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("remote %s failed", e.Op)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }
