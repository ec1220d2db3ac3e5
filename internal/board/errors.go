package board

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an id unknown to the server or the store.
	ErrNotFound = errors.New("task not found")

	// ErrMutationInFlight rejects a second mutation against a task whose
	// previous mutation has not settled yet.
	ErrMutationInFlight = errors.New("task has a mutation in flight")

	// ErrStoreClosed is returned once the board has been torn down.
	ErrStoreClosed = errors.New("board store is closed")
)

// ValidationError rejects input before any optimistic change or network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteError is a server-side rejection (success:false envelope). Message is
// the server's error string, surfaced verbatim.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote rejection (status %d)", e.StatusCode)
	}
	return e.Message
}

// TransportError wraps a request that never completed; callers may retry with
// identical parameters.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
