package domain

import "fmt"

// Every mutation failure carries the attempted operation and the entity it
// targeted, so no failure path is ever reduced to an anonymous error string.

type ValidationError struct {
	Op    string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid field %q: %s", e.Op, e.Field, e.Msg)
}

// ConflictError signals a duplicate Open guest request for the same
// (requester, appointment date, start time) tuple. Handlers surface it as a
// distinct condition so the caller can render a specific message.
type ConflictError struct {
	Op         string
	ExistingID int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: an open request already exists (id=%d) for the same requester, date and start time", e.Op, e.ExistingID)
}

// IllegalTransitionError signals a mutation attempted on a terminal-status
// record. The stored state is left unchanged.
type IllegalTransitionError struct {
	Op       string
	EntityID int
	From     RequestStatus
	To       RequestStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: request %d is %s, cannot transition to %s", e.Op, e.EntityID, e.From, e.To)
}

// TransportError signals a change-feed delivery failure. It is handled
// internally via backoff plus the stale flag and only reaches callers when
// reconnection keeps failing.
type TransportError struct {
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("changefeed topic %q: %v", e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed read or write against the backing store.
// The caller decides whether to resubmit; nothing is retried automatically.
type PersistenceError struct {
	Op       string
	EntityID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: entity %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
