package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed or incomplete notification payload.
// The event is discarded locally; the pipeline keeps running.
type ValidationError struct {
	MissingFields []string
	InvalidFields []string
	Reason        string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(e.MissingFields, ", "))
	}
	if len(e.InvalidFields) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.InvalidFields, ", "))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(parts) == 0 {
		return "invalid event payload"
	}
	return "invalid event payload: " + strings.Join(parts, "; ")
}

// ResolutionError reports a failed or timed-out geocoding lookup. The event
// is discarded with no partial state; retry, if any, belongs to the
// delivery channel.
type ResolutionError struct {
	Address string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %q: no match", e.Address)
	}
	return fmt.Sprintf("resolve %q: %v", e.Address, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// StorageError reports a history-store failure. An apply that cannot append
// must surface this instead of leaving the registry ahead of the log.
type StorageError struct {
	Op      string // "append", "read", "list"
	Address string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("history store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("history store %s %q: %v", e.Op, e.Address, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
