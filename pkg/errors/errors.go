package errors

import (
	"fmt"
)

// ErrValidation is returned when a request fails local validation before any
// network call is made. RollbackValue carries the last known-good quantity the
// UI should restore.
type ErrValidation struct {
	Message       string
	RollbackValue int
	Remaining     int // units that can still be added, 0 when none
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrTransport is returned when the cart service call fails or answers with a
// non-success status. Local state must not be rolled forward on this error.
type ErrTransport struct {
	Op     string
	Status int
	Cause  error
}

func (e *ErrTransport) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: cart service returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *ErrTransport) Unwrap() error {
	return e.Cause
}

// ErrStaleData is returned when a source yields state that must not be
// trusted: a fallback inventory source with absent or inconsistent stock
// numbers, or a cart response that resolved after losing its in-flight slot.
// Inventory callers treat it as "unlimited stock" (fail open).
type ErrStaleData struct {
	Source string
	Cause  error
}

func (e *ErrStaleData) Error() string {
	return fmt.Sprintf("stale data from %s: %v", e.Source, e.Cause)
}

func (e *ErrStaleData) Unwrap() error {
	return e.Cause
}

// ErrBusy is returned when a quantity change arrives while another one is
// still in flight. The intent is dropped, not queued.
type ErrBusy struct {
	Line int
}

func (e *ErrBusy) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("cart update for line %d already in progress", e.Line)
	}
	return "cart update already in progress"
}
