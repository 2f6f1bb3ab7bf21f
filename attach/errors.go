package attach

import (
	"fmt"

	"github.com/jmgilman/go/errors"
)

// CodeAttachAborted is an error code of attach aborted by a lifecycle callback.
const CodeAttachAborted errors.ErrorCode = "ATTACH_ABORTED"

// SentinelError is an error.
type SentinelError string

// ErrNilArgument indicates a missing required argument.
const ErrNilArgument = SentinelError("nil argument")

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}

// CallbackError reports attach aborted by a lifecycle callback, it carries at most one cause.
//
// Callback failure is never aggregated, it stops a batch.
type CallbackError struct {
	Node  any
	Cause error
}

// Error implements error.
func (e *CallbackError) Error() string {
	if e.Cause == nil {
		return "attach callback failed"
	}

	return "attach callback failed: " + e.Cause.Error()
}

// Unwrap returns cause.
func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// OptimisticError reports a node with stale state.
//
// An aggregate of a batch has Nested per-node failures and no Node.
type OptimisticError struct {
	Node   any
	Cause  error
	Nested []error
}

// Error implements error.
func (e *OptimisticError) Error() string {
	if len(e.Nested) > 0 {
		return fmt.Sprintf("optimistic lock failure on %d attached instance(s)", len(e.Nested))
	}

	if e.Cause != nil {
		return "optimistic lock failure: " + e.Cause.Error()
	}

	return "optimistic lock failure"
}

// Unwrap returns nested failures or cause.
func (e *OptimisticError) Unwrap() []error {
	if len(e.Nested) > 0 {
		return e.Nested
	}

	if e.Cause != nil {
		return []error{e.Cause}
	}

	return nil
}
