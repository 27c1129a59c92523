package workflow

import "errors"

var (
	// ErrInvalidTransition signals a transition that breaks the forward-only
	// single-step order rule without an explicit override.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrWorkflowCompleted signals a transition attempted on a record whose
	// terminal entry is already closed.
	ErrWorkflowCompleted = errors.New("workflow: record already completed")
	// ErrRecordNotFound signals that the referenced fulfillment record does
	// not exist.
	ErrRecordNotFound = errors.New("workflow: record not found")
	// ErrNotStarted signals an operation that requires an existing ledger on
	// a record that has never entered the workflow.
	ErrNotStarted = errors.New("workflow: record has not started the workflow")
)
