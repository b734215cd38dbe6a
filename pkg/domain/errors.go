package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/pagebuilder/pkg/propertypath"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrPageNotFound is returned by page loaders for an unknown page name.
var ErrPageNotFound = errors.New("page not found")

// ErrMalformedResult is returned for a re-execution result that carries
// neither a page nor a list of reset nodes.
var ErrMalformedResult = errors.New("malformed re-execution result")

// ErrStalePage is returned when an operation finishes after the page it
// started on has been replaced.
var ErrStalePage = errors.New("page was replaced")

// ErrNoPage is returned by operations that need a loaded page.
var ErrNoPage = errors.New("no page loaded")

// PropertyPathError reports a nested update key that could not be applied.
type PropertyPathError = propertypath.Error

// ValueRetrievalError wraps the failure of a widget value provider.
type ValueRetrievalError struct {
	NodeID string
	Err    error
}

func (e *ValueRetrievalError) Error() string {
	return fmt.Sprintf("retrieving value of node %s: %v", e.NodeID, e.Err)
}

func (e *ValueRetrievalError) Unwrap() error { return e.Err }

// ValidationError is returned when a validator fails or reports an invalid
// value.
type ValidationError struct {
	NodeID  string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validating node %s: %v", e.NodeID, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("node %s is invalid: %s", e.NodeID, e.Message)
	}
	return fmt.Sprintf("node %s is invalid", e.NodeID)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnsupportedTransportMessage is shown when no RPC transport is available.
const UnsupportedTransportMessage = "Current browser is not supported."

// TransportUnsupportedError is returned when neither a synchronous caller
// nor a send channel is configured.
type TransportUnsupportedError struct{}

func (e *TransportUnsupportedError) Error() string { return UnsupportedTransportMessage }

// RemoteExecutionError carries an error reported by the backend.
type RemoteExecutionError struct {
	Method  string
	NodeID  string
	Code    int64
	Message string
}

func (e *RemoteExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s failed for node %s: %s", e.Method, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Method, e.Message)
}

// MountTimeoutError is a soft error: the widget did not finish loading in
// time and is treated as having no usable value.
type MountTimeoutError struct {
	NodeID string
	Waited time.Duration
}

func (e *MountTimeoutError) Error() string {
	return fmt.Sprintf("node %s still loading after %s", e.NodeID, e.Waited)
}
