package inspect

import (
	"errors"
	"fmt"
)

// ErrPanelNotFound reports that neither locator strategy found the panel
// after the settle delay. Retryable.
var ErrPanelNotFound = errors.New("inspect: analytics panel not located")

// AttachError reports that a session could not be opened: the target is
// gone or a session is already attached to it. Retryable.
type AttachError struct {
	Target TargetID
	Err    error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("inspect: attach %s: %v", e.Target, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// ProtocolError wraps a command/response failure during locate, parse,
// sample or collect. Caught at the attempt boundary; triggers detach, then
// retry.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("inspect: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// retryable reports whether err warrants a fresh attempt. Only attach
// failures, a missed locate and protocol errors retry; everything else
// degrades gracefully inside the attempt.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AttachError
	var pe *ProtocolError
	return errors.As(err, &ae) || errors.As(err, &pe) || errors.Is(err, ErrPanelNotFound)
}

// classify maps an attempt error to the telemetry error class.
func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPanelNotFound):
		return "locator_not_found"
	default:
		var ae *AttachError
		if errors.As(err, &ae) {
			return "attach_failure"
		}
		var pe *ProtocolError
		if errors.As(err, &pe) {
			return "protocol_error"
		}
		return "internal"
	}
}
