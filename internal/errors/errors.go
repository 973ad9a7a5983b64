package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired    = sterrors.New("portalflow: configuration is required")
	ErrLoggerRequired    = sterrors.New("portalflow: logger is required")
	ErrBusRequired       = sterrors.New("portalflow: bus connection is required")
	ErrInterfaceRequired = sterrors.New("portalflow: portal interface name is required")
	ErrMethodRequired    = sterrors.New("portalflow: portal method name is required")

	// ErrConnectionLost reports that the bus connection dropped while at
	// least one request was still waiting for its response.
	ErrConnectionLost = sterrors.New("portalflow: bus connection lost before a response arrived")

	// ErrInvalidReply reports a portal call reply that did not carry the
	// request object path in its body.
	ErrInvalidReply = sterrors.New("portalflow: portal call reply did not carry a request path")

	// ErrMalformedResponse reports a Response signal whose body could not
	// be decoded as (status, results).
	ErrMalformedResponse = sterrors.New("portalflow: response signal body is malformed")

	// ErrRequestReleased reports a wait on a request whose subscription
	// was already released.
	ErrRequestReleased = sterrors.New("portalflow: request was already released")

	// ErrCancelled and ErrRequestFailed translate the non-success response
	// statuses for typed wrappers. The engine itself treats every status
	// as a successful completion of the wait.
	ErrCancelled     = sterrors.New("portalflow: request was cancelled by the user")
	ErrRequestFailed = sterrors.New("portalflow: request failed")

	// ErrNoSessionHandle reports a session-creating response that carried
	// no session_handle result.
	ErrNoSessionHandle = sterrors.New("portalflow: response carried no session handle")
)

// CallError wraps a D-Bus error returned by the portal call itself, before
// any response wait begins: access denied, unknown method, bad arguments.
type CallError struct {
	// Name is the D-Bus error name, for example
	// "org.freedesktop.DBus.Error.AccessDenied".
	Name string
	Err  error
}

func (e *CallError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("portalflow: portal call failed: %v", e.Err)
	}
	return fmt.Sprintf("portalflow: portal call failed: %s: %v", e.Name, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// NewCallError wraps err into a CallError, or returns nil for a nil err.
func NewCallError(name string, err error) error {
	if err == nil {
		return nil
	}
	return &CallError{Name: name, Err: err}
}
