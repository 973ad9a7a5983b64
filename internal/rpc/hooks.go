package rpc

import (
	"time"

	"github.com/godbus/dbus/v5"

	loggingpkg "github.com/drblury/portalflow/internal/logging"
)

// RequestContext describes one portal request to lifecycle hooks.
type RequestContext struct {
	// Interface and Method name the portal call.
	Interface string
	Method    string
	// Path is the request object path (predicted until the call reply
	// reconciles it).
	Path dbus.ObjectPath
	// HandleToken is the token embedded in the request.
	HandleToken string
	// StartedAt is when the call was sent.
	StartedAt time.Time
	// Duration is how long the request has been running; only set for
	// OnRequestDone and OnRequestError.
	Duration time.Duration
	// Status is the delivered response status; only set for OnRequestDone.
	Status ResponseStatus
}

// RequestHooks defines callbacks for request lifecycle events. All hooks
// are optional; nil hooks are simply not called.
type RequestHooks struct {
	// OnRequestStart fires after the response subscription is armed,
	// immediately before the call is sent.
	OnRequestStart func(RequestContext)

	// OnRequestDone fires when the response wait resolves, whatever the
	// delivered status.
	OnRequestDone func(RequestContext)

	// OnRequestError fires when the call or the wait fails: call-level
	// portal errors, connection loss, malformed responses, and context
	// cancellation.
	OnRequestError func(RequestContext, error)
}

// Merge combines two RequestHooks; other's hooks run after h's.
func (h RequestHooks) Merge(other RequestHooks) RequestHooks {
	return RequestHooks{
		OnRequestStart: chainHooks(h.OnRequestStart, other.OnRequestStart),
		OnRequestDone:  chainHooks(h.OnRequestDone, other.OnRequestDone),
		OnRequestError: chainErrorHooks(h.OnRequestError, other.OnRequestError),
	}
}

func (h RequestHooks) start(rc RequestContext) {
	if h.OnRequestStart != nil {
		h.OnRequestStart(rc)
	}
}

func (h RequestHooks) done(rc RequestContext) {
	if h.OnRequestDone != nil {
		h.OnRequestDone(rc)
	}
}

func (h RequestHooks) fail(rc RequestContext, err error) {
	if h.OnRequestError != nil {
		h.OnRequestError(rc, err)
	}
}

func chainHooks(a, b func(RequestContext)) func(RequestContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(rc RequestContext) {
		a(rc)
		b(rc)
	}
}

func chainErrorHooks(a, b func(RequestContext, error)) func(RequestContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(rc RequestContext, err error) {
		a(rc, err)
		b(rc, err)
	}
}

// LoggingHooks logs request lifecycle transitions through log.
func LoggingHooks(log loggingpkg.ServiceLogger) RequestHooks {
	return RequestHooks{
		OnRequestStart: func(rc RequestContext) {
			log.Debug("portal request started", requestFields(rc))
		},
		OnRequestDone: func(rc RequestContext) {
			fields := requestFields(rc)
			fields["status"] = rc.Status.String()
			fields["duration"] = rc.Duration.String()
			log.Info("portal request resolved", fields)
		},
		OnRequestError: func(rc RequestContext, err error) {
			fields := requestFields(rc)
			fields["duration"] = rc.Duration.String()
			log.Error("portal request failed", err, fields)
		},
	}
}

// MetricsHooks records request lifecycle transitions on m.
func MetricsHooks(m *RequestMetrics) RequestHooks {
	return RequestHooks{
		OnRequestStart: func(rc RequestContext) {
			m.requestStarted(rc.Interface, rc.Method)
		},
		OnRequestDone: func(rc RequestContext) {
			m.requestCompleted(rc.Interface, rc.Method, rc.Status.String(), rc.Duration)
		},
		OnRequestError: func(rc RequestContext, _ error) {
			m.requestCompleted(rc.Interface, rc.Method, "error", rc.Duration)
		},
	}
}

func requestFields(rc RequestContext) loggingpkg.LogFields {
	return loggingpkg.LogFields{
		"interface":    rc.Interface,
		"method":       rc.Method,
		"request_path": string(rc.Path),
	}
}
