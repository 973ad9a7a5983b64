package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.opentelemetry.io/otel/attribute"

	errspkg "github.com/drblury/portalflow/internal/errors"
	loggingpkg "github.com/drblury/portalflow/internal/logging"
)

// Vardict keys owned by the engine. Callers must not set these in the
// options they pass to Request or RequestSession.
const (
	handleTokenKey        = "handle_token"
	sessionHandleTokenKey = "session_handle_token"
)

// closeMethod is the cancellation method on a request object.
const closeMethod = "Close"

// Pending is the live correlation state for one in-flight portal request:
// the authoritative request path, the armed signal subscription, and a
// single-fire completion. It is owned by the goroutine that issued the
// request and must end in exactly one of Wait or Release.
type Pending struct {
	conn    *Conn
	match   SignalMatch
	signals chan *dbus.Signal

	iface     string
	method    string
	token     string
	startedAt time.Time

	releaseOnce sync.Once
}

// Request sends a portal method call and arms the response subscription
// for it. The supplied options vardict is copied and extended with the
// generated handle token; args are the method's positional arguments, to
// which the options vardict is appended as the final argument.
//
// Call-level failures (access denied, unknown method, invalid arguments)
// surface immediately, before any response wait exists. On success the
// returned Pending holds a subscription already reconciled against the
// request path the portal reported in the call reply.
func (c *Conn) Request(ctx context.Context, iface, method string, options map[string]dbus.Variant, args ...any) (*Pending, error) {
	if iface == "" {
		return nil, errspkg.ErrInterfaceRequired
	}
	if method == "" {
		return nil, errspkg.ErrMethodRequired
	}

	ctx, span := c.tracer.Start(ctx, "portal.request")
	defer span.End()

	token := NewHandleToken()
	predicted := RequestPath(c.bus.UniqueName(), token)
	span.SetAttributes(
		attribute.String("portal.interface", iface),
		attribute.String("portal.method", method),
		attribute.String("portal.handle_token", token),
	)

	opts := make(map[string]dbus.Variant, len(options)+1)
	for key, value := range options {
		opts[key] = value
	}
	if _, clash := opts[handleTokenKey]; clash {
		c.logger.Debug("caller-supplied handle_token overwritten", loggingpkg.LogFields{
			"interface": iface,
			"method":    method,
		})
	}
	opts[handleTokenKey] = dbus.MakeVariant(token)

	// Arm before sending: once the match rule is registered the response
	// cannot be emitted and lost between the call and the wait.
	match := SignalMatch{Path: predicted, Interface: RequestInterface, Member: ResponseMember}
	signals := make(chan *dbus.Signal, c.conf.SignalBuffer)
	if err := c.bus.Watch(match, signals); err != nil {
		return nil, fmt.Errorf("portalflow: arming response subscription: %w", err)
	}

	startedAt := time.Now()
	rc := RequestContext{
		Interface:   iface,
		Method:      method,
		Path:        predicted,
		HandleToken: token,
		StartedAt:   startedAt,
	}
	c.hooks.start(rc)

	callArgs := make([]any, 0, len(args)+1)
	callArgs = append(callArgs, args...)
	callArgs = append(callArgs, opts)

	body, err := c.bus.Call(ctx, PortalObjectPath, iface, method, callArgs...)
	if err != nil {
		_ = c.bus.Unwatch(match, signals)
		wrapped := wrapCallError(err)
		rc.Duration = time.Since(startedAt)
		c.hooks.fail(rc, wrapped)
		return nil, wrapped
	}

	actual, err := requestPathFromReply(body)
	if err != nil {
		_ = c.bus.Unwatch(match, signals)
		rc.Duration = time.Since(startedAt)
		c.hooks.fail(rc, err)
		return nil, err
	}

	if actual != predicted {
		// Reconcile onto the authoritative path. The portal cannot emit
		// the response before its own call reply, which is what revealed
		// the actual path, so registering new-then-dropping-old here is
		// race-free.
		rearmed := match
		rearmed.Path = actual
		if err := c.bus.Watch(rearmed, signals); err != nil {
			_ = c.bus.Unwatch(match, signals)
			wrapped := fmt.Errorf("portalflow: retargeting response subscription: %w", err)
			rc.Duration = time.Since(startedAt)
			c.hooks.fail(rc, wrapped)
			return nil, wrapped
		}
		_ = c.bus.Unwatch(match, signals)
		match = rearmed

		c.logger.Debug("request path reconciled", loggingpkg.LogFields{
			"predicted": string(predicted),
			"actual":    string(actual),
		})
	}

	return &Pending{
		conn:      c,
		match:     match,
		signals:   signals,
		iface:     iface,
		method:    method,
		token:     token,
		startedAt: startedAt,
	}, nil
}

// Path returns the authoritative request object path.
func (p *Pending) Path() dbus.ObjectPath { return p.match.Path }

// HandleToken returns the token embedded in the request.
func (p *Pending) HandleToken() string { return p.token }

// Wait blocks until the portal delivers the request's Response signal and
// returns its decoded outcome. All three statuses are successful
// completions of the wait; inspect Response.Status (or Response.Err) to
// interpret them. The wait fails with ErrConnectionLost when the bus
// connection drops, and with ctx.Err() when the caller's context ends
// first. The subscription is released on every exit path.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	defer p.Release()

	ctx, span := p.conn.tracer.Start(ctx, "portal.wait")
	defer span.End()
	span.SetAttributes(attribute.String("portal.request_path", string(p.match.Path)))

	rc := p.requestContext()
	for {
		select {
		case <-ctx.Done():
			rc.Duration = time.Since(p.startedAt)
			p.conn.hooks.fail(rc, ctx.Err())
			return nil, ctx.Err()

		case sig, ok := <-p.signals:
			if !ok {
				rc.Duration = time.Since(p.startedAt)
				p.conn.hooks.fail(rc, errspkg.ErrConnectionLost)
				return nil, errspkg.ErrConnectionLost
			}
			if !p.match.Covers(sig) {
				// Stale signal from a previously watched path, or another
				// member on a shared channel.
				continue
			}

			resp, err := decodeResponse(sig.Body)
			if err != nil {
				rc.Duration = time.Since(p.startedAt)
				p.conn.hooks.fail(rc, err)
				return nil, err
			}

			rc.Duration = time.Since(p.startedAt)
			rc.Status = resp.Status
			p.conn.hooks.done(rc)
			span.SetAttributes(attribute.String("portal.status", resp.Status.String()))
			return resp, nil
		}
	}
}

// Close asks the portal to cancel the request. Best effort: closing never
// resolves the wait by itself; a well-behaved portal follows up with a
// cancelled-status Response, which Wait returns normally.
func (p *Pending) Close(ctx context.Context) error {
	_, err := p.conn.bus.Call(ctx, p.match.Path, RequestInterface, closeMethod)
	if err != nil {
		p.conn.logger.Debug("request close failed", loggingpkg.LogFields{
			"request_path": string(p.match.Path),
			"error":        err.Error(),
		})
		return wrapCallError(err)
	}
	return nil
}

// Release drops the response subscription without waiting. Idempotent, and
// implied by Wait returning. A Pending that is abandoned before resolution
// must be released to avoid leaking its match rule.
func (p *Pending) Release() {
	p.releaseOnce.Do(func() {
		_ = p.conn.bus.Unwatch(p.match, p.signals)
	})
}

func (p *Pending) requestContext() RequestContext {
	return RequestContext{
		Interface:   p.iface,
		Method:      p.method,
		Path:        p.match.Path,
		HandleToken: p.token,
		StartedAt:   p.startedAt,
	}
}

// requestPathFromReply extracts the authoritative request object path from
// a portal call reply body.
func requestPathFromReply(body []any) (dbus.ObjectPath, error) {
	if len(body) == 0 {
		return "", errspkg.ErrInvalidReply
	}
	switch path := body[0].(type) {
	case dbus.ObjectPath:
		return path, nil
	case string:
		if path == "" {
			return "", errspkg.ErrInvalidReply
		}
		return dbus.ObjectPath(path), nil
	default:
		return "", errspkg.ErrInvalidReply
	}
}
