package rpc

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"

	errspkg "github.com/drblury/portalflow/internal/errors"
	loggingpkg "github.com/drblury/portalflow/internal/logging"
)

// Session represents a long-lived portal session created by a
// session-creating request (CreateSession on the remote desktop or screen
// cast portals). The session stays alive until Close is called or the
// portal emits its Closed signal.
type Session struct {
	conn *Conn
	path dbus.ObjectPath
}

// RequestSession runs the request pipeline for a session-creating method:
// it generates a session handle token alongside the request handle token,
// waits for the response, and reads the authoritative session handle from
// the results. The response is returned alongside the session so wrappers
// can decode additional results.
func (c *Conn) RequestSession(ctx context.Context, iface, method string, options map[string]dbus.Variant, args ...any) (*Session, *Response, error) {
	token := NewHandleToken()
	predicted := SessionPath(c.bus.UniqueName(), token)

	opts := make(map[string]dbus.Variant, len(options)+1)
	for key, value := range options {
		opts[key] = value
	}
	opts[sessionHandleTokenKey] = dbus.MakeVariant(token)

	pending, err := c.Request(ctx, iface, method, opts, args...)
	if err != nil {
		return nil, nil, err
	}
	resp, err := pending.Wait(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, resp, err
	}

	handle, ok := sessionHandleFromResults(resp)
	if !ok {
		return nil, resp, errspkg.ErrNoSessionHandle
	}
	if handle != predicted {
		c.logger.Debug("session path reconciled", loggingpkg.LogFields{
			"predicted": string(predicted),
			"actual":    string(handle),
		})
	}

	return &Session{conn: c, path: handle}, resp, nil
}

// Path returns the session object path.
func (s *Session) Path() dbus.ObjectPath { return s.path }

// Close ends the session on the portal side.
func (s *Session) Close(ctx context.Context) error {
	_, err := s.conn.bus.Call(ctx, s.path, SessionInterface, closeMethod)
	if err != nil {
		return wrapCallError(err)
	}
	return nil
}

// WatchClosed arms a subscription for the session's Closed signal. The
// returned channel receives one value when the portal ends the session and
// is then closed; it is also closed without a value when the bus
// connection drops. The release function must be called when the watch is
// no longer needed.
func (s *Session) WatchClosed() (<-chan struct{}, func(), error) {
	match := SignalMatch{Path: s.path, Interface: SessionInterface, Member: ClosedMember}
	raw := make(chan *dbus.Signal, s.conn.conf.SignalBuffer)
	if err := s.conn.bus.Watch(match, raw); err != nil {
		return nil, nil, err
	}

	stop := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = s.conn.bus.Unwatch(match, raw)
			close(stop)
		})
	}

	closed := make(chan struct{}, 1)
	go func() {
		defer close(closed)
		defer release()
		for {
			select {
			case <-stop:
				return
			case sig, ok := <-raw:
				if !ok {
					return
				}
				if match.Covers(sig) {
					closed <- struct{}{}
					return
				}
			}
		}
	}()

	return closed, release, nil
}

// sessionHandleFromResults reads the session_handle result, which portal
// implementations variously encode as a string or an object path.
func sessionHandleFromResults(resp *Response) (dbus.ObjectPath, bool) {
	if path, ok := Result[dbus.ObjectPath](resp, "session_handle"); ok && path != "" {
		return path, true
	}
	if raw, ok := Result[string](resp, "session_handle"); ok && raw != "" {
		return dbus.ObjectPath(raw), true
	}
	return "", false
}
