// Package portaltest provides an in-memory Bus implementation that behaves
// like a well-behaved portal broker: it assigns request paths from the
// submitted handle token, delivers Response signals to matching
// subscriptions, and tracks match-rule registrations. It backs the engine's
// own tests and lets applications exercise typed wrappers without a
// desktop session.
package portaltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/drblury/portalflow/internal/rpc"
)

// DefaultUniqueName is the unique bus name a new Bus reports.
const DefaultUniqueName = ":1.42"

// Call records one method call received by the bus.
type Call struct {
	Path      dbus.ObjectPath
	Interface string
	Method    string
	Args      []any
}

// Options returns the trailing options vardict of the call, or nil when
// the call carried none.
func (c Call) Options() map[string]dbus.Variant {
	if len(c.Args) == 0 {
		return nil
	}
	opts, _ := c.Args[len(c.Args)-1].(map[string]dbus.Variant)
	return opts
}

// HandleToken returns the handle_token submitted with the call.
func (c Call) HandleToken() string {
	if v, ok := c.Options()["handle_token"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// Handler services one scripted method. Returning an error of type
// dbus.Error reaches the engine as a call-level portal error.
type Handler func(call Call) ([]any, error)

type scriptedResponse struct {
	status  rpc.ResponseStatus
	results map[string]dbus.Variant
}

type watch struct {
	match rpc.SignalMatch
	ch    chan<- *dbus.Signal
}

// Bus is a scriptable in-memory implementation of the engine's Bus
// interface. The zero value is not usable; construct with New.
type Bus struct {
	mu sync.Mutex

	name   string
	closed bool

	// PathSuffix is appended to every request path the broker assigns,
	// simulating a portal that disambiguates a predicted path already in
	// use. Configure before issuing requests.
	PathSuffix string

	watches    []watch
	signalRefs map[chan<- *dbus.Signal]int

	calls      []Call
	handlers   map[string]Handler
	scripted   map[string][]scriptedResponse
	pending    map[dbus.ObjectPath]scriptedResponse
	properties map[string]dbus.Variant
}

// New constructs an idle broker double.
func New() *Bus {
	return &Bus{
		name:       DefaultUniqueName,
		signalRefs: make(map[chan<- *dbus.Signal]int),
		handlers:   make(map[string]Handler),
		scripted:   make(map[string][]scriptedResponse),
		pending:    make(map[dbus.ObjectPath]scriptedResponse),
		properties: make(map[string]dbus.Variant),
	}
}

// SetUniqueName overrides the unique bus name reported to the engine.
func (b *Bus) SetUniqueName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
}

// UniqueName implements rpc.Bus.
func (b *Bus) UniqueName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// HandleMethod scripts a custom handler for iface.method, overriding the
// built-in broker behaviour for that method.
func (b *Bus) HandleMethod(iface, method string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[iface+"."+method] = handler
}

// ScriptResponse queues the Response the broker will emit for the next
// request made through iface.method. The signal is delivered as soon as a
// subscription covering the assigned request path exists, never before the
// call reply, mirroring the portal's ordering guarantee.
func (b *Bus) ScriptResponse(iface, method string, status rpc.ResponseStatus, results map[string]dbus.Variant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := iface + "." + method
	b.scripted[key] = append(b.scripted[key], scriptedResponse{status: status, results: results})
}

// SetProperty scripts a property value served through GetProperty.
func (b *Bus) SetProperty(iface, prop string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.properties[iface+"."+prop] = dbus.MakeVariant(value)
}

// Call implements rpc.Bus.
func (b *Bus) Call(_ context.Context, path dbus.ObjectPath, iface, method string, args ...any) ([]any, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, dbus.ErrClosed
	}

	call := Call{Path: path, Interface: iface, Method: method, Args: args}
	b.calls = append(b.calls, call)
	key := iface + "." + method

	if handler, ok := b.handlers[key]; ok {
		b.mu.Unlock()
		return handler(call)
	}

	switch {
	case iface == rpc.RequestInterface && method == "Close":
		b.mu.Unlock()
		return nil, nil

	case iface == rpc.SessionInterface && method == "Close":
		b.mu.Unlock()
		return nil, nil

	case path == rpc.PortalObjectPath && call.HandleToken() != "":
		token := call.HandleToken()
		assigned := rpc.RequestPath(b.name, token) + dbus.ObjectPath(b.PathSuffix)
		if queue := b.scripted[key]; len(queue) > 0 {
			b.pending[assigned] = b.withSessionHandleLocked(call, queue[0])
			b.scripted[key] = queue[1:]
		}
		deliver := b.deliverableLocked(assigned)
		b.mu.Unlock()
		deliver()
		return []any{assigned}, nil
	}

	b.mu.Unlock()
	return nil, dbus.Error{
		Name: "org.freedesktop.DBus.Error.UnknownMethod",
		Body: []any{fmt.Sprintf("no handler for %s on %s", key, path)},
	}
}

// Watch implements rpc.Bus. A scripted response pending for the matched
// path is delivered as soon as the registration exists.
func (b *Bus) Watch(match rpc.SignalMatch, ch chan<- *dbus.Signal) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return dbus.ErrClosed
	}
	b.watches = append(b.watches, watch{match: match, ch: ch})
	b.signalRefs[ch]++
	deliver := b.deliverableLocked(match.Path)
	b.mu.Unlock()
	deliver()
	return nil
}

// Unwatch implements rpc.Bus.
func (b *Bus) Unwatch(match rpc.SignalMatch, ch chan<- *dbus.Signal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.watches {
		if w.match == match && w.ch == ch {
			b.watches = append(b.watches[:i], b.watches[i+1:]...)
			b.signalRefs[ch]--
			if b.signalRefs[ch] <= 0 {
				delete(b.signalRefs, ch)
			}
			return nil
		}
	}
	return nil
}

// GetProperty implements rpc.Bus.
func (b *Bus) GetProperty(_ context.Context, _ dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return dbus.Variant{}, dbus.ErrClosed
	}
	if v, ok := b.properties[iface+"."+prop]; ok {
		return v, nil
	}
	return dbus.Variant{}, dbus.Error{
		Name: "org.freedesktop.DBus.Error.InvalidArgs",
		Body: []any{fmt.Sprintf("no such property %q on %s", prop, iface)},
	}
}

// Close implements rpc.Bus: it drops the connection, closing every
// registered signal channel exactly once so pending waits observe
// connection loss.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.signalRefs {
		close(ch)
	}
	b.signalRefs = make(map[chan<- *dbus.Signal]int)
	b.watches = nil
	return nil
}

// EmitResponse delivers a Response signal on path to every covering
// subscription. Each distinct channel receives the signal once.
func (b *Bus) EmitResponse(path dbus.ObjectPath, status rpc.ResponseStatus, results map[string]dbus.Variant) {
	b.emit(&dbus.Signal{
		Sender: "org.freedesktop.portal.Desktop",
		Path:   path,
		Name:   rpc.RequestInterface + "." + rpc.ResponseMember,
		Body:   []any{uint32(status), normalizeResults(results)},
	})
}

// EmitClosed delivers a session Closed signal on path.
func (b *Bus) EmitClosed(path dbus.ObjectPath) {
	b.emit(&dbus.Signal{
		Sender: "org.freedesktop.portal.Desktop",
		Path:   path,
		Name:   rpc.SessionInterface + "." + rpc.ClosedMember,
		Body:   nil,
	})
}

// MatchCount reports how many match rules are currently registered for
// signals on path.
func (b *Bus) MatchCount(path dbus.ObjectPath) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, w := range b.watches {
		if w.match.Path == path {
			n++
		}
	}
	return n
}

// Calls returns a copy of every recorded method call.
func (b *Bus) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsTo returns the recorded calls to iface.method.
func (b *Bus) CallsTo(iface, method string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Interface == iface && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *Bus) emit(sig *dbus.Signal) {
	b.mu.Lock()
	targets := b.coveringChannelsLocked(sig)
	b.mu.Unlock()
	for _, ch := range targets {
		ch <- sig
	}
}

func (b *Bus) coveringChannelsLocked(sig *dbus.Signal) []chan<- *dbus.Signal {
	var targets []chan<- *dbus.Signal
	seen := make(map[chan<- *dbus.Signal]bool)
	for _, w := range b.watches {
		if w.match.Covers(sig) && !seen[w.ch] {
			seen[w.ch] = true
			targets = append(targets, w.ch)
		}
	}
	return targets
}

// deliverableLocked dequeues a pending scripted response for path when a
// covering subscription exists, returning a closure that performs the
// delivery outside the bus lock.
func (b *Bus) deliverableLocked(path dbus.ObjectPath) func() {
	scripted, ok := b.pending[path]
	if !ok {
		return func() {}
	}
	sig := &dbus.Signal{
		Sender: "org.freedesktop.portal.Desktop",
		Path:   path,
		Name:   rpc.RequestInterface + "." + rpc.ResponseMember,
		Body:   []any{uint32(scripted.status), normalizeResults(scripted.results)},
	}
	targets := b.coveringChannelsLocked(sig)
	if len(targets) == 0 {
		return func() {}
	}
	delete(b.pending, path)
	return func() {
		for _, ch := range targets {
			ch <- sig
		}
	}
}

// withSessionHandleLocked mirrors the broker side of session creation: a
// call that carries a session_handle_token gets the derived session handle
// merged into its scripted results unless the script already set one.
func (b *Bus) withSessionHandleLocked(call Call, scripted scriptedResponse) scriptedResponse {
	v, ok := call.Options()["session_handle_token"]
	if !ok {
		return scripted
	}
	token, ok := v.Value().(string)
	if !ok || token == "" {
		return scripted
	}
	if _, exists := scripted.results["session_handle"]; exists {
		return scripted
	}
	results := make(map[string]dbus.Variant, len(scripted.results)+1)
	for key, value := range scripted.results {
		results[key] = value
	}
	results["session_handle"] = dbus.MakeVariant(string(rpc.SessionPath(b.name, token)))
	scripted.results = results
	return scripted
}

func normalizeResults(results map[string]dbus.Variant) map[string]dbus.Variant {
	if results == nil {
		return map[string]dbus.Variant{}
	}
	return results
}
