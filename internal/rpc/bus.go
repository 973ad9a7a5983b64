package rpc

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// SignalMatch identifies one bus match rule: signals emitted on Path by
// Interface with member Member.
type SignalMatch struct {
	Path      dbus.ObjectPath
	Interface string
	Member    string
}

// Name returns the fully qualified signal name the match covers.
func (m SignalMatch) Name() string {
	return m.Interface + "." + m.Member
}

// Covers reports whether a delivered signal falls under this match rule.
func (m SignalMatch) Covers(sig *dbus.Signal) bool {
	return sig != nil && sig.Path == m.Path && sig.Name == m.Name()
}

// Bus is the slice of a message-bus connection the request engine depends
// on. The session-bus transport implements it over godbus; package
// portaltest provides an in-memory double for tests.
type Bus interface {
	// UniqueName returns the connection's unique bus name (":1.42" style),
	// the input to client-side path prediction.
	UniqueName() string

	// Call invokes method on the portal service object at path and returns
	// the reply body. Errors returned by the service surface as
	// dbus.Error values.
	Call(ctx context.Context, path dbus.ObjectPath, iface, method string, args ...any) ([]any, error)

	// Watch registers ch for signals covered by match. The registration is
	// fully established on the bus when Watch returns, so a signal emitted
	// afterwards cannot be missed. The same channel may carry several
	// match rules; the bus never closes it except on connection loss.
	Watch(match SignalMatch, ch chan<- *dbus.Signal) error

	// Unwatch drops a registration made by Watch.
	Unwatch(match SignalMatch, ch chan<- *dbus.Signal) error

	// GetProperty reads a property of the portal service object at path.
	GetProperty(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error)

	// Close tears the connection down. All channels registered with Watch
	// are closed, which fails every pending response wait.
	Close() error
}
