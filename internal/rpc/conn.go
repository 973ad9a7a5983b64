package rpc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/portalflow/internal/config"
	errspkg "github.com/drblury/portalflow/internal/errors"
	loggingpkg "github.com/drblury/portalflow/internal/logging"
)

const tracerName = "portalflow"

// Dependencies holds the optional collaborators a Conn can use. Leave
// fields nil to use the defaults.
type Dependencies struct {
	// Bus overrides the session-bus transport. Supplied by tests and by
	// applications that manage their own connection.
	Bus Bus
	// Hooks observe the request lifecycle; merged with the metrics hooks
	// when metrics are enabled.
	Hooks RequestHooks
	// Metrics overrides the Prometheus collectors used when
	// Config.MetricsEnabled is set.
	Metrics *RequestMetrics
}

// Conn issues portal requests over a message bus and correlates their
// asynchronous responses. Construct one with TryNew, register typed
// wrappers on top, and Close it when done.
type Conn struct {
	conf   configpkg.Config
	logger loggingpkg.ServiceLogger

	bus    Bus
	ownBus bool

	hooks  RequestHooks
	tracer trace.Tracer
}

// New constructs a Conn for the supplied configuration, panicking on
// failure. Prefer TryNew in code that can propagate errors.
func New(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) *Conn {
	c, err := TryNew(ctx, conf, log, deps)
	if err != nil {
		panic(err)
	}
	return c
}

// TryNew constructs a Conn for the supplied configuration. When
// deps.Bus is nil it dials the session bus (or Config.BusAddress) with a
// private godbus connection owned by the Conn.
func TryNew(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Conn, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	norm := conf.Normalized()

	if log == nil {
		log = loggingpkg.Nop()
	}

	bus := deps.Bus
	ownBus := false
	if bus == nil {
		dialed, err := dialBus(ctx, norm)
		if err != nil {
			return nil, err
		}
		bus = dialed
		ownBus = true
	}

	hooks := deps.Hooks
	if norm.MetricsEnabled {
		metrics := deps.Metrics
		if metrics == nil {
			metrics = NewRequestMetrics(nil)
		}
		if err := metrics.Register(); err != nil {
			if ownBus {
				_ = bus.Close()
			}
			return nil, err
		}
		hooks = hooks.Merge(MetricsHooks(metrics))
	}

	log.Debug("portal connection ready", loggingpkg.LogFields{
		"unique_name": bus.UniqueName(),
	})

	return &Conn{
		conf:   norm,
		logger: log,
		bus:    bus,
		ownBus: ownBus,
		hooks:  hooks,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// UniqueName returns the connection's unique bus name.
func (c *Conn) UniqueName() string { return c.bus.UniqueName() }

// Bus exposes the underlying transport, mainly for typed wrappers that
// need signal access beyond the request pipeline.
func (c *Conn) Bus() Bus { return c.bus }

// Logger returns the connection's logger.
func (c *Conn) Logger() loggingpkg.ServiceLogger { return c.logger }

// Call invokes a plain portal method that completes in its own reply,
// without the request/response pipeline. Used by typed wrappers for
// notify-style methods.
func (c *Conn) Call(ctx context.Context, iface, method string, args ...any) ([]any, error) {
	if iface == "" {
		return nil, errspkg.ErrInterfaceRequired
	}
	if method == "" {
		return nil, errspkg.ErrMethodRequired
	}
	body, err := c.bus.Call(ctx, PortalObjectPath, iface, method, args...)
	if err != nil {
		return nil, wrapCallError(err)
	}
	return body, nil
}

// Property reads a property of the portal service.
func (c *Conn) Property(ctx context.Context, iface, name string) (dbus.Variant, error) {
	v, err := c.bus.GetProperty(ctx, PortalObjectPath, iface, name)
	if err != nil {
		return dbus.Variant{}, wrapCallError(err)
	}
	return v, nil
}

// Close releases the connection. Closing fails every pending response
// wait with ErrConnectionLost. A Conn built on a caller-supplied Bus
// leaves that bus open.
func (c *Conn) Close() error {
	if !c.ownBus {
		return nil
	}
	return c.bus.Close()
}

func wrapCallError(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return errspkg.NewCallError(dbusErr.Name, err)
	}
	return errspkg.NewCallError("", err)
}

// sessionBus adapts a godbus connection to the Bus interface. Signal
// channels are refcounted so a rearm can move a match rule without
// re-registering (or prematurely dropping) the channel.
type sessionBus struct {
	conn        *dbus.Conn
	callTimeout time.Duration

	mu         sync.Mutex
	signalRefs map[chan<- *dbus.Signal]int
}

func dialBus(ctx context.Context, conf configpkg.Config) (*sessionBus, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if conf.BusAddress != "" {
		conn, err = dbus.Connect(conf.BusAddress, dbus.WithContext(ctx))
	} else {
		conn, err = dbus.ConnectSessionBus(dbus.WithContext(ctx))
	}
	if err != nil {
		return nil, errspkg.NewCallError("", err)
	}
	return &sessionBus{
		conn:        conn,
		callTimeout: conf.CallTimeout,
		signalRefs:  make(map[chan<- *dbus.Signal]int),
	}, nil
}

func (b *sessionBus) UniqueName() string {
	names := b.conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (b *sessionBus) Call(ctx context.Context, path dbus.ObjectPath, iface, method string, args ...any) ([]any, error) {
	if _, ok := ctx.Deadline(); !ok && b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}
	call := b.conn.Object(PortalBusName, path).CallWithContext(ctx, iface+"."+method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

func (b *sessionBus) Watch(match SignalMatch, ch chan<- *dbus.Signal) error {
	if err := b.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(match.Path),
		dbus.WithMatchInterface(match.Interface),
		dbus.WithMatchMember(match.Member),
	); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signalRefs[ch] == 0 {
		b.conn.Signal(ch)
	}
	b.signalRefs[ch]++
	return nil
}

func (b *sessionBus) Unwatch(match SignalMatch, ch chan<- *dbus.Signal) error {
	err := b.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(match.Path),
		dbus.WithMatchInterface(match.Interface),
		dbus.WithMatchMember(match.Member),
	)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signalRefs[ch] > 0 {
		b.signalRefs[ch]--
		if b.signalRefs[ch] == 0 {
			delete(b.signalRefs, ch)
			b.conn.RemoveSignal(ch)
		}
	}
	return err
}

func (b *sessionBus) GetProperty(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	if _, ok := ctx.Deadline(); !ok && b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}
	call := b.conn.Object(PortalBusName, path).CallWithContext(
		ctx, "org.freedesktop.DBus.Properties.Get", 0, iface, prop,
	)
	if call.Err != nil {
		return dbus.Variant{}, call.Err
	}
	var v dbus.Variant
	if err := call.Store(&v); err != nil {
		return dbus.Variant{}, err
	}
	return v, nil
}

// Close closes the godbus connection. godbus terminates its signal
// handler on close, which closes every registered channel and thereby
// fails all pending waits.
func (b *sessionBus) Close() error {
	return b.conn.Close()
}
