// Package remotedesktop wraps the org.freedesktop.portal.RemoteDesktop
// interface: creating a remote control session, letting the user select
// which devices to share, and injecting keyboard, pointer, and touch
// events into the started session.
package remotedesktop

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/drblury/portalflow"
)

// Interface is the portal interface this package drives.
const Interface = "org.freedesktop.portal.RemoteDesktop"

// Portal drives remote desktop sessions over a portalflow connection.
type Portal struct {
	conn  *portalflow.Conn
	store *TokenStore
}

// Option configures a Portal.
type Option func(*Portal)

// WithTokenStore persists restore tokens through store: Start saves the
// token the portal hands back, and SelectDevices submits it when the
// caller supplies none, so a previously granted selection is restored
// without prompting.
func WithTokenStore(store *TokenStore) Option {
	return func(p *Portal) {
		p.store = store
	}
}

// New returns a Portal over conn.
func New(conn *portalflow.Conn, opts ...Option) *Portal {
	p := &Portal{conn: conn}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateSession creates a remote desktop session. The session carries no
// grants until SelectDevices and Start complete.
func (p *Portal) CreateSession(ctx context.Context) (*portalflow.Session, error) {
	session, _, err := p.conn.RequestSession(ctx, Interface, "CreateSession", nil)
	return session, err
}

// SelectDevicesOptions are the selection constraints passed to
// SelectDevices. The zero value asks for the portal's defaults.
type SelectDevicesOptions struct {
	// Types restricts which device kinds the user may grant. Zero means
	// all types.
	Types DeviceType
	// RestoreToken restores a previously persisted selection. When empty
	// and a TokenStore is configured, the stored token is used.
	RestoreToken string
	// PersistMode asks the portal to persist the selection.
	PersistMode PersistMode
}

// SelectDevices asks the user to select which devices the session may
// control. The grant only takes effect once Start completes.
func (p *Portal) SelectDevices(ctx context.Context, session *portalflow.Session, opts SelectDevicesOptions) error {
	options := map[string]dbus.Variant{}
	if opts.Types != 0 {
		options["types"] = dbus.MakeVariant(uint32(opts.Types))
	}
	if opts.PersistMode != PersistModeNone {
		options["persist_mode"] = dbus.MakeVariant(uint32(opts.PersistMode))
	}
	token := opts.RestoreToken
	if token == "" && p.store != nil {
		stored, err := p.store.Load()
		if err != nil {
			p.conn.Logger().Error("restore token load failed", err, portalflow.LogFields{
				"path": p.store.Path(),
			})
		}
		token = stored
	}
	if token != "" {
		options["restore_token"] = dbus.MakeVariant(token)
	}

	pending, err := p.conn.Request(ctx, Interface, "SelectDevices", options, session.Path())
	if err != nil {
		return err
	}
	resp, err := pending.Wait(ctx)
	if err != nil {
		return err
	}
	return resp.Err()
}

// Start starts the session, typically presenting a dialog where the user
// confirms what to share. parentWindow identifies the application window
// the dialog attaches to; empty is allowed.
func (p *Portal) Start(ctx context.Context, session *portalflow.Session, parentWindow string) (*SelectedDevices, error) {
	pending, err := p.conn.Request(ctx, Interface, "Start", nil, session.Path(), parentWindow)
	if err != nil {
		return nil, err
	}
	resp, err := pending.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	selected := &SelectedDevices{}
	if devices, ok := portalflow.Result[uint32](resp, "devices"); ok {
		selected.Devices = DeviceType(devices)
	}
	if token, ok := portalflow.Result[string](resp, "restore_token"); ok {
		selected.RestoreToken = token
		if p.store != nil && token != "" {
			if err := p.store.Save(token); err != nil {
				p.conn.Logger().Error("restore token save failed", err, portalflow.LogFields{
					"path": p.store.Path(),
				})
			}
		}
	}
	return selected, nil
}

// NotifyKeyboardKeycode injects a key press or release by evdev keycode.
// May only be called after Start granted keyboard access.
func (p *Portal) NotifyKeyboardKeycode(ctx context.Context, session *portalflow.Session, keycode int32, state KeyState) error {
	return p.notify(ctx, "NotifyKeyboardKeycode", session, keycode, uint32(state))
}

// NotifyKeyboardKeysym injects a key press or release by keysym.
func (p *Portal) NotifyKeyboardKeysym(ctx context.Context, session *portalflow.Session, keysym int32, state KeyState) error {
	return p.notify(ctx, "NotifyKeyboardKeysym", session, keysym, uint32(state))
}

// NotifyPointerMotion injects a relative pointer motion of (dx, dy) in the
// stream's logical coordinate space.
func (p *Portal) NotifyPointerMotion(ctx context.Context, session *portalflow.Session, dx, dy float64) error {
	return p.notify(ctx, "NotifyPointerMotion", session, dx, dy)
}

// NotifyPointerMotionAbsolute positions the pointer at (x, y) relative to
// the PipeWire stream node the coordinates belong to.
func (p *Portal) NotifyPointerMotionAbsolute(ctx context.Context, session *portalflow.Session, stream uint32, x, y float64) error {
	return p.notify(ctx, "NotifyPointerMotionAbsolute", session, stream, x, y)
}

// NotifyPointerButton injects a pointer button press or release, encoded
// as a Linux evdev button code.
func (p *Portal) NotifyPointerButton(ctx context.Context, session *portalflow.Session, button int32, state KeyState) error {
	return p.notify(ctx, "NotifyPointerButton", session, button, uint32(state))
}

// NotifyPointerAxis injects smooth scroll motion from a device such as a
// touchpad.
func (p *Portal) NotifyPointerAxis(ctx context.Context, session *portalflow.Session, dx, dy float64) error {
	return p.notify(ctx, "NotifyPointerAxis", session, dx, dy)
}

// NotifyPointerAxisDiscrete injects discrete scroll steps on an axis.
func (p *Portal) NotifyPointerAxisDiscrete(ctx context.Context, session *portalflow.Session, axis Axis, steps int32) error {
	return p.notify(ctx, "NotifyPointerAxisDiscrete", session, uint32(axis), steps)
}

// NotifyTouchDown injects a new touch point at (x, y) in the stream's
// logical coordinate space.
func (p *Portal) NotifyTouchDown(ctx context.Context, session *portalflow.Session, stream, slot uint32, x, y float64) error {
	return p.notify(ctx, "NotifyTouchDown", session, stream, slot, x, y)
}

// NotifyTouchMotion moves an existing touch point.
func (p *Portal) NotifyTouchMotion(ctx context.Context, session *portalflow.Session, stream, slot uint32, x, y float64) error {
	return p.notify(ctx, "NotifyTouchMotion", session, stream, slot, x, y)
}

// NotifyTouchUp lifts a touch point.
func (p *Portal) NotifyTouchUp(ctx context.Context, session *portalflow.Session, slot uint32) error {
	return p.notify(ctx, "NotifyTouchUp", session, slot)
}

// AvailableDeviceTypes reports which device types the portal can share.
func (p *Portal) AvailableDeviceTypes(ctx context.Context) (DeviceType, error) {
	v, err := p.conn.Property(ctx, Interface, "AvailableDeviceTypes")
	if err != nil {
		return 0, err
	}
	var types uint32
	if err := v.Store(&types); err != nil {
		return 0, err
	}
	return DeviceType(types), nil
}

// Version reports the portal interface version.
func (p *Portal) Version(ctx context.Context) (uint32, error) {
	v, err := p.conn.Property(ctx, Interface, "version")
	if err != nil {
		return 0, err
	}
	var version uint32
	if err := v.Store(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// notify sends one of the event injection methods. These take the options
// vardict as their second argument and complete in their own reply; no
// request pipeline is involved.
func (p *Portal) notify(ctx context.Context, method string, session *portalflow.Session, args ...any) error {
	callArgs := make([]any, 0, len(args)+2)
	callArgs = append(callArgs, session.Path(), map[string]dbus.Variant{})
	callArgs = append(callArgs, args...)
	_, err := p.conn.Call(ctx, Interface, method, callArgs...)
	return err
}
