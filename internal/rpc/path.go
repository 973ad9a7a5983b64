package rpc

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// Well-known names of the desktop portal service and its request/session
// lifecycle interfaces.
const (
	PortalBusName    = "org.freedesktop.portal.Desktop"
	PortalObjectPath = dbus.ObjectPath("/org/freedesktop/portal/desktop")

	RequestInterface = "org.freedesktop.portal.Request"
	ResponseMember   = "Response"

	SessionInterface = "org.freedesktop.portal.Session"
	ClosedMember     = "Closed"
)

// SanitizeSender maps a unique bus name onto the object path segment
// grammar: every byte outside [A-Za-z0-9_] becomes an underscore. Total
// and idempotent, so ":1.42" and "_1_42" both sanitize to "_1_42".
func SanitizeSender(sender string) string {
	var b strings.Builder
	b.Grow(len(sender))
	for i := 0; i < len(sender); i++ {
		c := sender[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RequestPath predicts the object path the portal assigns to a request
// issued by sender with the given handle token. The portal may still
// disambiguate with a suffix; the call reply is authoritative.
func RequestPath(sender, token string) dbus.ObjectPath {
	return PortalObjectPath + dbus.ObjectPath("/request/"+SanitizeSender(sender)+"/"+token)
}

// SessionPath predicts the object path of a session created with the given
// session handle token.
func SessionPath(sender, token string) dbus.ObjectPath {
	return PortalObjectPath + dbus.ObjectPath("/session/"+SanitizeSender(sender)+"/"+token)
}
