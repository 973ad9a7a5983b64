package portaltest_test

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/portalflow/internal/rpc"
	"github.com/drblury/portalflow/portaltest"
)

const shotInterface = "org.freedesktop.portal.Screenshot"

func requestOptions(token string) map[string]dbus.Variant {
	return map[string]dbus.Variant{"handle_token": dbus.MakeVariant(token)}
}

func TestBusAssignsRequestPathFromToken(t *testing.T) {
	bus := portaltest.New()

	body, err := bus.Call(context.Background(), rpc.PortalObjectPath, shotInterface, "Screenshot", "", requestOptions("tok1"))
	require.NoError(t, err)
	require.Len(t, body, 1)

	assert.Equal(t, rpc.RequestPath(portaltest.DefaultUniqueName, "tok1"), body[0])
}

func TestBusScriptedResponseWaitsForSubscription(t *testing.T) {
	bus := portaltest.New()
	bus.ScriptResponse(shotInterface, "Screenshot", rpc.ResponseSuccess, nil)

	body, err := bus.Call(context.Background(), rpc.PortalObjectPath, shotInterface, "Screenshot", "", requestOptions("tok1"))
	require.NoError(t, err)
	path := body[0].(dbus.ObjectPath)

	// No subscription yet: the scripted response is held back.
	ch := make(chan *dbus.Signal, 1)
	match := rpc.SignalMatch{Path: path, Interface: rpc.RequestInterface, Member: rpc.ResponseMember}
	require.NoError(t, bus.Watch(match, ch))

	select {
	case sig := <-ch:
		assert.Equal(t, path, sig.Path)
		assert.Equal(t, rpc.RequestInterface+"."+rpc.ResponseMember, sig.Name)
	default:
		t.Fatal("scripted response not delivered once the subscription exists")
	}
}

func TestBusRecordsCalls(t *testing.T) {
	bus := portaltest.New()

	_, err := bus.Call(context.Background(), rpc.PortalObjectPath, shotInterface, "Screenshot", "", requestOptions("tok1"))
	require.NoError(t, err)

	calls := bus.CallsTo(shotInterface, "Screenshot")
	require.Len(t, calls, 1)
	assert.Equal(t, "tok1", calls[0].HandleToken())
	assert.Equal(t, "", calls[0].Args[0])
}

func TestBusUnknownMethod(t *testing.T) {
	bus := portaltest.New()

	_, err := bus.Call(context.Background(), rpc.PortalObjectPath, shotInterface, "Mystery")
	var dbusErr dbus.Error
	require.ErrorAs(t, err, &dbusErr)
	assert.Equal(t, "org.freedesktop.DBus.Error.UnknownMethod", dbusErr.Name)
}

func TestBusCloseRejectsCalls(t *testing.T) {
	bus := portaltest.New()
	require.NoError(t, bus.Close())

	_, err := bus.Call(context.Background(), rpc.PortalObjectPath, shotInterface, "Screenshot")
	assert.ErrorIs(t, err, dbus.ErrClosed)

	ch := make(chan *dbus.Signal, 1)
	err = bus.Watch(rpc.SignalMatch{Path: "/x", Interface: rpc.RequestInterface, Member: rpc.ResponseMember}, ch)
	assert.ErrorIs(t, err, dbus.ErrClosed)
}

func TestBusCloseClosesChannelsOnce(t *testing.T) {
	bus := portaltest.New()

	ch := make(chan *dbus.Signal, 1)
	matchA := rpc.SignalMatch{Path: "/a", Interface: rpc.RequestInterface, Member: rpc.ResponseMember}
	matchB := rpc.SignalMatch{Path: "/b", Interface: rpc.RequestInterface, Member: rpc.ResponseMember}
	require.NoError(t, bus.Watch(matchA, ch))
	require.NoError(t, bus.Watch(matchB, ch))

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, open := <-ch
	assert.False(t, open, "channel must be closed on connection loss")
}
