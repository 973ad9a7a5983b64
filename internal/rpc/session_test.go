package rpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/portalflow/internal/errors"
	"github.com/drblury/portalflow/internal/rpc"
	"github.com/drblury/portalflow/portaltest"
)

const rdInterface = "org.freedesktop.portal.RemoteDesktop"

func TestRequestSession(t *testing.T) {
	bus := portaltest.New()
	conn := newTestConn(t, bus, rpc.Dependencies{})

	bus.ScriptResponse(rdInterface, "CreateSession", rpc.ResponseSuccess, nil)

	session, resp, err := conn.RequestSession(context.Background(), rdInterface, "CreateSession", nil)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, rpc.ResponseSuccess, resp.Status)

	calls := bus.CallsTo(rdInterface, "CreateSession")
	require.Len(t, calls, 1)
	opts := calls[0].Options()
	assert.NotEmpty(t, opts["handle_token"].Value())
	assert.NotEmpty(t, opts["session_handle_token"].Value())

	assert.True(t, session.Path().IsValid())
	assert.Contains(t, string(session.Path()), "/org/freedesktop/portal/desktop/session/")
}

func TestRequestSessionCancelled(t *testing.T) {
	bus := portaltest.New()
	conn := newTestConn(t, bus, rpc.Dependencies{})

	bus.ScriptResponse(rdInterface, "CreateSession", rpc.ResponseCancelled, nil)

	session, _, err := conn.RequestSession(context.Background(), rdInterface, "CreateSession", nil)
	require.ErrorIs(t, err, errspkg.ErrCancelled)
	assert.Nil(t, session)
}

func TestRequestSessionMissingHandle(t *testing.T) {
	bus := portaltest.New()
	conn := newTestConn(t, bus, rpc.Dependencies{})

	// A success response that carries no session_handle result.
	bus.HandleMethod(rdInterface, "CreateSession", func(call portaltest.Call) ([]any, error) {
		assigned := rpc.RequestPath(portaltest.DefaultUniqueName, call.HandleToken())
		bus.EmitResponse(assigned, rpc.ResponseSuccess, map[string]dbus.Variant{})
		return []any{assigned}, nil
	})

	session, _, err := conn.RequestSession(context.Background(), rdInterface, "CreateSession", nil)
	require.ErrorIs(t, err, errspkg.ErrNoSessionHandle)
	assert.Nil(t, session)
}

func TestSessionClose(t *testing.T) {
	bus := portaltest.New()
	conn := newTestConn(t, bus, rpc.Dependencies{})

	bus.ScriptResponse(rdInterface, "CreateSession", rpc.ResponseSuccess, nil)
	session, _, err := conn.RequestSession(context.Background(), rdInterface, "CreateSession", nil)
	require.NoError(t, err)

	require.NoError(t, session.Close(context.Background()))

	closes := bus.CallsTo(rpc.SessionInterface, "Close")
	require.Len(t, closes, 1)
	assert.Equal(t, session.Path(), closes[0].Path)
}

func TestSessionWatchClosed(t *testing.T) {
	bus := portaltest.New()
	conn := newTestConn(t, bus, rpc.Dependencies{})

	bus.ScriptResponse(rdInterface, "CreateSession", rpc.ResponseSuccess, nil)
	session, _, err := conn.RequestSession(context.Background(), rdInterface, "CreateSession", nil)
	require.NoError(t, err)

	closed, release, err := session.WatchClosed()
	require.NoError(t, err)
	defer release()

	bus.EmitClosed(session.Path())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Closed signal was not delivered")
	}
}

func TestSessionWatchClosedRelease(t *testing.T) {
	bus := portaltest.New()
	conn := newTestConn(t, bus, rpc.Dependencies{})

	bus.ScriptResponse(rdInterface, "CreateSession", rpc.ResponseSuccess, nil)
	session, _, err := conn.RequestSession(context.Background(), rdInterface, "CreateSession", nil)
	require.NoError(t, err)

	_, release, err := session.WatchClosed()
	require.NoError(t, err)
	require.Equal(t, 1, bus.MatchCount(session.Path()))

	release()
	release()
	assert.Equal(t, 0, bus.MatchCount(session.Path()))
}
