package portalflow

import (
	configpkg "github.com/drblury/portalflow/internal/config"
	errspkg "github.com/drblury/portalflow/internal/errors"
	jsoncodec "github.com/drblury/portalflow/internal/jsoncodec"
	loggingpkg "github.com/drblury/portalflow/internal/logging"
	rpcpkg "github.com/drblury/portalflow/internal/rpc"
)

type (
	Config       = configpkg.Config
	Conn         = rpcpkg.Conn
	Dependencies = rpcpkg.Dependencies

	// Transport seam
	Bus         = rpcpkg.Bus
	SignalMatch = rpcpkg.SignalMatch

	// Request lifecycle
	Pending        = rpcpkg.Pending
	Response       = rpcpkg.Response
	ResponseStatus = rpcpkg.ResponseStatus
	Session        = rpcpkg.Session

	// Request lifecycle hooks
	RequestContext = rpcpkg.RequestContext
	RequestHooks   = rpcpkg.RequestHooks
	RequestMetrics = rpcpkg.RequestMetrics

	// Errors
	CallError = errspkg.CallError

	// Logging
	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
)

// Response statuses carried by the portal's Response signal.
const (
	ResponseSuccess   = rpcpkg.ResponseSuccess
	ResponseCancelled = rpcpkg.ResponseCancelled
	ResponseOther     = rpcpkg.ResponseOther
)

// Well-known portal names.
const (
	PortalBusName    = rpcpkg.PortalBusName
	PortalObjectPath = rpcpkg.PortalObjectPath
	RequestInterface = rpcpkg.RequestInterface
	SessionInterface = rpcpkg.SessionInterface
)

var (
	New    = rpcpkg.New
	TryNew = rpcpkg.TryNew

	// Path derivation. RequestPath and SessionPath predict the object
	// paths the portal assigns; the call reply remains authoritative.
	NewHandleToken = rpcpkg.NewHandleToken
	SanitizeSender = rpcpkg.SanitizeSender
	RequestPath    = rpcpkg.RequestPath
	SessionPath    = rpcpkg.SessionPath

	// Request lifecycle hooks
	LoggingHooks      = rpcpkg.LoggingHooks
	MetricsHooks      = rpcpkg.MetricsHooks
	NewRequestMetrics = rpcpkg.NewRequestMetrics

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrBusRequired       = errspkg.ErrBusRequired
	ErrInterfaceRequired = errspkg.ErrInterfaceRequired
	ErrMethodRequired    = errspkg.ErrMethodRequired
	ErrConnectionLost    = errspkg.ErrConnectionLost
	ErrInvalidReply      = errspkg.ErrInvalidReply
	ErrMalformedResponse = errspkg.ErrMalformedResponse
	ErrCancelled         = errspkg.ErrCancelled
	ErrRequestFailed     = errspkg.ErrRequestFailed
	ErrNoSessionHandle   = errspkg.ErrNoSessionHandle
)

// Result extracts a typed value from a response vardict. The second return
// is false when the key is absent or the variant does not convert to T.
func Result[T any](resp *Response, key string) (T, bool) {
	return rpcpkg.Result[T](resp, key)
}
