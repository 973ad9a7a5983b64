package rpc

import (
	"github.com/godbus/dbus/v5"

	errspkg "github.com/drblury/portalflow/internal/errors"
)

// ResponseStatus is the 32-bit outcome code carried by a Response signal.
type ResponseStatus uint32

const (
	// ResponseSuccess means the request succeeded and the results vardict
	// is meaningful.
	ResponseSuccess ResponseStatus = 0
	// ResponseCancelled means the user dismissed the interaction.
	ResponseCancelled ResponseStatus = 1
	// ResponseOther covers every other failure reported by the portal.
	ResponseOther ResponseStatus = 2
)

func (s ResponseStatus) String() string {
	switch s {
	case ResponseSuccess:
		return "success"
	case ResponseCancelled:
		return "cancelled"
	case ResponseOther:
		return "other"
	default:
		return "unknown"
	}
}

// Response is the decoded terminal outcome of one portal request. Every
// status, including the non-success ones, is a successful completion of
// the wait from the engine's perspective; typed wrappers interpret
// non-success via Err.
type Response struct {
	Status  ResponseStatus
	Results map[string]dbus.Variant
}

// Err maps non-success statuses onto sentinel errors for typed wrappers.
func (r *Response) Err() error {
	switch r.Status {
	case ResponseSuccess:
		return nil
	case ResponseCancelled:
		return errspkg.ErrCancelled
	default:
		return errspkg.ErrRequestFailed
	}
}

// Result extracts a typed value from the response vardict. The second
// return is false when the key is absent or the variant does not convert
// to T.
func Result[T any](r *Response, key string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	variant, ok := r.Results[key]
	if !ok {
		return zero, false
	}
	if value, ok := variant.Value().(T); ok {
		return value, true
	}
	var converted T
	if err := dbus.Store([]any{variant.Value()}, &converted); err == nil {
		return converted, true
	}
	return zero, false
}

// decodeResponse decodes a Response signal body of shape
// (uint32 status, map[string]dbus.Variant results). The results vardict
// may be absent on some portal implementations.
func decodeResponse(body []any) (*Response, error) {
	if len(body) == 0 {
		return nil, errspkg.ErrMalformedResponse
	}
	status, ok := body[0].(uint32)
	if !ok {
		return nil, errspkg.ErrMalformedResponse
	}
	resp := &Response{Status: ResponseStatus(status)}
	if len(body) > 1 {
		results, ok := body[1].(map[string]dbus.Variant)
		if !ok {
			return nil, errspkg.ErrMalformedResponse
		}
		resp.Results = results
	}
	return resp, nil
}
