package rpc

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"

	errspkg "github.com/drblury/portalflow/internal/errors"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    []any
		want    ResponseStatus
		wantErr bool
	}{
		{
			name: "success with results",
			body: []any{uint32(0), map[string]dbus.Variant{"uri": dbus.MakeVariant("file:///shot.png")}},
			want: ResponseSuccess,
		},
		{
			name: "cancelled with empty results",
			body: []any{uint32(1), map[string]dbus.Variant{}},
			want: ResponseCancelled,
		},
		{
			name: "status only",
			body: []any{uint32(2)},
			want: ResponseOther,
		},
		{
			name:    "empty body",
			body:    nil,
			wantErr: true,
		},
		{
			name:    "status of wrong type",
			body:    []any{int32(0), map[string]dbus.Variant{}},
			wantErr: true,
		},
		{
			name:    "results of wrong type",
			body:    []any{uint32(0), "not a vardict"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeResponse(tt.body)
			if tt.wantErr {
				if !errors.Is(err, errspkg.ErrMalformedResponse) {
					t.Fatalf("decodeResponse() error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeResponse() unexpected error: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("Status = %v, want %v", resp.Status, tt.want)
			}
		})
	}
}

func TestResponseErr(t *testing.T) {
	if err := (&Response{Status: ResponseSuccess}).Err(); err != nil {
		t.Errorf("success status mapped to error %v", err)
	}
	if err := (&Response{Status: ResponseCancelled}).Err(); !errors.Is(err, errspkg.ErrCancelled) {
		t.Errorf("cancelled status mapped to %v, want ErrCancelled", err)
	}
	if err := (&Response{Status: ResponseOther}).Err(); !errors.Is(err, errspkg.ErrRequestFailed) {
		t.Errorf("other status mapped to %v, want ErrRequestFailed", err)
	}
	if err := (&Response{Status: ResponseStatus(9)}).Err(); !errors.Is(err, errspkg.ErrRequestFailed) {
		t.Errorf("unknown status mapped to %v, want ErrRequestFailed", err)
	}
}

func TestResponseStatusString(t *testing.T) {
	tests := []struct {
		status ResponseStatus
		want   string
	}{
		{ResponseSuccess, "success"},
		{ResponseCancelled, "cancelled"},
		{ResponseOther, "other"},
		{ResponseStatus(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("ResponseStatus(%d).String() = %q, want %q", uint32(tt.status), got, tt.want)
		}
	}
}

func TestResult(t *testing.T) {
	resp := &Response{
		Status: ResponseSuccess,
		Results: map[string]dbus.Variant{
			"uri":     dbus.MakeVariant("file:///shot.png"),
			"devices": dbus.MakeVariant(uint32(3)),
			"handle":  dbus.MakeVariant(dbus.ObjectPath("/org/example/s1")),
		},
	}

	if uri, ok := Result[string](resp, "uri"); !ok || uri != "file:///shot.png" {
		t.Errorf("Result[string](uri) = %q, %v", uri, ok)
	}
	if devices, ok := Result[uint32](resp, "devices"); !ok || devices != 3 {
		t.Errorf("Result[uint32](devices) = %d, %v", devices, ok)
	}
	if path, ok := Result[dbus.ObjectPath](resp, "handle"); !ok || path != "/org/example/s1" {
		t.Errorf("Result[dbus.ObjectPath](handle) = %q, %v", path, ok)
	}
	if _, ok := Result[string](resp, "missing"); ok {
		t.Error("Result reported a missing key as present")
	}
	if _, ok := Result[string](nil, "uri"); ok {
		t.Error("Result on a nil response reported ok")
	}
}
