package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied by Normalized for zero-valued fields.
const (
	DefaultCallTimeout  = 25 * time.Second
	DefaultSignalBuffer = 16
)

// Config groups the connection settings required by the request engine.
type Config struct {
	// BusAddress optionally points to a non-default bus socket, in D-Bus
	// address syntax (for example "unix:path=/run/user/1000/bus"). Leave
	// empty to use the session bus from the environment.
	BusAddress string

	// CallTimeout bounds each portal method call when the caller's context
	// carries no deadline of its own. It does not bound the wait for the
	// out-of-band response. Zero falls back to DefaultCallTimeout.
	CallTimeout time.Duration

	// SignalBuffer is the capacity of each request's signal channel. Zero
	// falls back to DefaultSignalBuffer. The portal emits exactly one
	// Response per request; headroom only matters when several signals
	// race on a shared connection.
	SignalBuffer int

	// MetricsEnabled turns on Prometheus request metrics.
	MetricsEnabled bool
}

// Validate checks that the configuration is internally consistent. Returns
// an error describing every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("call timeout must not be negative, got %s", c.CallTimeout))
	}
	if c.SignalBuffer < 0 {
		errs = append(errs, fmt.Errorf("signal buffer must not be negative, got %d", c.SignalBuffer))
	}

	return errors.Join(errs...)
}

// Normalized returns a copy with defaults filled in for zero values.
func (c *Config) Normalized() Config {
	out := *c
	if out.CallTimeout == 0 {
		out.CallTimeout = DefaultCallTimeout
	}
	if out.SignalBuffer == 0 {
		out.SignalBuffer = DefaultSignalBuffer
	}
	return out
}
