package rpc

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewHandleToken returns a token usable as the final segment of a request
// or session object path. Crockford base32 keeps the token inside the
// [A-Za-z0-9_] segment grammar, and the monotonic entropy makes tokens
// generated in the same millisecond distinct, so concurrently outstanding
// requests from one process never collide.
func NewHandleToken() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return "portalflow_" + id.String()
}
