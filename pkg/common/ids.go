package common

import (
	"crypto/rand"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new time-sortable unique identifier. IDs generated within
// the same millisecond remain monotonically ordered.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// NewCorrelationID returns a short opaque id used to correlate all records
// produced while processing a single document.
func NewCorrelationID() string {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the OS entropy source does; fall back
		// to the ULID generator rather than returning an empty id.
		return NewID()
	}
	return id
}
