// Package ulid generates the identifiers for persisted selections.
package ulid

import (
	cryptorand "crypto/rand"
	"io"
	mathrand "math/rand/v2"
	"sync"
	"time"

	oklid "github.com/oklog/ulid/v2"
)

// each pooled reader is a monotonic source over its own ChaCha8 stream
var entropyPool = sync.Pool{
	New: func() any {
		var seed [32]byte
		if _, err := cryptorand.Read(seed[:]); err != nil {
			panic("ulid: crypto/rand: " + err.Error())
		}
		rnd := mathrand.NewChaCha8(seed)
		return oklid.Monotonic(rnd, 0)
	},
}

// Make returns a new ULID for time t.
func Make(t time.Time) (oklid.ULID, error) {
	entropy := entropyPool.Get().(io.Reader)
	defer entropyPool.Put(entropy)

	return oklid.New(oklid.Timestamp(t), entropy)
}

// String is Make rendered in the canonical 26 character form.
func String(t time.Time) (string, error) {
	id, err := Make(t)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Time extracts the timestamp embedded in a ULID string.
func Time(s string) (time.Time, error) {
	id, err := oklid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return oklid.Time(id.Time()), nil
}
