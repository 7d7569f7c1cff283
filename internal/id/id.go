// Package id issues time-sortable identifiers for positions and deals.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID stamped with the wall clock.
func New() string {
	return At(time.Now())
}

// At returns a ULID stamped with t. The backtest stamps ids with the replay
// clock so they sort in simulated order.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	ms := ulid.Timestamp(t.UTC())
	u, err := ulid.New(ms, entropy)
	if err != nil {
		// Monotonic entropy overflowed inside one millisecond or the clock
		// went backwards; fall back to fresh randomness.
		u = ulid.MustNew(ms, cryptoRand.Reader)
	}
	return u.String()
}

// Time extracts the timestamp embedded in an id produced by New or At.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
