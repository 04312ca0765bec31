// Package id provides ULID generation for query and document identifiers.
//
// ULIDs sort lexicographically by creation time:
//
//	id.NewULID()                                  // e.g. "01ARZ3NDEKTSV4RRFFQ69G5FAV"
//	id.Deterministic(info.ModTime(), "docs/a.md") // same input, same ID
package id

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator defines the interface for ID generators.
type Generator interface {
	Generate() string
}

// ULIDGenerator generates monotonic ULIDs; IDs from one generator are
// strictly increasing even within the same millisecond.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator creates a generator backed by crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

var defaultULID = sync.OnceValue(NewULIDGenerator)

// NewULID generates a new ULID string with the default generator.
func NewULID() string {
	return defaultULID().Generate()
}

// Deterministic derives a ULID from a timestamp and a key: the time part is
// t and the entropy is the SHA-256 of key.
func Deterministic(t time.Time, key string) string {
	sum := sha256.Sum256([]byte(key))
	var u ulid.ULID
	if err := u.SetTime(ulid.Timestamp(t)); err != nil {
		// Times before the Unix epoch or after year 10889.
		_ = u.SetTime(0)
	}
	if err := u.SetEntropy(sum[:10]); err != nil {
		panic(fmt.Sprintf("id: set entropy: %v", err))
	}
	return u.String()
}

// Time returns the timestamp encoded in a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ULID %q: %w", s, err)
	}
	return ulid.Time(u.Time()), nil
}

// Valid reports whether s is a well-formed ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
