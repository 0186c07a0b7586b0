// Package seed holds the ephemeral root secret from which a key hierarchy is
// derived. A Seed can be read exactly once: the read wipes it.
package seed

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// SeedBytes is the size of a seed in bytes.
	SeedBytes = 64
)

var (
	// ErrInvalidSeedLen is returned when a seed of the wrong size is
	// supplied.
	ErrInvalidSeedLen = fmt.Errorf("seed length must be %d bytes",
		SeedBytes)

	// ErrSeedConsumed is returned when a seed is used a second time.
	ErrSeedConsumed = errors.New("seed has already been consumed")
)

// Seed is a 64-byte secret that is wiped the first time it is used.
type Seed struct {
	mtx      sync.Mutex
	buf      [SeedBytes]byte
	consumed bool
}

// New creates a Seed from b. The seed takes ownership of the secret: b is
// copied and then zeroed, so the caller is left without a copy.
func New(b []byte) (*Seed, error) {
	if len(b) != SeedBytes {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeedLen, len(b))
	}

	s := &Seed{}
	copy(s.buf[:], b)
	clear(b)

	return s, nil
}

// Use passes the secret to f and wipes it afterwards, whatever f returns.
// The slice handed to f is only valid for the duration of the call and must
// not be retained. Any later call returns ErrSeedConsumed.
func (s *Seed) Use(f func(secret []byte) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.consumed {
		return ErrSeedConsumed
	}

	defer s.wipe()

	return f(s.buf[:])
}

// Consumed reports whether the seed has been used or destroyed.
func (s *Seed) Consumed() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.consumed
}

// Destroy wipes the seed without using it.
func (s *Seed) Destroy() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.wipe()
}

// wipe zeroes the buffer and marks the seed as spent. The caller must hold
// the mutex.
func (s *Seed) wipe() {
	clear(s.buf[:])
	s.consumed = true
}

// Source produces fresh seeds.
type Source interface {
	// Seed returns a new, unused seed.
	Seed(ctx context.Context) (*Seed, error)
}

// ReaderSource is a Source that reads seeds from an io.Reader.
type ReaderSource struct {
	r io.Reader
}

// A compile time check to ensure ReaderSource satisfies Source.
var _ Source = (*ReaderSource)(nil)

// NewReaderSource returns a Source that reads SeedBytes from r per seed. The
// quality of the seeds is exactly the quality of r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// Seed reads a new seed from the underlying reader.
//
// NOTE: This is part of the Source interface.
func (r *ReaderSource) Seed(ctx context.Context) (*Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf [SeedBytes]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return nil, fmt.Errorf("unable to read seed: %w", err)
	}

	log.Debugf("Read new %d byte seed from source", SeedBytes)

	return New(buf[:])
}

// CryptoSource reads seeds from the operating system's CSPRNG.
var CryptoSource Source = NewReaderSource(rand.Reader)

// Generate returns a fresh seed from CryptoSource.
func Generate(ctx context.Context) (*Seed, error) {
	return CryptoSource.Seed(ctx)
}
