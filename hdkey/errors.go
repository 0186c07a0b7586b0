package hdkey

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeed is returned when a seed maps to a master scalar that
	// is zero or not below the curve order. The only remedy is a new
	// seed.
	ErrInvalidSeed = errors.New("the provided seed produced an invalid " +
		"master key, use another seed")

	// ErrInvalidChild is matched by every InvalidChildError.
	ErrInvalidChild = errors.New("the extended key at this index is " +
		"invalid")

	// ErrDeriveBeyondMaxDepth is returned when deriving a child of a key
	// that is already at the maximum depth.
	ErrDeriveBeyondMaxDepth = errors.New("cannot derive a key with more " +
		"than 255 indices in its path")

	// ErrDeriveHardFromPublic is returned when a hardened child is
	// requested from a public key.
	ErrDeriveHardFromPublic = errors.New("cannot derive a hardened key " +
		"from a public key")

	// ErrMalformedInput is returned when raw key material has the wrong
	// shape.
	ErrMalformedInput = errors.New("malformed key material")

	// ErrInvalidPrivateKey is returned when a private scalar is zero or
	// not below the curve order.
	ErrInvalidPrivateKey = errors.New("private key is outside the valid " +
		"range")

	// ErrInvalidPath is returned when a derivation path cannot be parsed.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrNoValidChild is returned when every index tried by
	// ChildWithRetry produced an invalid key.
	ErrNoValidChild = errors.New("no valid child found in index range")

	// ErrKeyZeroed is returned when a key is used after Zero.
	ErrKeyZeroed = errors.New("extended key has been zeroed")

	// ErrUnsupportedCurve is returned when a key must be converted to a
	// secp256k1 type but lives on another curve.
	ErrUnsupportedCurve = errors.New("key is not on secp256k1")
)

// InvalidChildError is returned when a child index maps to an invalid key.
// This happens with probability below 2^-127; callers should move on to the
// next index.
type InvalidChildError struct {
	// Index is the child index that could not be used.
	Index uint32
}

// Error implements the error interface.
func (e *InvalidChildError) Error() string {
	return fmt.Sprintf("invalid child at index %d, use the next index",
		e.Index)
}

// Is allows errors.Is(err, ErrInvalidChild) to match.
func (e *InvalidChildError) Is(target error) bool {
	return target == ErrInvalidChild
}

func isInvalidChild(err error) bool {
	return errors.Is(err, ErrInvalidChild)
}
