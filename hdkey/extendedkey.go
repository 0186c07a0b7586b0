// Package hdkey implements BIP32 hierarchical deterministic key derivation on
// top of the curve arithmetic in package ecc.
//
// A master key is derived once from a seed; every other key in the tree is a
// child of it. Private keys can derive hardened and normal children, public
// keys only normal ones. Keys are immutable once created, with the exception
// of Zero.
package hdkey

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/hdtree/hdtree/build"
	"github.com/hdtree/hdtree/ecc"
	"github.com/hdtree/hdtree/seed"
)

const (
	// HardenedKeyStart is the index at which hardened keys begin. Every
	// index at or above it is hardened.
	HardenedKeyStart = 0x80000000 // 2^31

	// ChainCodeSize is the size of a chain code in bytes.
	ChainCodeSize = 32

	// MaxDepth is the deepest level a key can sit at.
	MaxDepth = math.MaxUint8
)

// ExtendedPrivateKey is a private scalar together with the chain code and
// position metadata needed to derive its children.
type ExtendedPrivateKey struct {
	key       *big.Int
	chainCode [ChainCodeSize]byte
	curve     *ecc.Domain
	depth     uint8
	parentFP  uint32
	index     uint32
	hash      KeyedHash

	pubOnce sync.Once
	pub     ecc.Point
	pubErr  error
}

// NewMaster derives the master key of a hierarchy from s. The seed is
// consumed: its buffer is wiped before NewMaster returns, and using it again
// yields seed.ErrSeedConsumed. ErrInvalidSeed is returned for the
// negligible fraction of seeds that map to an unusable scalar.
func NewMaster(s *seed.Seed, curve *ecc.Domain,
	opts ...Option) (*ExtendedPrivateKey, error) {

	if s == nil || curve == nil {
		return nil, fmt.Errorf("%w: seed and curve are required",
			ErrMalformedInput)
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	var master *ExtendedPrivateKey
	err := s.Use(func(secret []byte) error {
		lr := cfg.hash(masterKey, secret)
		defer func() {
			clear(lr[:])
		}()

		secretKey := new(big.Int).SetBytes(lr[:len(lr)/2])
		if secretKey.Sign() == 0 || secretKey.Cmp(curve.N()) >= 0 {
			wipeInt(secretKey)
			return ErrInvalidSeed
		}

		master = &ExtendedPrivateKey{
			key:   secretKey,
			curve: curve,
			hash:  cfg.hash,
		}
		copy(master.chainCode[:], lr[len(lr)/2:])

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("Derived master key with fingerprint %v",
		build.NewLogClosure(func() string {
			return fingerprintString(master.Fingerprint())
		}))

	return master, nil
}

// NewExtendedPrivateKey assembles a key from raw parts, e.g. ones restored
// from an external serialization. key must be a big endian scalar of the
// curve's byte size and chainCode must be ChainCodeSize bytes.
func NewExtendedPrivateKey(key, chainCode []byte, curve *ecc.Domain,
	depth uint8, parentFP, index uint32) (*ExtendedPrivateKey, error) {

	switch {
	case curve == nil:
		return nil, fmt.Errorf("%w: curve is required",
			ErrMalformedInput)

	case len(key) != curve.ByteSize():
		return nil, fmt.Errorf("%w: private key must be %d bytes, "+
			"got %d", ErrMalformedInput, curve.ByteSize(), len(key))

	case len(chainCode) != ChainCodeSize:
		return nil, fmt.Errorf("%w: chain code must be %d bytes, "+
			"got %d", ErrMalformedInput, ChainCodeSize,
			len(chainCode))
	}

	k := new(big.Int).SetBytes(key)
	if k.Sign() == 0 || k.Cmp(curve.N()) >= 0 {
		return nil, ErrInvalidPrivateKey
	}

	xpriv := &ExtendedPrivateKey{
		key:      k,
		curve:    curve,
		depth:    depth,
		parentFP: parentFP,
		index:    index,
		hash:     HMACSHA512,
	}
	copy(xpriv.chainCode[:], chainCode)

	return xpriv, nil
}

// Child derives the child key at index i. Indices at or above
// HardenedKeyStart produce hardened children, which cannot be derived from
// the matching public key. An *InvalidChildError is returned when i maps to
// an unusable key; the caller should try i+1.
func (k *ExtendedPrivateKey) Child(i uint32) (*ExtendedPrivateKey, error) {
	if k.key.Sign() == 0 {
		return nil, ErrKeyZeroed
	}
	if k.depth == MaxDepth {
		return nil, ErrDeriveBeyondMaxDepth
	}

	// The data is 0x00 || ser256(k) || ser32(i) for hardened children
	// and serP(K) || ser32(i) for normal ones.
	byteSize := k.curve.ByteSize()
	data := make([]byte, 0, byteSize+5)
	if i >= HardenedKeyStart {
		data = data[:1+byteSize]
		data[0] = 0x00
		k.key.FillBytes(data[1:])
	} else {
		pub, err := k.publicPoint()
		if err != nil {
			return nil, err
		}
		data = append(data, pub.SerializeCompressed()...)
	}
	data = binary.BigEndian.AppendUint32(data, i)

	lr := k.hash(k.chainCode[:], data)
	clear(data)
	defer func() {
		clear(lr[:])
	}()

	n := k.curve.N()
	childKey := new(big.Int).SetBytes(lr[:len(lr)/2])
	if childKey.Cmp(n) >= 0 {
		wipeInt(childKey)
		return nil, &InvalidChildError{Index: i}
	}

	childKey.Add(childKey, k.key)
	childKey.Mod(childKey, n)
	if childKey.Sign() == 0 {
		return nil, &InvalidChildError{Index: i}
	}

	parentFP, err := k.fingerprint()
	if err != nil {
		wipeInt(childKey)
		return nil, err
	}

	child := &ExtendedPrivateKey{
		key:      childKey,
		curve:    k.curve,
		depth:    k.depth + 1,
		parentFP: parentFP,
		index:    i,
		hash:     k.hash,
	}
	copy(child.chainCode[:], lr[len(lr)/2:])

	log.Tracef("Derived child %v of key %v at depth %d",
		indexString(i), fingerprintString(parentFP), child.depth)

	return child, nil
}

// ChildWithRetry derives the child at index i, moving on to i+1, i+2 and so
// on while the index yields an invalid key. At most maxAttempts indices are
// tried and the search never crosses from normal to hardened indices. The
// index that was finally used is returned alongside the key.
func (k *ExtendedPrivateKey) ChildWithRetry(i uint32,
	maxAttempts int) (*ExtendedPrivateKey, uint32, error) {

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	hardened := i >= HardenedKeyStart
	idx, last := i, i
	for attempt := 0; attempt < maxAttempts; attempt++ {
		child, err := k.Child(idx)
		switch {
		case err == nil:
			return child, idx, nil

		case !isInvalidChild(err):
			return nil, 0, err
		}
		last = idx

		log.Debugf("Child index %v is invalid, trying the next one",
			indexString(idx))

		next := idx + 1
		if next < idx || (next >= HardenedKeyStart) != hardened {
			break
		}
		idx = next
	}

	return nil, 0, fmt.Errorf("%w: tried %v through %v", ErrNoValidChild,
		indexString(i), indexString(last))
}

// Neuter returns the public half of the key.
func (k *ExtendedPrivateKey) Neuter() (*ExtendedPublicKey, error) {
	return NewExtendedPublicKey(k)
}

// Fingerprint returns the first four bytes of HASH160 of the compressed
// public key, read big endian. Children record it as their parent
// fingerprint.
func (k *ExtendedPrivateKey) Fingerprint() uint32 {
	fp, err := k.fingerprint()
	if err != nil {
		return 0
	}

	return fp
}

func (k *ExtendedPrivateKey) fingerprint() (uint32, error) {
	pub, err := k.publicPoint()
	if err != nil {
		return 0, err
	}

	return pointFingerprint(pub), nil
}

// publicPoint computes k·G once and caches it.
func (k *ExtendedPrivateKey) publicPoint() (ecc.Point, error) {
	k.pubOnce.Do(func() {
		k.pub, k.pubErr = ecc.Generator(k.curve).ScalarMult(k.key)
	})

	return k.pub, k.pubErr
}

// ParentFingerprint returns the fingerprint of the parent key, or zero for
// a master key.
func (k *ExtendedPrivateKey) ParentFingerprint() uint32 {
	return k.parentFP
}

// Depth returns the number of derivation steps from the master key.
func (k *ExtendedPrivateKey) Depth() uint8 {
	return k.depth
}

// ChildIndex returns the index this key was derived at. It is zero for a
// master key.
func (k *ExtendedPrivateKey) ChildIndex() uint32 {
	return k.index
}

// IsHardened reports whether the key was derived at a hardened index.
func (k *ExtendedPrivateKey) IsHardened() bool {
	return k.index >= HardenedKeyStart
}

// ChainCode returns a copy of the chain code.
func (k *ExtendedPrivateKey) ChainCode() []byte {
	return append([]byte(nil), k.chainCode[:]...)
}

// Key returns a copy of the private scalar as a big endian byte slice padded
// to the curve's byte size.
func (k *ExtendedPrivateKey) Key() []byte {
	return k.key.FillBytes(make([]byte, k.curve.ByteSize()))
}

// Curve returns the curve the key lives on.
func (k *ExtendedPrivateKey) Curve() *ecc.Domain {
	return k.curve
}

// ECPrivKey converts the key to a btcec private key.
func (k *ExtendedPrivateKey) ECPrivKey() (*btcec.PrivateKey, error) {
	if k.curve.ID() != ecc.Secp256k1 {
		return nil, ErrUnsupportedCurve
	}

	keyBytes := k.Key()
	defer clear(keyBytes)

	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)

	return privKey, nil
}

// Zero overwrites the private scalar and chain code and drops the cached
// public key. Deriving from the key or neutering it fails with ErrKeyZeroed
// afterwards, and its fingerprint reads as zero.
func (k *ExtendedPrivateKey) Zero() {
	wipeInt(k.key)
	clear(k.chainCode[:])

	// Make sure a later publicPoint does not compute the point of the
	// wiped scalar.
	k.pubOnce.Do(func() {})
	k.pub = ecc.Point{}
	k.pubErr = ErrKeyZeroed
}

// String describes the key's position without revealing key material.
func (k *ExtendedPrivateKey) String() string {
	return fmt.Sprintf("ExtendedPrivateKey(depth=%d, index=%v, "+
		"parent=%s)", k.depth, indexString(k.index),
		fingerprintString(k.parentFP))
}

// wipeInt zeroes the words backing x before resetting it.
func wipeInt(x *big.Int) {
	clear(x.Bits())
	x.SetInt64(0)
}

// pointFingerprint returns the BIP32 fingerprint of a public point.
func pointFingerprint(p ecc.Point) uint32 {
	return binary.BigEndian.Uint32(
		btcutil.Hash160(p.SerializeCompressed())[:4],
	)
}

func fingerprintString(fp uint32) string {
	return fmt.Sprintf("%08x", fp)
}

func indexString(i uint32) string {
	if i >= HardenedKeyStart {
		return fmt.Sprintf("%d'", i-HardenedKeyStart)
	}

	return fmt.Sprintf("%d", i)
}
