package hdkey

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/hdtree/hdtree/ecc"
)

// ExtendedPublicKey is a public point together with the chain code and
// position metadata of the private key it was taken from.
type ExtendedPublicKey struct {
	point     ecc.Point
	chainCode [ChainCodeSize]byte
	curve     *ecc.Domain
	depth     uint8
	parentFP  uint32
	index     uint32
	hash      KeyedHash
}

// NewExtendedPublicKey returns the public counterpart of xpriv. The chain
// code and position metadata are copied unchanged.
func NewExtendedPublicKey(
	xpriv *ExtendedPrivateKey) (*ExtendedPublicKey, error) {

	point, err := xpriv.publicPoint()
	if err != nil {
		return nil, fmt.Errorf("unable to compute public key: %w", err)
	}

	return &ExtendedPublicKey{
		point:     point,
		chainCode: xpriv.chainCode,
		curve:     xpriv.curve,
		depth:     xpriv.depth,
		parentFP:  xpriv.parentFP,
		index:     xpriv.index,
		hash:      xpriv.hash,
	}, nil
}

// Child derives the normal child at index i from the public key alone. The
// result matches the public key of the private child at the same index.
// Hardened indices fail with ErrDeriveHardFromPublic.
func (k *ExtendedPublicKey) Child(i uint32) (*ExtendedPublicKey, error) {
	if i >= HardenedKeyStart {
		return nil, ErrDeriveHardFromPublic
	}
	if k.depth == MaxDepth {
		return nil, ErrDeriveBeyondMaxDepth
	}

	data := k.point.SerializeCompressed()
	data = binary.BigEndian.AppendUint32(data, i)

	lr := k.hash(k.chainCode[:], data)

	// K_i = I_L·G + K_par, and both I_L ≥ n and K_i = ∞ make the index
	// unusable.
	tweak := new(big.Int).SetBytes(lr[:len(lr)/2])
	if tweak.Cmp(k.curve.N()) >= 0 {
		return nil, &InvalidChildError{Index: i}
	}

	tweakPoint, err := ecc.Generator(k.curve).ScalarMult(tweak)
	if err != nil {
		return nil, err
	}

	childPoint, err := tweakPoint.Add(k.point)
	if err != nil {
		return nil, err
	}
	if childPoint.IsInfinity() {
		return nil, &InvalidChildError{Index: i}
	}

	child := &ExtendedPublicKey{
		point:    childPoint,
		curve:    k.curve,
		depth:    k.depth + 1,
		parentFP: k.Fingerprint(),
		index:    i,
		hash:     k.hash,
	}
	copy(child.chainCode[:], lr[len(lr)/2:])

	log.Tracef("Derived public child %v of key %v at depth %d",
		indexString(i), fingerprintString(child.parentFP), child.depth)

	return child, nil
}

// Point returns the public point.
func (k *ExtendedPublicKey) Point() ecc.Point {
	return k.point
}

// PubKeyBytes returns the compressed encoding of the public point.
func (k *ExtendedPublicKey) PubKeyBytes() []byte {
	return k.point.SerializeCompressed()
}

// ECPubKey converts the key to a btcec public key.
func (k *ExtendedPublicKey) ECPubKey() (*btcec.PublicKey, error) {
	if k.curve.ID() != ecc.Secp256k1 {
		return nil, ErrUnsupportedCurve
	}

	return btcec.ParsePubKey(k.PubKeyBytes())
}

// Fingerprint returns the first four bytes of HASH160 of the compressed
// public key, read big endian.
func (k *ExtendedPublicKey) Fingerprint() uint32 {
	return pointFingerprint(k.point)
}

// ParentFingerprint returns the fingerprint of the parent key.
func (k *ExtendedPublicKey) ParentFingerprint() uint32 {
	return k.parentFP
}

// Depth returns the number of derivation steps from the master key.
func (k *ExtendedPublicKey) Depth() uint8 {
	return k.depth
}

// ChildIndex returns the index this key was derived at.
func (k *ExtendedPublicKey) ChildIndex() uint32 {
	return k.index
}

// IsHardened reports whether the key was derived at a hardened index.
func (k *ExtendedPublicKey) IsHardened() bool {
	return k.index >= HardenedKeyStart
}

// ChainCode returns a copy of the chain code.
func (k *ExtendedPublicKey) ChainCode() []byte {
	return append([]byte(nil), k.chainCode[:]...)
}

// Curve returns the curve the key lives on.
func (k *ExtendedPublicKey) Curve() *ecc.Domain {
	return k.curve
}

// String returns the key's position and compressed public key in hex.
func (k *ExtendedPublicKey) String() string {
	return fmt.Sprintf("ExtendedPublicKey(depth=%d, index=%v, "+
		"parent=%s, pub=%x)", k.depth, indexString(k.index),
		fingerprintString(k.parentFP), k.PubKeyBytes())
}
