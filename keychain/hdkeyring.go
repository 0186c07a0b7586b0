package keychain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/hdtree/hdtree/build"
	"github.com/hdtree/hdtree/hdkey"
)

// maxIndexRetries bounds how many consecutive invalid children
// DeriveNextKey skips before giving up.
const maxIndexRetries = 16

// HDKeyRing is an implementation of both the KeyRing and SecretKeyRing
// interfaces backed by an in-memory BIP32 tree. All keys are derived below
// the ring's scope:
//
//   - m/purpose'/coinType'/keyFamily'/0/index
//
// so every key is fully determined by the root and its KeyLocator.
type HDKeyRing struct {
	scope KeyScope

	// scopeKey is m/purpose'/coinType'.
	scopeKey *hdkey.ExtendedPrivateKey

	// scanLimit bounds the scan of DerivePrivKey when only the public
	// key is known.
	scanLimit int

	mtx sync.Mutex

	// branches caches m/purpose'/coinType'/keyFamily'/0 per family.
	branches map[KeyFamily]*hdkey.ExtendedPrivateKey

	// nextIndex is the next unused index per family.
	nextIndex map[KeyFamily]uint32
}

// A compile time check to ensure HDKeyRing implements the SecretKeyRing
// interface.
var _ SecretKeyRing = (*HDKeyRing)(nil)

// NewHDKeyRing creates a key ring that derives from root, which is expected
// to be a master key, below the given scope.
func NewHDKeyRing(root *hdkey.ExtendedPrivateKey,
	scope KeyScope) (*HDKeyRing, error) {

	purpose, err := hardenedIndex(scope.Purpose)
	if err != nil {
		return nil, fmt.Errorf("invalid purpose of key scope %v: %w",
			scope, err)
	}
	coin, err := hardenedIndex(scope.Coin)
	if err != nil {
		return nil, fmt.Errorf("invalid coin type of key scope %v: %w",
			scope, err)
	}

	scopeKey, err := hdkey.DerivePath(root, hdkey.Path{purpose, coin})
	if err != nil {
		return nil, fmt.Errorf("unable to derive key scope %v: %w",
			scope, err)
	}

	log.Debugf("Created key ring for scope %v", scope)

	return &HDKeyRing{
		scope:     scope,
		scopeKey:  scopeKey,
		scanLimit: MaxKeyRangeScan,
		branches:  make(map[KeyFamily]*hdkey.ExtendedPrivateKey),
		nextIndex: make(map[KeyFamily]uint32),
	}, nil
}

// Scope returns the key scope of the ring.
func (h *HDKeyRing) Scope() KeyScope {
	return h.scope
}

// branch returns the external branch of a family, deriving and caching it on
// first use. The caller must hold the mutex.
func (h *HDKeyRing) branch(keyFam KeyFamily) (*hdkey.ExtendedPrivateKey,
	error) {

	if b, ok := h.branches[keyFam]; ok {
		return b, nil
	}

	account, err := hardenedIndex(uint32(keyFam))
	if err != nil {
		return nil, fmt.Errorf("invalid key family: %w", err)
	}

	b, err := hdkey.DerivePath(h.scopeKey, hdkey.Path{
		account, externalBranch,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to derive branch of key "+
			"family %d: %w", keyFam, err)
	}
	h.branches[keyFam] = b

	return b, nil
}

// lockedBranch is branch for callers that do not hold the mutex.
func (h *HDKeyRing) lockedBranch(keyFam KeyFamily) (*hdkey.ExtendedPrivateKey,
	error) {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	return h.branch(keyFam)
}

// DeriveNextKey attempts to derive the *next* key within the key family
// (account in BIP43) specified. This method should return the next external
// child within this branch. Indices that produce invalid keys are skipped.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (h *HDKeyRing) DeriveNextKey(keyFam KeyFamily) (KeyDescriptor, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	b, err := h.branch(keyFam)
	if err != nil {
		return KeyDescriptor{}, err
	}

	child, index, err := b.ChildWithRetry(
		h.nextIndex[keyFam], maxIndexRetries,
	)
	if err != nil {
		return KeyDescriptor{}, err
	}
	h.nextIndex[keyFam] = index + 1

	desc, err := descriptorFor(KeyLocator{Family: keyFam, Index: index},
		child)
	if err != nil {
		return KeyDescriptor{}, err
	}

	log.DebugS(context.Background(), "Derived next key",
		slog.Uint64("family", uint64(keyFam)),
		slog.Uint64("index", uint64(index)),
		build.LogPubKey("pub_key", desc.PubKey.SerializeCompressed()))

	return desc, nil
}

// DeriveKey attempts to derive an arbitrary key specified by the passed
// KeyLocator. This may be used in several recovery scenarios, or when manually
// rotating a key.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (h *HDKeyRing) DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error) {
	child, err := h.deriveChild(keyLoc)
	if err != nil {
		return KeyDescriptor{}, err
	}

	return descriptorFor(keyLoc, child)
}

// deriveChild returns the private key at keyLoc.
func (h *HDKeyRing) deriveChild(
	keyLoc KeyLocator) (*hdkey.ExtendedPrivateKey, error) {

	if keyLoc.Index >= hdkey.HardenedKeyStart {
		return nil, fmt.Errorf("key index %d is hardened, only normal "+
			"indices are used", keyLoc.Index)
	}

	b, err := h.lockedBranch(keyLoc.Family)
	if err != nil {
		return nil, err
	}

	return b.Child(keyLoc.Index)
}

// DerivePrivKey attempts to derive the private key that corresponds to the
// passed key descriptor. If the public key is set and the index is zero, the
// family is scanned for a key matching it.
//
// NOTE: This is part of the keychain.SecretKeyRing interface.
func (h *HDKeyRing) DerivePrivKey(
	keyDesc KeyDescriptor) (*btcec.PrivateKey, error) {

	hint := keyDesc.pubKeyHint()

	// If the public key isn't set or they have a non-zero index, then we
	// know that the caller instead knows the derivation path for a key.
	if hint.IsNone() || keyDesc.Index != 0 {
		child, err := h.deriveChild(keyDesc.KeyLocator)
		if err != nil {
			return nil, err
		}

		privKey, err := child.ECPrivKey()
		if err != nil {
			return nil, err
		}

		matches := true
		hint.WhenSome(func(pub *btcec.PublicKey) {
			matches = pub.IsEqual(privKey.PubKey())
		})
		if matches {
			return privKey, nil
		}
	}

	// Otherwise we scan the family in order with public derivation,
	// which is enough to recognise the key.
	pub, err := hint.UnwrapOrErr(ErrCannotDerivePrivKey)
	if err != nil {
		return nil, err
	}

	b, err := h.lockedBranch(keyDesc.Family)
	if err != nil {
		return nil, err
	}
	xpub, err := b.Neuter()
	if err != nil {
		return nil, err
	}

	for i := 0; i < h.scanLimit; i++ {
		childPub, err := xpub.Child(uint32(i))
		if errors.Is(err, hdkey.ErrInvalidChild) {
			continue
		}
		if err != nil {
			return nil, err
		}

		candidate, err := childPub.ECPubKey()
		if err != nil {
			return nil, err
		}
		if !candidate.IsEqual(pub) {
			continue
		}

		log.Debugf("Found key of family %d at index %d after scan",
			keyDesc.Family, i)

		child, err := b.Child(uint32(i))
		if err != nil {
			return nil, err
		}

		return child.ECPrivKey()
	}

	return nil, ErrCannotDerivePrivKey
}

// ECDH performs a scalar multiplication (ECDH-like operation) between the
// target key descriptor and remote public key. The output returned will be
// the sha256 of the resulting shared point serialized in compressed format. If
// k is our private key, and P is the public key, we perform the following
// operation:
//
//	sx := k*P
//	s := sha256(sx.SerializeCompressed())
//
// NOTE: This is part of the keychain.ECDHRing interface.
func (h *HDKeyRing) ECDH(keyDesc KeyDescriptor,
	pub *btcec.PublicKey) ([32]byte, error) {

	privKey, err := h.DerivePrivKey(keyDesc)
	if err != nil {
		return [32]byte{}, err
	}

	return ecdh(privKey, pub)
}

// descriptorFor builds the descriptor of a derived key.
func descriptorFor(keyLoc KeyLocator,
	key *hdkey.ExtendedPrivateKey) (KeyDescriptor, error) {

	xpub, err := key.Neuter()
	if err != nil {
		return KeyDescriptor{}, err
	}

	pubKey, err := xpub.ECPubKey()
	if err != nil {
		return KeyDescriptor{}, err
	}

	return KeyDescriptor{
		KeyLocator: keyLoc,
		PubKey:     pubKey,
	}, nil
}
