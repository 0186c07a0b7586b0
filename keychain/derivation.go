package keychain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/hdtree/hdtree/hdkey"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// BIP0043Purpose is the default "purpose" of a key scope. All keys of
	// a ring are derived below this purpose and the coin type of the
	// chain the keys are meant for. Sticking to the BIP0043 template
	// keeps the tree readable by other BIP32 tools.
	BIP0043Purpose = 1017

	// BIP0044Purpose is the purpose of the classic BIP0044 wallet layout.
	BIP0044Purpose = 44

	// CoinTypeBitcoin specifies the BIP44 coin type for Bitcoin key
	// derivation.
	CoinTypeBitcoin uint32 = 0

	// CoinTypeTestnet specifies the BIP44 coin type for all testnet key
	// derivation.
	CoinTypeTestnet = 1

	// CoinTypeLitecoin specifies the BIP44 coin type for Litecoin key
	// derivation.
	CoinTypeLitecoin = 2

	// externalBranch is the branch all keys of a family are taken from.
	externalBranch = 0
)

var (
	// MaxKeyRangeScan is the maximum number of keys that we'll attempt to
	// scan with if a caller knows the public key, but not the KeyLocator
	// and wishes to derive a private key.
	MaxKeyRangeScan = 100000

	// ErrCannotDerivePrivKey is returned when DerivePrivKey is unable to
	// derive a private key given only the public key and target key
	// family.
	ErrCannotDerivePrivKey = fmt.Errorf("unable to derive private key")

	// ErrHardenedOverflow is returned when a purpose, coin type or key
	// family is too large to be turned into a hardened index.
	ErrHardenedOverflow = errors.New("value must be below 2^31 to be " +
		"used as a hardened index")
)

// hardenedIndex returns v as a hardened child index.
func hardenedIndex(v uint32) (uint32, error) {
	if v >= hdkey.HardenedKeyStart {
		return 0, fmt.Errorf("%w: got %d", ErrHardenedOverflow, v)
	}

	return v + hdkey.HardenedKeyStart, nil
}

// KeyScope selects the subtree a key ring derives from: m/purpose'/coin'.
type KeyScope struct {
	// Purpose is the BIP0043 purpose of the subtree.
	Purpose uint32

	// Coin is the coin type of the chain the keys are used on.
	Coin uint32
}

// String returns the scope in path notation.
func (k KeyScope) String() string {
	return fmt.Sprintf("m/%d'/%d'", k.Purpose, k.Coin)
}

// KeyFamily represents a "family" of keys. Families are distinct branches
// of the tree so that keys used for different things never collide, and all
// of them can be restored from the seed alone.
//
// The key derivation in this package follows the following hierarchy based
// on BIP43:
//
//   - m/purpose'/coinType'/keyFamily'/0/index
type KeyFamily uint32

// KeyLocator is a two-tuple that can be used to derive *any* key of a ring.
// Together with the ring's scope it names the full path
//
//   - m/purpose'/coinType'/keyFamily'/0/index
//
// The key family is an "account" in the nomenclature of BIP43. Only the
// external branch 0 is used. The index is the final, normal element.
type KeyLocator struct {
	// Family is the family of key being identified.
	Family KeyFamily

	// Index is the precise index of the key being identified.
	Index uint32
}

// IsEmpty returns true if a KeyLocator is "empty". This may be the case where
// we learn of a key from a remote party, but don't know the precise details
// of its derivation (as we don't know the private key!).
func (k KeyLocator) IsEmpty() bool {
	return k.Family == 0 && k.Index == 0
}

// KeyDescriptor wraps a KeyLocator and also optionally includes a public key.
// Either the KeyLocator must be non-empty, or the public key pointer be
// non-nil. This will be used by the KeyRing interface to lookup arbitrary
// private keys.
type KeyDescriptor struct {
	// KeyLocator is the internal KeyLocator of the descriptor.
	KeyLocator

	// PubKey is an optional public key that fully describes a target key.
	// If this is nil, the KeyLocator MUST NOT be empty.
	PubKey *btcec.PublicKey
}

// pubKeyHint returns the public key of the descriptor, if any.
func (k KeyDescriptor) pubKeyHint() fn.Option[*btcec.PublicKey] {
	if k.PubKey == nil {
		return fn.None[*btcec.PublicKey]()
	}

	return fn.Some(k.PubKey)
}

// KeyRing is the primary interface that will be used to perform public
// derivation of the keys of a scope.
type KeyRing interface {
	// DeriveNextKey attempts to derive the *next* key within the key
	// family (account in BIP43) specified. This method should return the
	// next external child within this branch.
	DeriveNextKey(keyFam KeyFamily) (KeyDescriptor, error)

	// DeriveKey attempts to derive an arbitrary key specified by the
	// passed KeyLocator. This may be used in several recovery scenarios,
	// or when manually rotating a key.
	DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error)
}

// SecretKeyRing is a ring similar to the regular KeyRing interface, but it is
// also able to derive *private keys*. As this is a super-set of the regular
// KeyRing, we also expect the SecretKeyRing to implement the fully KeyRing
// interface.
type SecretKeyRing interface {
	KeyRing

	ECDHRing

	// DerivePrivKey attempts to derive the private key that corresponds to
	// the passed key descriptor.  If the public key is set, then this
	// method will perform an in-order scan over the key set, with a max of
	// MaxKeyRangeScan keys. In order for this to work, the caller MUST set
	// the KeyFamily within the partially populated KeyLocator.
	DerivePrivKey(keyDesc KeyDescriptor) (*btcec.PrivateKey, error)
}

// ECDHRing is an interface that abstracts away basic low-level ECDH shared key
// generation on keys within a key ring.
type ECDHRing interface {
	// ECDH performs a scalar multiplication (ECDH-like operation) between
	// the target key descriptor and remote public key. The output
	// returned will be the sha256 of the resulting shared point serialized
	// in compressed format. If k is our private key, and P is the public
	// key, we perform the following operation:
	//
	//  sx := k*P
	//  s := sha256(sx.SerializeCompressed())
	ECDH(keyDesc KeyDescriptor, pubKey *btcec.PublicKey) ([32]byte, error)
}

// SingleKeyECDH is an abstraction interface that hides the implementation of an
// ECDH operation by wrapping a single, specific private key.
type SingleKeyECDH interface {
	// PubKey returns the public key of the wrapped private key.
	PubKey() *btcec.PublicKey

	// ECDH performs a scalar multiplication (ECDH-like operation) between
	// the wrapped private key and remote public key. The output returned
	// will be the sha256 of the resulting shared point serialized in
	// compressed format.
	ECDH(pubKey *btcec.PublicKey) ([32]byte, error)
}
