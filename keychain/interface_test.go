package keychain

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/hdtree/hdtree/ecc"
	"github.com/hdtree/hdtree/hdkey"
	"github.com/hdtree/hdtree/seed"
	"github.com/stretchr/testify/require"
)

// testKeyFamilies is a slice of key families exercised by the tests.
var testKeyFamilies = []KeyFamily{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

var testHDSeed = [seed.SeedBytes]byte{
	0xb7, 0x94, 0x38, 0x5f, 0x2d, 0x1e, 0xf7, 0xab,
	0x4d, 0x92, 0x73, 0xd1, 0x90, 0x63, 0x81, 0xb4,
	0x4f, 0x2f, 0x6f, 0x25, 0x98, 0xa3, 0xef, 0xb9,
	0x69, 0x49, 0x18, 0x83, 0x31, 0x98, 0x47, 0x53,
	0x1d, 0x6e, 0x2a, 0x83, 0x0f, 0x4c, 0x8b, 0x91,
	0xaa, 0x05, 0x7e, 0x32, 0xc8, 0x66, 0x13, 0xf0,
	0x0b, 0x58, 0xd2, 0x7a, 0x91, 0x3c, 0x44, 0xe5,
	0x62, 0x09, 0xbd, 0x1f, 0x70, 0xc3, 0x2e, 0x8a,
}

func createTestKeyRing(t *testing.T, coinType uint32,
	opts ...hdkey.Option) *HDKeyRing {

	s, err := seed.New(bytes.Clone(testHDSeed[:]))
	require.NoError(t, err)

	root, err := hdkey.NewMaster(s, ecc.S256(), opts...)
	require.NoError(t, err)

	keyRing, err := NewHDKeyRing(root, KeyScope{
		Purpose: BIP0043Purpose,
		Coin:    coinType,
	})
	require.NoError(t, err)

	return keyRing
}

// keyRingConstructor is a function signature that's used as a generic
// constructor for various implementations of the SecretKeyRing interface. A
// string naming the returned interface and the key ring itself are returned.
type keyRingConstructor func(t *testing.T) (string, SecretKeyRing)

var keyRingImplementations = []keyRingConstructor{
	func(t *testing.T) (string, SecretKeyRing) {
		return "bitcoin", createTestKeyRing(t, CoinTypeBitcoin)
	},
	func(t *testing.T) (string, SecretKeyRing) {
		return "litecoin", createTestKeyRing(t, CoinTypeLitecoin)
	},
	func(t *testing.T) (string, SecretKeyRing) {
		return "testnet", createTestKeyRing(t, CoinTypeTestnet)
	},
}

// TestKeyRingDerivation tests that each known KeyRing implementation properly
// adheres to the expected behavior of the set of interfaces.
func TestKeyRingDerivation(t *testing.T) {
	t.Parallel()

	for _, keyRingConstructor := range keyRingImplementations {
		keyRingName, keyRing := keyRingConstructor(t)

		success := t.Run(keyRingName, func(t *testing.T) {
			// First, we'll ensure that we're able to derive keys
			// from each of the known key families.
			for _, keyFam := range testKeyFamilies {
				// First, we'll ensure that we can derive the
				// *next* key in the keychain.
				keyDesc, err := keyRing.DeriveNextKey(keyFam)
				require.NoError(t, err)
				require.Zero(t, keyDesc.Index)

				// If we now try to manually derive the *first*
				// key, then we should get an identical public
				// key back.
				keyLoc := KeyLocator{
					Family: keyFam,
					Index:  0,
				}
				firstKeyDesc, err := keyRing.DeriveKey(keyLoc)
				require.NoError(t, err)
				require.True(
					t, keyDesc.PubKey.IsEqual(
						firstKeyDesc.PubKey,
					),
				)

				// The next key moves on to index 1 and agrees
				// with the explicit derivation.
				nextDesc, err := keyRing.DeriveNextKey(keyFam)
				require.NoError(t, err)
				require.Equal(t, uint32(1), nextDesc.Index)

				secondDesc, err := keyRing.DeriveKey(KeyLocator{
					Family: keyFam,
					Index:  1,
				})
				require.NoError(t, err)
				require.True(
					t, nextDesc.PubKey.IsEqual(
						secondDesc.PubKey,
					),
				)

				// If this succeeds, then we'll also try to
				// derive a random index within the range.
				randKeyIndex := uint32(rand.Int31())
				keyLoc = KeyLocator{
					Family: keyFam,
					Index:  randKeyIndex,
				}
				_, err = keyRing.DeriveKey(keyLoc)
				require.NoError(t, err)
			}
		})
		if !success {
			break
		}
	}
}

// TestSecretKeyRingDerivation tests that each known SecretKeyRing
// implementation properly adheres to the expected behavior of the set of
// interface.
func TestSecretKeyRingDerivation(t *testing.T) {
	t.Parallel()

	for _, keyRingConstructor := range keyRingImplementations {
		keyRingName, secretKeyRing := keyRingConstructor(t)

		success := t.Run(keyRingName, func(t *testing.T) {
			// First, each key family, we'll ensure that we're able
			// to obtain the private key of a randomly select child
			// index within the key family.
			for _, keyFam := range testKeyFamilies {
				randKeyIndex := uint32(rand.Int31())
				keyLoc := KeyLocator{
					Family: keyFam,
					Index:  randKeyIndex,
				}

				// First, we'll query for the public key for
				// this target key locator.
				pubKeyDesc, err := secretKeyRing.DeriveKey(keyLoc)
				require.NoError(t, err)

				// With the public key derive, ensure that
				// we're able to obtain the corresponding
				// private key correctly.
				privKey, err := secretKeyRing.DerivePrivKey(
					KeyDescriptor{
						KeyLocator: keyLoc,
					},
				)
				require.NoError(t, err)

				// Finally, ensure that the keys match up
				// properly.
				require.True(
					t, pubKeyDesc.PubKey.IsEqual(
						privKey.PubKey(),
					),
				)

				// ECDH against a fresh key must be symmetric.
				remote, err := btcec.NewPrivateKey()
				require.NoError(t, err)

				local, err := secretKeyRing.ECDH(
					pubKeyDesc, remote.PubKey(),
				)
				require.NoError(t, err)

				remoteECDH := &PrivKeyECDH{PrivKey: remote}
				other, err := remoteECDH.ECDH(pubKeyDesc.PubKey)
				require.NoError(t, err)
				require.Equal(t, local, other)
			}
		})
		if !success {
			break
		}
	}
}

// TestKeyRingMatchesHDKeychain checks the full derivation path of the ring
// against btcutil's hdkeychain.
func TestKeyRingMatchesHDKeychain(t *testing.T) {
	t.Parallel()

	keyRing := createTestKeyRing(t, CoinTypeTestnet)

	master, err := hdkeychain.NewMaster(
		testHDSeed[:], &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)

	keyLoc := KeyLocator{Family: 6, Index: 42}
	path := []uint32{
		hdkeychain.HardenedKeyStart + BIP0043Purpose,
		hdkeychain.HardenedKeyStart + CoinTypeTestnet,
		hdkeychain.HardenedKeyStart + uint32(keyLoc.Family),
		0,
		keyLoc.Index,
	}

	want := master
	for _, idx := range path {
		want, err = want.Derive(idx)
		require.NoError(t, err)
	}
	wantPub, err := want.ECPubKey()
	require.NoError(t, err)

	desc, err := keyRing.DeriveKey(keyLoc)
	require.NoError(t, err)
	require.True(t, wantPub.IsEqual(desc.PubKey))
	require.Equal(t, "m/1017'/1'", keyRing.Scope().String())
}

// TestHardenedOverflow asserts that scopes and families that do not fit a
// hardened index are rejected instead of wrapping into the normal range.
func TestHardenedOverflow(t *testing.T) {
	t.Parallel()

	s, err := seed.New(bytes.Clone(testHDSeed[:]))
	require.NoError(t, err)
	root, err := hdkey.NewMaster(s, ecc.S256())
	require.NoError(t, err)

	for _, scope := range []KeyScope{
		{Purpose: hdkey.HardenedKeyStart, Coin: CoinTypeBitcoin},
		{Purpose: BIP0043Purpose, Coin: hdkey.HardenedKeyStart + 1},
	} {
		_, err := NewHDKeyRing(root, scope)
		require.ErrorIs(t, err, ErrHardenedOverflow, scope.String())
	}

	keyRing := createTestKeyRing(t, CoinTypeBitcoin)
	for _, keyFam := range []KeyFamily{
		hdkey.HardenedKeyStart, hdkey.HardenedKeyStart + 6,
		KeyFamily(^uint32(0)),
	} {
		_, err := keyRing.DeriveKey(KeyLocator{Family: keyFam})
		require.ErrorIs(t, err, ErrHardenedOverflow)

		_, err = keyRing.DeriveNextKey(keyFam)
		require.ErrorIs(t, err, ErrHardenedOverflow)

		_, err = keyRing.DerivePrivKey(KeyDescriptor{
			KeyLocator: KeyLocator{Family: keyFam, Index: 1},
		})
		require.ErrorIs(t, err, ErrHardenedOverflow)
	}

	// The largest family still derives, and its key is not reachable
	// from the public scope key with the wrapped normal index.
	last := KeyFamily(hdkey.HardenedKeyStart - 1)
	desc, err := keyRing.DeriveKey(KeyLocator{Family: last})
	require.NoError(t, err)

	scopeXpub, err := keyRing.scopeKey.Neuter()
	require.NoError(t, err)
	wrapped, err := hdkey.DerivePublicPath(scopeXpub, hdkey.Path{
		uint32(last), externalBranch, 0,
	})
	require.NoError(t, err)
	wrappedPub, err := wrapped.ECPubKey()
	require.NoError(t, err)
	require.False(t, wrappedPub.IsEqual(desc.PubKey))
}

// TestDerivePrivKeyScan asserts a key can be found from its public key and
// family alone, and that the scan gives up after its limit.
func TestDerivePrivKeyScan(t *testing.T) {
	t.Parallel()

	keyRing := createTestKeyRing(t, CoinTypeBitcoin)
	keyRing.scanLimit = 8

	target, err := keyRing.DeriveKey(KeyLocator{Family: 3, Index: 5})
	require.NoError(t, err)

	privKey, err := keyRing.DerivePrivKey(KeyDescriptor{
		KeyLocator: KeyLocator{Family: 3},
		PubKey:     target.PubKey,
	})
	require.NoError(t, err)
	require.True(t, target.PubKey.IsEqual(privKey.PubKey()))

	// A wrong index with a correct public key still finds the key.
	privKey, err = keyRing.DerivePrivKey(KeyDescriptor{
		KeyLocator: KeyLocator{Family: 3, Index: 2},
		PubKey:     target.PubKey,
	})
	require.NoError(t, err)
	require.True(t, target.PubKey.IsEqual(privKey.PubKey()))

	// A key beyond the scan limit is not found.
	far, err := keyRing.DeriveKey(KeyLocator{Family: 3, Index: 20})
	require.NoError(t, err)

	_, err = keyRing.DerivePrivKey(KeyDescriptor{
		KeyLocator: KeyLocator{Family: 3},
		PubKey:     far.PubKey,
	})
	require.ErrorIs(t, err, ErrCannotDerivePrivKey)

	// Hardened leaf indices are never used by the ring.
	_, err = keyRing.DeriveKey(KeyLocator{
		Family: 3, Index: hdkey.HardenedKeyStart,
	})
	require.Error(t, err)
}

// TestDeriveNextKeySkipsInvalidChild forces the leaf at index 1 to be
// invalid and asserts the ring moves past it.
func TestDeriveNextKeySkipsInvalidChild(t *testing.T) {
	t.Parallel()

	// Leaf messages for index 1 end in 00000001. Scope, family and branch
	// indices never do.
	hash := func(key, msg []byte) [64]byte {
		out := hdkey.HMACSHA512(key, msg)
		if bytes.HasSuffix(msg, []byte{0, 0, 0, 1}) {
			copy(out[:32], bytes.Repeat([]byte{0xff}, 32))
		}

		return out
	}
	keyRing := createTestKeyRing(
		t, CoinTypeBitcoin, hdkey.WithKeyedHash(hash),
	)

	first, err := keyRing.DeriveNextKey(0)
	require.NoError(t, err)
	require.Zero(t, first.Index)

	second, err := keyRing.DeriveNextKey(0)
	require.NoError(t, err)
	require.Equal(t, uint32(2), second.Index)

	_, err = keyRing.DeriveKey(KeyLocator{Family: 0, Index: 1})
	require.ErrorIs(t, err, hdkey.ErrInvalidChild)
}

// TestPrivKeyECDH compares the ECDH result with btcec's own scalar
// multiplication.
func TestPrivKeyECDH(t *testing.T) {
	t.Parallel()

	for i := 0; i < 5; i++ {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		remote, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		var (
			pubJacobian btcec.JacobianPoint
			s           btcec.JacobianPoint
		)
		remote.PubKey().AsJacobian(&pubJacobian)
		btcec.ScalarMultNonConst(&priv.Key, &pubJacobian, &s)
		s.ToAffine()
		want := sha256.Sum256(
			btcec.NewPublicKey(&s.X, &s.Y).SerializeCompressed(),
		)

		single := &PrivKeyECDH{PrivKey: priv}
		got, err := single.ECDH(remote.PubKey())
		require.NoError(t, err)
		require.Equal(t, want, got, fmt.Sprintf("round %d", i))
		require.True(t, single.PubKey().IsEqual(priv.PubKey()))
	}
}

// TestPubKeyECDH asserts the wrapper defers to the ring.
func TestPubKeyECDH(t *testing.T) {
	t.Parallel()

	keyRing := createTestKeyRing(t, CoinTypeBitcoin)
	desc, err := keyRing.DeriveKey(KeyLocator{Family: 1, Index: 3})
	require.NoError(t, err)

	remote, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	wrapped := NewPubKeyECDH(desc, keyRing)
	require.True(t, wrapped.PubKey().IsEqual(desc.PubKey))

	got, err := wrapped.ECDH(remote.PubKey())
	require.NoError(t, err)

	want, err := keyRing.ECDH(desc, remote.PubKey())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestKeyLocatorIsEmpty(t *testing.T) {
	require.True(t, KeyLocator{}.IsEmpty())
	require.False(t, KeyLocator{Family: 1}.IsEmpty())
	require.False(t, KeyLocator{Index: 1}.IsEmpty())
}
