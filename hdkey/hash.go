package hdkey

import (
	"crypto/hmac"
	"crypto/sha512"
)

// KeyedHash is the pseudo random function used for every derivation step.
// The 64 byte output is split into a scalar tweak and a chain code.
type KeyedHash func(key, msg []byte) [64]byte

// HMACSHA512 is the KeyedHash mandated by BIP32.
func HMACSHA512(key, msg []byte) [64]byte {
	var out [64]byte

	mac := hmac.New(sha512.New, key)
	_, _ = mac.Write(msg)
	mac.Sum(out[:0])

	return out
}

// masterKey is the HMAC key used to derive a master node from a seed.
var masterKey = []byte("Bitcoin seed")

// Option tweaks how a key hierarchy is derived.
type Option func(*options)

type options struct {
	hash KeyedHash
}

func defaultOptions() *options {
	return &options{
		hash: HMACSHA512,
	}
}

// WithKeyedHash replaces HMAC-SHA512 for the master key and every key
// derived from it. Keys produced with anything else are not BIP32 keys.
func WithKeyedHash(h KeyedHash) Option {
	return func(o *options) {
		o.hash = h
	}
}
