// Package ecc implements affine elliptic curve arithmetic over big integers
// for the short Weierstrass curves registered in its curve table.
package ecc

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// CurveID identifies a short Weierstrass curve known to this package.
type CurveID uint8

const (
	// Secp256k1 is the Koblitz curve used by Bitcoin, y² = x³ + 7.
	Secp256k1 CurveID = iota
)

// String returns the canonical name of the curve.
func (c CurveID) String() string {
	entry, ok := curveTable[c]
	if !ok {
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}

	return entry.name
}

// DomainParams exposes the domain parameters of a curve of the form
// y² = x³ + a·x + b over the prime field of order p.
type DomainParams interface {
	// A is the linear coefficient of the curve equation.
	A() *big.Int

	// B is the constant coefficient of the curve equation.
	B() *big.Int

	// P is the prime order of the underlying field.
	P() *big.Int

	// N is the prime order of the group generated by G.
	N() *big.Int

	// H is the cofactor of the curve.
	H() *big.Int

	// Gx is the x coordinate of the generator.
	Gx() *big.Int

	// Gy is the y coordinate of the generator.
	Gy() *big.Int
}

// curveEntry is a single entry of the curve table. All values are hex
// encoded and parsed once during package initialization.
type curveEntry struct {
	name          string
	a, b, p, n, h string
	gx, gy        string
	bitSize       int
}

// curveTable holds every curve the package knows about. Adding a curve only
// requires a new entry here.
var curveTable = map[CurveID]curveEntry{
	Secp256k1: {
		name:    "secp256k1",
		a:       "0",
		b:       "7",
		p:       "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFC2F",
		n:       "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141",
		h:       "1",
		gx:      "79BE667EF9DCBBAC55A06295CE870B07029BFCDB2DCE28D959F2815B16F81798",
		gy:      "483ADA7726A3C4655DA4FBFC0E1108A8FD17B448A68554199C47D08FFB10D4B8",
		bitSize: 256,
	},
}

// domains is the parsed form of curveTable.
var domains = func() map[CurveID]*Domain {
	m := make(map[CurveID]*Domain, len(curveTable))
	for id, entry := range curveTable {
		m[id] = mustParseDomain(id, entry)
	}

	return m
}()

// Domain is the immutable parameter set of a single curve. The accessors
// always return fresh copies, so a Domain can be shared freely between
// goroutines.
type Domain struct {
	id      CurveID
	name    string
	a, b    *big.Int
	p, n, h *big.Int
	gx, gy  *big.Int
	bitSize int
}

// A compile time check to ensure Domain satisfies DomainParams.
var _ DomainParams = (*Domain)(nil)

// ID returns the identifier of the curve.
func (d *Domain) ID() CurveID { return d.id }

// Name returns the canonical curve name.
func (d *Domain) Name() string { return d.name }

// A returns the linear coefficient of the curve.
func (d *Domain) A() *big.Int { return new(big.Int).Set(d.a) }

// B returns the constant coefficient of the curve.
func (d *Domain) B() *big.Int { return new(big.Int).Set(d.b) }

// P returns the field prime.
func (d *Domain) P() *big.Int { return new(big.Int).Set(d.p) }

// N returns the group order.
func (d *Domain) N() *big.Int { return new(big.Int).Set(d.n) }

// H returns the cofactor.
func (d *Domain) H() *big.Int { return new(big.Int).Set(d.h) }

// Gx returns the generator x coordinate.
func (d *Domain) Gx() *big.Int { return new(big.Int).Set(d.gx) }

// Gy returns the generator y coordinate.
func (d *Domain) Gy() *big.Int { return new(big.Int).Set(d.gy) }

// BitSize is the bit length of the field prime.
func (d *Domain) BitSize() int { return d.bitSize }

// ByteSize is the number of bytes needed to encode a field element or a
// scalar of this curve.
func (d *Domain) ByteSize() int { return (d.bitSize + 7) / 8 }

// String returns the canonical curve name.
func (d *Domain) String() string { return d.name }

// Lookup returns the domain parameters registered under id.
func Lookup(id CurveID) (*Domain, error) {
	d, ok := domains[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrUnknownCurve, uint8(id))
	}

	return d, nil
}

// MustLookup is like Lookup but panics on an unknown curve. It is meant for
// package level variables that refer to the curves compiled into the table.
func MustLookup(id CurveID) *Domain {
	d, err := Lookup(id)
	if err != nil {
		panic(err)
	}

	return d
}

// LookupByName returns the domain whose canonical name matches name, ignoring
// case.
func LookupByName(name string) (*Domain, error) {
	for _, d := range domains {
		if strings.EqualFold(d.name, name) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, name)
}

// SupportedCurves returns the sorted names of all registered curves.
func SupportedCurves() []string {
	names := make([]string, 0, len(domains))
	for _, d := range domains {
		names = append(names, d.name)
	}
	sort.Strings(names)

	return names
}

// S256 returns the secp256k1 domain.
func S256() *Domain {
	return domains[Secp256k1]
}

// mustParseDomain turns a table entry into a Domain and checks that the
// generator lies on the curve. A failure means a broken constant.
func mustParseDomain(id CurveID, entry curveEntry) *Domain {
	d := &Domain{
		id:      id,
		name:    entry.name,
		a:       mustParseHex(entry.a),
		b:       mustParseHex(entry.b),
		p:       mustParseHex(entry.p),
		n:       mustParseHex(entry.n),
		h:       mustParseHex(entry.h),
		gx:      mustParseHex(entry.gx),
		gy:      mustParseHex(entry.gy),
		bitSize: entry.bitSize,
	}

	if !d.p.ProbablyPrime(20) || !d.n.ProbablyPrime(20) {
		panic(fmt.Sprintf("ecc: %s: p and n must be prime", entry.name))
	}
	if !onCurve(d, d.gx, d.gy) {
		panic(fmt.Sprintf("ecc: %s: generator is not on the curve",
			entry.name))
	}

	return d
}

func mustParseHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic(fmt.Sprintf("ecc: invalid hex constant %q", s))
	}

	return v
}

// onCurve reports whether y² ≡ x³ + a·x + b (mod p).
func onCurve(d *Domain, x, y *big.Int) bool {
	lhs := new(big.Int).Mul(y, y)
	lhs.Mod(lhs, d.p)

	rhs := new(big.Int).Mul(x, x)
	rhs.Mul(rhs, x)
	ax := new(big.Int).Mul(d.a, x)
	rhs.Add(rhs, ax)
	rhs.Add(rhs, d.b)
	rhs.Mod(rhs, d.p)

	return lhs.Cmp(rhs) == 0
}
