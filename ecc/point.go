package ecc

import (
	"fmt"
	"math/big"
)

const (
	// pubKeyCompressedEven is the SEC1 prefix of a compressed point whose
	// y coordinate is even.
	pubKeyCompressedEven byte = 0x02

	// pubKeyCompressedOdd is the SEC1 prefix of a compressed point whose
	// y coordinate is odd.
	pubKeyCompressedOdd byte = 0x03

	// pointAtInfinityByte is the SEC1 encoding of the identity.
	pointAtInfinityByte byte = 0x00
)

// Point is an affine point on a short Weierstrass curve, or the point at
// infinity. The identity is an explicit variant and never a coordinate pair,
// so no real point can be mistaken for it whatever the curve constants are.
//
// Points are immutable values. Every operation returns a new Point and the
// coordinate accessors hand out copies. The zero value is not a valid point;
// use Identity, Generator or NewPoint.
type Point struct {
	x, y     *big.Int
	infinity bool
	curve    *Domain
}

// Identity returns the point at infinity on the given curve.
func Identity(curve *Domain) Point {
	return Point{
		infinity: true,
		curve:    curve,
	}
}

// Generator returns the base point G of the curve.
func Generator(curve *Domain) Point {
	return Point{
		x:     curve.Gx(),
		y:     curve.Gy(),
		curve: curve,
	}
}

// NewPoint validates the passed coordinates and returns the affine point
// they describe. Both coordinates must be reduced modulo p and satisfy the
// curve equation.
func NewPoint(curve *Domain, x, y *big.Int) (Point, error) {
	if x == nil || y == nil {
		return Point{}, fmt.Errorf("%w: missing coordinate",
			ErrPointNotOnCurve)
	}
	if x.Sign() < 0 || x.Cmp(curve.p) >= 0 ||
		y.Sign() < 0 || y.Cmp(curve.p) >= 0 {

		return Point{}, fmt.Errorf("%w: coordinate out of range",
			ErrPointNotOnCurve)
	}
	if !onCurve(curve, x, y) {
		return Point{}, ErrPointNotOnCurve
	}

	return Point{
		x:     new(big.Int).Set(x),
		y:     new(big.Int).Set(y),
		curve: curve,
	}, nil
}

// Curve returns the domain the point belongs to.
func (p Point) Curve() *Domain {
	return p.curve
}

// IsInfinity reports whether p is the group identity.
func (p Point) IsInfinity() bool {
	return p.infinity
}

// X returns a copy of the x coordinate, or nil for the point at infinity.
func (p Point) X() *big.Int {
	if p.infinity {
		return nil
	}

	return new(big.Int).Set(p.x)
}

// Y returns a copy of the y coordinate, or nil for the point at infinity.
func (p Point) Y() *big.Int {
	if p.infinity {
		return nil
	}

	return new(big.Int).Set(p.y)
}

// IsOnCurve reports whether p is the identity or an affine point satisfying
// the curve equation.
func (p Point) IsOnCurve() bool {
	if p.infinity {
		return true
	}

	return onCurve(p.curve, p.x, p.y)
}

// Equal reports whether p and q are the same group element of the same
// curve.
func (p Point) Equal(q Point) bool {
	if p.curve != q.curve {
		return false
	}
	if p.infinity || q.infinity {
		return p.infinity == q.infinity
	}

	return p.x.Cmp(q.x) == 0 && p.y.Cmp(q.y) == 0
}

// Negate returns -p, the reflection of p over the x axis.
func (p Point) Negate() Point {
	if p.infinity {
		return p
	}

	return Point{
		x:     new(big.Int).Set(p.x),
		y:     modulo(new(big.Int).Neg(p.y), p.curve.p),
		curve: p.curve,
	}
}

// Add returns p + q using the chord-and-tangent rule.
func (p Point) Add(q Point) (Point, error) {
	if p.curve != q.curve {
		return Point{}, ErrCurveMismatch
	}

	switch {
	case p.infinity:
		return q, nil

	case q.infinity:
		return p, nil

	case p.Equal(q):
		return p.Double()
	}

	prime := p.curve.p

	// Same x but different points means q = -p.
	if p.x.Cmp(q.x) == 0 {
		negY := modulo(new(big.Int).Neg(q.y), prime)
		if p.y.Cmp(negY) == 0 {
			return Identity(p.curve), nil
		}
	}

	// λ = (y2 - y1) / (x2 - x1)
	num := new(big.Int).Sub(q.y, p.y)
	den := new(big.Int).Sub(q.x, p.x)
	inv, err := Invert(den, prime)
	if err != nil {
		return Point{}, err
	}
	lambda := modulo(num.Mul(num, inv), prime)

	return p.chord(lambda, q.x), nil
}

// Double returns 2·p using the tangent rule.
func (p Point) Double() (Point, error) {
	if p.infinity {
		return p, nil
	}

	// A vertical tangent meets the curve again at infinity.
	if p.y.Sign() == 0 {
		return Identity(p.curve), nil
	}

	prime := p.curve.p

	// λ = (3·x² + a) / (2·y)
	num := new(big.Int).Mul(p.x, p.x)
	num.Mul(num, bigThree)
	num.Add(num, p.curve.a)
	den := new(big.Int).Mul(p.y, bigTwo)
	inv, err := Invert(den, prime)
	if err != nil {
		return Point{}, err
	}
	lambda := modulo(num.Mul(num, inv), prime)

	return p.chord(lambda, p.x), nil
}

// chord finishes an addition or doubling once the slope is known:
// x3 = λ² - x1 - x2, y3 = λ·(x1 - x3) - y1.
func (p Point) chord(lambda, x2 *big.Int) Point {
	prime := p.curve.p

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p.x)
	x3.Sub(x3, x2)
	x3 = modulo(x3, prime)

	y3 := new(big.Int).Sub(p.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p.y)
	y3 = modulo(y3, prime)

	return Point{
		x:     x3,
		y:     y3,
		curve: p.curve,
	}
}

// ScalarMult returns k·p using double-and-add, scanning k from its least
// significant bit. A zero scalar yields the identity. The scalar is not
// reduced; callers working with private keys pass values modulo n.
//
// NOTE: This is not constant time. The number of additions leaks the
// Hamming weight of k.
func (p Point) ScalarMult(k *big.Int) (Point, error) {
	if k.Sign() < 0 {
		return Point{}, ErrNegativeScalar
	}

	var (
		result = Identity(p.curve)
		addend = p
		err    error
	)
	bits := k.BitLen()
	for i := 0; i < bits; i++ {
		if k.Bit(i) == 1 {
			result, err = result.Add(addend)
			if err != nil {
				return Point{}, err
			}
		}

		// The final doubling would never be used.
		if i == bits-1 {
			break
		}

		addend, err = addend.Double()
		if err != nil {
			return Point{}, err
		}
	}

	return result, nil
}

// SerializeCompressed returns the SEC1 compressed encoding of p: a parity
// prefix followed by the big-endian x coordinate. The identity encodes to a
// single zero byte.
func (p Point) SerializeCompressed() []byte {
	if p.infinity {
		return []byte{pointAtInfinityByte}
	}

	size := p.curve.ByteSize()
	b := make([]byte, 1+size)
	b[0] = pubKeyCompressedEven
	if p.y.Bit(0) == 1 {
		b[0] = pubKeyCompressedOdd
	}
	p.x.FillBytes(b[1:])

	return b
}

// String returns a human readable form of the point.
func (p Point) String() string {
	if p.infinity {
		return "Point(infinity)"
	}

	return fmt.Sprintf("Point(x=%064x, y=%064x)", p.x, p.y)
}
