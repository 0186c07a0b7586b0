package ecc

import "math/big"

var (
	bigOne   = big.NewInt(1)
	bigTwo   = big.NewInt(2)
	bigThree = big.NewInt(3)
)

// Modulo returns the Euclidean remainder of a divided by m, always in the
// range [0, m). The modulus must be positive.
func Modulo(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, arithmeticErrorf("modulo", "modulus must be "+
			"positive, got %v", m)
	}

	return modulo(a, m), nil
}

// modulo is Modulo without the modulus check, for callers that only ever
// pass a curve prime.
func modulo(a, m *big.Int) *big.Int {
	r := new(big.Int).Rem(a, m)
	if r.Sign() < 0 {
		r.Add(r, m)
	}

	return r
}

// Invert returns the multiplicative inverse of a modulo m using the extended
// Euclidean algorithm.
//
// NOTE: The running time depends on the value of a. Callers that feed secret
// material through here get no timing guarantees.
func Invert(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, arithmeticErrorf("invert", "modulus must be "+
			"positive, got %v", m)
	}

	r := modulo(a, m)
	if r.Sign() == 0 {
		return nil, arithmeticErrorf("invert", "%v is congruent to "+
			"zero modulo %v", a, m)
	}

	// Invariant: oldS·r ≡ oldR and s·r ≡ rem (mod m). Only the Bézout
	// coefficient of r is tracked, the one of m is never needed.
	var (
		oldR = new(big.Int).Set(r)
		rem  = new(big.Int).Set(m)
		oldS = big.NewInt(1)
		s    = big.NewInt(0)
		q    = new(big.Int)
		tmp  = new(big.Int)
	)
	for rem.Sign() != 0 {
		q.Quo(oldR, rem)

		tmp.Mul(q, rem)
		oldR.Sub(oldR, tmp)
		oldR, rem = rem, oldR

		tmp.Mul(q, s)
		oldS.Sub(oldS, tmp)
		oldS, s = s, oldS
	}

	if oldR.Cmp(bigOne) != 0 {
		return nil, arithmeticErrorf("invert", "%v is not invertible "+
			"modulo %v (gcd=%v)", a, m, oldR)
	}

	return modulo(oldS, m), nil
}
