package sizer

import "math/big"

// limbBase is 2^64, the scale used to convert between *big.Int and float64
// without relying on a magnitude assumption narrower than 256 bits.
var limbBase = new(big.Float).SetMantExp(big.NewFloat(1), 64)

// toFloat converts a non-negative, up-to-256-bit integer to a float64 by
// splitting it into 64-bit limbs and reconstituting in base 2^64. A plain
// big.Int.Float64() loses no precision for values that already fit a
// float64's exponent range, but the limb split makes the conversion
// explicit and correct at the full 256-bit width the sizer's reserves can
// reach.
func toFloat(x *big.Int) float64 {
	if x == nil || x.Sign() == 0 {
		return 0
	}
	acc := new(big.Float).SetPrec(256)
	rem := new(big.Int).Set(x)
	mask := new(big.Int).Lsh(big.NewInt(1), 64)
	mask.Sub(mask, big.NewInt(1))
	limb := new(big.Int)
	shift := new(big.Float).SetPrec(256).SetInt64(1)
	for rem.Sign() != 0 {
		limb.And(rem, mask)
		limbF := new(big.Float).SetPrec(256).SetInt(limb)
		limbF.Mul(limbF, shift)
		acc.Add(acc, limbF)
		rem.Rsh(rem, 64)
		shift.Mul(shift, limbBase)
	}
	f, _ := acc.Float64()
	return f
}

// fromFloat converts a non-negative float64 back to a *big.Int, rejecting
// non-finite inputs so a NaN or Inf from an ill-conditioned Newton step
// never silently becomes a bogus trade size.
func fromFloat(f float64) (*big.Int, bool) {
	if f != f || f < 0 { // NaN check plus sign guard
		return nil, false
	}
	bf := new(big.Float).SetPrec(256).SetFloat64(f)
	if bf.IsInf() {
		return nil, false
	}
	out, _ := bf.Int(nil)
	return out, true
}
