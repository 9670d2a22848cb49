// Package venue defines the closed set of AMM curve families the bot prices
// against, and the fixed ABI encoding the executor contract expects for each.
package venue

// Kind identifies the pricing-curve family of a liquidity venue. The numeric
// value is bit-exact: it is packed directly into the executeArb/simulateArb
// calldata as a uint8, so the values below must never be renumbered.
type Kind uint8

const (
	StableSwap          Kind = 1 // Curve-style invariant, amplification factor
	WeightedVault       Kind = 2 // Balancer-style weighted pool
	ConstantProductTight Kind = 3 // Uniswap V3-style concentrated constant-product
	Other               Kind = 4
)

func (k Kind) String() string {
	switch k {
	case StableSwap:
		return "stable-swap"
	case WeightedVault:
		return "weighted-vault"
	case ConstantProductTight:
		return "constant-product-tight"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the four recognized kinds.
func (k Kind) Valid() bool {
	switch k {
	case StableSwap, WeightedVault, ConstantProductTight, Other:
		return true
	}
	return false
}

// IsConstantProduct reports whether the sizer should treat this venue with
// the closed-form x*y=k formula rather than Newton-Raphson.
func (k Kind) IsConstantProduct() bool {
	return k == ConstantProductTight || k == Other
}

// IsStableSwap reports whether the sizer should treat this venue with the
// StableSwap invariant solver.
func (k Kind) IsStableSwap() bool {
	return k == StableSwap || k == WeightedVault
}

// CanonicalFeeBps returns the default fee, in basis points, the Opportunity
// Detector attaches to a venue of this kind when the discoverer does not
// supply a pool-specific fee.
func (k Kind) CanonicalFeeBps() uint32 {
	switch k {
	case ConstantProductTight:
		return 5
	case StableSwap:
		return 4
	case WeightedVault:
		return 10
	default:
		return 10
	}
}

// CanonicalAmp returns the default StableSwap amplification factor for venue
// kinds that carry one. Constant-product kinds ignore this value.
func (k Kind) CanonicalAmp() uint32 {
	switch k {
	case StableSwap:
		return 100
	case WeightedVault:
		return 200
	default:
		return 0
	}
}
