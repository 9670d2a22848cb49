// Package discoverer declares the PoolDiscoverer capability boundary: an
// external collaborator that ranks pools by volume and liquidity, already
// filtered for honeypot tokens. No implementation lives in this module —
// top-pool discovery and token safety probing are out of scope — but the
// interface gives the Scheduler and a test fake a concrete shape to hold
// against.
package discoverer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolCandidate is one ranked pool as yielded by an external discoverer.
type PoolCandidate struct {
	Pool       common.Address
	TokenA     common.Address
	TokenB     common.Address
	FeeBps     uint32
	Liquidity  *big.Int
	Volatility float64 // trailing price-move metric, used only for operator visibility
	VolumeRank int      // 1-indexed, lower is higher volume; drives scheduler.TierOf
}

// PoolDiscoverer yields the current ranked pool universe. A real
// implementation would run the original's top-pool scan plus a safety
// probe (simulated self-transfer, gas-usage threshold, revert-reason
// classification) before a token is ever handed to the scheduler; neither
// of those behaviors is implemented here.
type PoolDiscoverer interface {
	Discover(ctx context.Context) ([]PoolCandidate, error)
}
