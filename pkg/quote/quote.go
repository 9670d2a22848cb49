// Package quote holds the per-token, per-venue price snapshot the scheduler
// feeds to the Opportunity Detector. It is pure data: construction only, no
// behavior.
package quote

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onrollup/lstarb/pkg/venue"
)

// Quote is a directional price snapshot for one (token, venue) pair at a
// reference input, typically one unit of the base asset.
type Quote struct {
	BuyAmount   *big.Int // units of token received per reference input of base asset
	SellAmount  *big.Int // units of base asset received per reference input of token
	Liquidity   *big.Int // base-asset-equivalent depth; nil/zero if unknown
	TimestampMs int64
}

// Actionable reports whether at least one side of the quote is nonzero, the
// minimum a Quote must satisfy to be retained in a QuoteSet.
func (q Quote) Actionable() bool {
	buy := q.BuyAmount != nil && q.BuyAmount.Sign() > 0
	sell := q.SellAmount != nil && q.SellAmount.Sign() > 0
	return buy || sell
}

// Set is the full two-sided price picture for a single token across every
// venue that quoted it.
type Set struct {
	Token     common.Address
	TokenName string
	ByVenue   map[venue.Kind]Quote
}

// NewSet builds an empty QuoteSet for a token.
func NewSet(token common.Address, name string) *Set {
	return &Set{Token: token, TokenName: name, ByVenue: make(map[venue.Kind]Quote)}
}

// Merge retains the best (highest) BuyAmount and the best SellAmount
// independently for a venue, so that probing multiple fee tiers of the same
// venue kind never discards a profitable side in favor of a shallower one.
func (s *Set) Merge(v venue.Kind, q Quote) {
	if !q.Actionable() {
		return
	}
	existing, ok := s.ByVenue[v]
	if !ok {
		s.ByVenue[v] = q
		return
	}
	merged := existing
	if q.BuyAmount != nil && (merged.BuyAmount == nil || q.BuyAmount.Cmp(merged.BuyAmount) > 0) {
		merged.BuyAmount = q.BuyAmount
	}
	if q.SellAmount != nil && (merged.SellAmount == nil || q.SellAmount.Cmp(merged.SellAmount) > 0) {
		merged.SellAmount = q.SellAmount
	}
	if q.Liquidity != nil && (merged.Liquidity == nil || q.Liquidity.Cmp(merged.Liquidity) > 0) {
		merged.Liquidity = q.Liquidity
	}
	if q.TimestampMs > merged.TimestampMs {
		merged.TimestampMs = q.TimestampMs
	}
	s.ByVenue[v] = merged
}

// Actionable reports whether this QuoteSet carries at least two venues, the
// minimum needed to express a buy/sell cycle.
func (s *Set) Actionable() bool {
	return len(s.ByVenue) >= 2
}

// Stale reports whether every quote in the set is older than maxAgeMs,
// relative to nowMs.
func (s *Set) Stale(nowMs, maxAgeMs int64) bool {
	for _, q := range s.ByVenue {
		if nowMs-q.TimestampMs < maxAgeMs {
			return false
		}
	}
	return true
}

func NowMs() int64 {
	return time.Now().UnixMilli()
}
