// Package detector implements the Opportunity Detector: it turns a batch of
// quote.Sets into ranked, floor-qualified Opportunities by deriving
// PoolParams from each quote and delegating sizing to pkg/sizer.
package detector

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onrollup/lstarb/pkg/quote"
	"github.com/onrollup/lstarb/pkg/sizer"
	"github.com/onrollup/lstarb/pkg/venue"
)

// Opportunity is the detector's output: a candidate arbitrage cycle that
// has cleared the spread and profit floors.
type Opportunity struct {
	Token common.Address
	TokenName string
	BuyVenue venue.Kind
	SellVenue venue.Kind
	BuyPrice *big.Int
	SellPrice *big.Int
	SpreadBps int64
	ExpectedProfit *big.Int
	TradeAmount *big.Int
	TimestampMs int64
	Tier string // "stream" | "patrol" | "lazy", set by the caller
}

// Floors are the per-run profit/spread thresholds the detector enforces,
// normally sourced from strategy configuration.
type Floors struct {
	MinSpreadBps int64
	MinProfit *big.Int
}

// Detector evaluates quote.Sets against a sizer.Sizer and Floors.
type Detector struct {
	Sizer *sizer.Sizer
	Floors Floors
	// ReserveEstimateMultiplier approximates true reserves as
	// multiplier*best_quote_amount when a discoverer doesn't supply real
	// reserves; the source used 100, carried forward unchanged.
	ReserveEstimateMultiplier int64
	// VaultReserveOf, if non-nil, is consulted for the liquidity clamp.
	// Nil disables clamping.
	VaultReserveOf func(common.Address) *big.Int
}

func New(s *sizer.Sizer, floors Floors) *Detector {
	return &Detector{
		Sizer: s,
		Floors: floors,
		ReserveEstimateMultiplier: 100,
	}
}

// Detect evaluates every QuoteSet and returns qualifying Opportunities
// sorted by ExpectedProfit descending.
func (d *Detector) Detect(sets []*quote.Set, tier string, nowMs int64) []Opportunity {
	var out []Opportunity
	for _, set := range sets {
		if !set.Actionable() {
			continue
		}
		opp, ok := d.detectOne(set, tier, nowMs)
		if ok {
			out = append(out, opp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpectedProfit.Cmp(out[j].ExpectedProfit) > 0
	})
	return out
}

func (d *Detector) detectOne(set *quote.Set, tier string, nowMs int64) (Opportunity, bool) {
	pools := make([]sizer.PoolParams, 0, len(set.ByVenue))
	for v, q := range set.ByVenue {
		pools = append(pools, d.toPoolParams(v, q))
	}

	result, err := d.Sizer.Size(pools)
	if err != nil {
		return Opportunity{}, false
	}

	if d.VaultReserveOf != nil {
		if vr := d.VaultReserveOf(set.Token); vr != nil {
			result = d.Sizer.Clamp(result, vr)
		}
	}

	spread := spreadBps(set.ByVenue[result.BuyVenue], set.ByVenue[result.SellVenue])
	if spread < d.Floors.MinSpreadBps {
		return Opportunity{}, false
	}
	if d.Floors.MinProfit != nil && result.Profit.Cmp(d.Floors.MinProfit) < 0 {
		return Opportunity{}, false
	}
	if result.BuyVenue == result.SellVenue {
		return Opportunity{}, false
	}

	return Opportunity{
		Token: set.Token,
		TokenName: set.TokenName,
		BuyVenue: result.BuyVenue,
		SellVenue: result.SellVenue,
		BuyPrice: set.ByVenue[result.BuyVenue].BuyAmount,
		SellPrice: set.ByVenue[result.SellVenue].SellAmount,
		SpreadBps: spread,
		ExpectedProfit: result.Profit,
		TradeAmount: result.Amount,
		TimestampMs: nowMs,
		Tier: tier,
	}, true
}

// toPoolParams converts a Quote into the sizer's curve description,
// approximating reserves from the quoted amount when the real reserve
// wasn't supplied by the discoverer.
func (d *Detector) toPoolParams(v venue.Kind, q quote.Quote) sizer.PoolParams {
	mult := d.ReserveEstimateMultiplier
	if mult <= 0 {
		mult = 100
	}
	base := estimateReserve(q.BuyAmount, q.Liquidity, mult)
	token := estimateReserve(q.SellAmount, q.Liquidity, mult)
	return sizer.PoolParams{
		Venue: v,
		ReserveBase: base,
		ReserveToken: token,
		FeeBps: v.CanonicalFeeBps(),
		Amp: v.CanonicalAmp(),
	}
}

func estimateReserve(amount, liquidity *big.Int, multiplier int64) *big.Int {
	if liquidity != nil && liquidity.Sign() > 0 {
		return new(big.Int).Set(liquidity)
	}
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(amount, big.NewInt(multiplier))
}

// spreadBps computes (sell_out - buy_in) / buy_in * 10000 using the two
// venues' best quoted amounts as a fast pre-check ahead of the sizer's
// exact profit figure.
func spreadBps(buy, sell quote.Quote) int64 {
	if buy.BuyAmount == nil || buy.BuyAmount.Sign() <= 0 || sell.SellAmount == nil {
		return 0
	}
	diff := new(big.Int).Sub(sell.SellAmount, buy.BuyAmount)
	diff.Mul(diff, big.NewInt(10_000))
	diff.Div(diff, buy.BuyAmount)
	return diff.Int64()
}
