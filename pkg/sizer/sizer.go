// Package sizer implements the Convex Trade Sizer: a pure function from a
// list of per-venue pool curves to the profit-maximizing buy/sell cycle.
// Nothing in this package touches the network, a clock, or a token address
// — it is exercised entirely through PoolParams values the caller derives
// from a quote.Set.
package sizer

import (
	"errors"
	"math"
	"math/big"

	"github.com/onrollup/lstarb/pkg/venue"
)

// PoolParams is the algebraic description of a single venue's curve at a
// point in time. ReserveBase is the reserve of the asset profit is
// denominated in; ReserveToken is the reserve of the other side.
type PoolParams struct {
	Venue venue.Kind
	ReserveBase *big.Int
	ReserveToken *big.Int
	FeeBps uint32
	Amp uint32 // only meaningful for IsStableSwap venues
}

func (p PoolParams) feeFraction() float64 {
	return 1 - float64(p.FeeBps)/10_000
}

// Result is the optimal cycle the sizer found, or nil if nothing is
// profitable.
type Result struct {
	BuyVenue venue.Kind
	SellVenue venue.Kind
	Amount *big.Int
	Profit *big.Int
	Iterations int
	Clamped bool
}

var (
	// ErrNoProfitablePair means no ordered pair of distinct pools produced
	// a positive-profit cycle.
	ErrNoProfitablePair = errors.New("sizer: no profitable pair")
	// ErrInsufficientPools means fewer than two pools were supplied.
	ErrInsufficientPools = errors.New("sizer: need at least two pools")
)

const (
	defaultMinTradeSize = 1e9 // in base-asset float units; callers override via Sizer.MinTradeSize
	newtonMaxIter = 50
	newtonTol = 0.001
	goldenMaxIter = 50
	stableInvariantIter = 256
	clampFraction = 0.90
)

// Sizer holds the policy knobs the pure sizing functions need but that the
// spec treats as configuration rather than universal constants.
type Sizer struct {
	MinTradeSize float64
}

func New() *Sizer {
	return &Sizer{MinTradeSize: defaultMinTradeSize}
}

// Size evaluates every ordered pair of distinct pools and returns the one
// with the highest profit, or ErrNoProfitablePair if none clears
// MinTradeSize with positive profit.
func (s *Sizer) Size(pools []PoolParams) (*Result, error) {
	if len(pools) < 2 {
		return nil, ErrInsufficientPools
	}
	minSize := s.MinTradeSize
	if minSize <= 0 {
		minSize = defaultMinTradeSize
	}

	var best *Result
	var bestProfit float64

	for i, buy := range pools {
		for j, sell := range pools {
			if i == j {
				continue
			}
			x, profit, iters, ok := optimize(buy, sell, minSize)
			if !ok || profit <= 0 || x < minSize {
				continue
			}
			if best == nil || profit > bestProfit {
				amt, ok1 := fromFloat(x)
				prof, ok2 := fromFloat(profit)
				if !ok1 || !ok2 {
					continue
				}
				best = &Result{
					BuyVenue: buy.Venue,
					SellVenue: sell.Venue,
					Amount: amt,
					Profit: prof,
					Iterations: iters,
				}
				bestProfit = profit
			}
		}
	}

	if best == nil {
		return nil, ErrNoProfitablePair
	}
	return best, nil
}

// Clamp caps x* at clampFraction of the weighted vault's base-asset
// reserve and rescales profit proportionally. vaultReserve of zero or nil
// disables clamping (no vault configured for this cycle).
func (s *Sizer) Clamp(r *Result, vaultReserve *big.Int) *Result {
	if r == nil || vaultReserve == nil || vaultReserve.Sign() <= 0 {
		return r
	}
	cap := new(big.Int).Mul(vaultReserve, big.NewInt(90))
	cap.Div(cap, big.NewInt(100))
	if r.Amount.Cmp(cap) <= 0 {
		return r
	}
	clamped := *r
	clamped.Clamped = true
	// profit_clamped = profit * cap / amount
	scaledProfit := new(big.Int).Mul(r.Profit, cap)
	scaledProfit.Div(scaledProfit, r.Amount)
	clamped.Amount = cap
	clamped.Profit = scaledProfit
	return &clamped
}

// optimize dispatches to the closed-form, Newton-Raphson, or golden-section
// solver depending on the pair's venue kinds.
func optimize(buy, sell PoolParams, minSize float64) (x, profit float64, iters int, ok bool) {
	switch {
	case buy.Venue.IsConstantProduct() && sell.Venue.IsConstantProduct():
		return closedForm(buy, sell, minSize)
	case buy.Venue.IsStableSwap() && sell.Venue.IsStableSwap():
		return newtonRaphson(buy, sell, minSize)
	default:
		return goldenSection(buy, sell, minSize)
	}
}

// closedForm implements the constant-product x* for two constant-product
// pools: x* = (sqrt(fb*fs*B2*S2*B1*S1) - B1*S1) / (fb*B2 + S1/fs).
func closedForm(buy, sell PoolParams, minSize float64) (x, profit float64, iters int, ok bool) {
	b1 := toFloat(buy.ReserveBase)
	b2 := toFloat(buy.ReserveToken)
	s1 := toFloat(sell.ReserveToken)
	s2 := toFloat(sell.ReserveBase)
	if b1 <= 0 || b2 <= 0 || s1 <= 0 || s2 <= 0 {
		return 0, 0, 0, false
	}
	fb := buy.feeFraction()
	fs := sell.feeFraction()

	numerator := math.Sqrt(fb*fs*b2*s2*b1*s1) - b1*s1
	if numerator <= 0 {
		return 0, 0, 1, false
	}
	denominator := fb*b2 + s1/fs
	xStar := numerator / denominator
	if xStar < minSize {
		return 0, 0, 1, false
	}
	p := profitAt(buy, sell, xStar)
	return xStar, p, 1, p > 0
}

// newtonRaphson maximizes profit(x) for a pair of stable-swap pools using
// finite-difference first/second derivatives.
func newtonRaphson(buy, sell PoolParams, minSize float64) (x, profit float64, iters int, ok bool) {
	b1 := toFloat(buy.ReserveBase)
	s2 := toFloat(sell.ReserveBase)
	if b1 <= 0 || s2 <= 0 {
		return 0, 0, 0, false
	}
	xCur := math.Sqrt(b1*s2) / math.Sqrt(1000)
	if xCur < minSize {
		xCur = minSize
	}

	h := xCur * 1e-4
	if h <= 0 {
		h = 1e-6
	}

	i := 0
	for ; i < newtonMaxIter; i++ {
		p0 := profitAt(buy, sell, xCur)
		pPlus := profitAt(buy, sell, xCur+h)
		pMinus := profitAt(buy, sell, xCur-h)
		first := (pPlus - pMinus) / (2 * h)
		second := (pPlus - 2*p0 + pMinus) / (h * h)

		var next float64
		if math.Abs(second) < 1e-12 {
			next = xCur + 0.1*xCur*first
		} else {
			next = xCur - first/second
		}
		if next < minSize {
			next = minSize
		}
		if xCur != 0 && math.Abs((next-xCur)/xCur) < newtonTol {
			xCur = next
			i++
			break
		}
		xCur = next
		h = xCur * 1e-4
		if h <= 0 {
			h = 1e-6
		}
	}

	p := profitAt(buy, sell, xCur)
	return xCur, p, i, p > 0 && xCur >= minSize
}

// goldenSection searches [minSize, 0.5*min(B1,S2)] for the profit maximum
// when the pair mixes venue kinds.
func goldenSection(buy, sell PoolParams, minSize float64) (x, profit float64, iters int, ok bool) {
	b1 := toFloat(buy.ReserveBase)
	s2 := toFloat(sell.ReserveBase)
	upper := 0.5 * math.Min(b1, s2)
	if upper <= minSize {
		return 0, 0, 0, false
	}

	const phi = 0.6180339887498949
	lo, hi := minSize, upper
	c := hi - phi*(hi-lo)
	d := lo + phi*(hi-lo)
	fc := profitAt(buy, sell, c)
	fd := profitAt(buy, sell, d)

	i := 0
	for ; i < goldenMaxIter && (hi-lo) > minSize; i++ {
		if fc > fd {
			hi = d
			d = c
			fd = fc
			c = hi - phi*(hi-lo)
			fc = profitAt(buy, sell, c)
		} else {
			lo = c
			c = d
			fc = fd
			d = lo + phi*(hi-lo)
			fd = profitAt(buy, sell, d)
		}
	}

	xStar := (lo + hi) / 2
	p := profitAt(buy, sell, xStar)
	return xStar, p, i, p > 0
}

// profitAt computes sell_out(buy_out(x)) - x for one candidate input,
// dispatching each leg to its venue kind's evaluator.
func profitAt(buy, sell PoolParams, x float64) float64 {
	if x <= 0 {
		return -math.MaxFloat64
	}
	y := swapOut(buy, x, true)
	out := swapOut(sell, y, false)
	return out - x
}

// swapOut evaluates one leg of the cycle: fromBase=true computes base->token
// (the buy leg), fromBase=false computes token->base (the sell leg).
func swapOut(p PoolParams, amountIn float64, fromBase bool) float64 {
	fee := p.feeFraction()
	if p.Venue.IsConstantProduct() {
		var rIn, rOut float64
		if fromBase {
			rIn, rOut = toFloat(p.ReserveBase), toFloat(p.ReserveToken)
		} else {
			rIn, rOut = toFloat(p.ReserveToken), toFloat(p.ReserveBase)
		}
		if rIn <= 0 || rOut <= 0 {
			return 0
		}
		effIn := fee * amountIn
		return rOut * effIn / (rIn + effIn)
	}
	// StableSwap / weighted vault: 2-coin invariant evaluator.
	var x, y float64
	if fromBase {
		x, y = toFloat(p.ReserveBase), toFloat(p.ReserveToken)
	} else {
		x, y = toFloat(p.ReserveToken), toFloat(p.ReserveBase)
	}
	if x <= 0 || y <= 0 {
		return 0
	}
	dy := getDy(x, y, amountIn, float64(p.Amp))
	return dy * fee
}

// getDy is the canonical 2-coin StableSwap evaluator: computes D by Newton
// iteration, then solves for the post-trade reserve of the output asset.
func getDy(x, y, dx, amp float64) float64 {
	if amp <= 0 {
		amp = 1
	}
	ann := amp * 4 // n=2, Ann = A * n^n
	d := stableInvariantD(x, y, ann)
	xNew := x + dx
	yNew := stableGetY(xNew, d, ann)
	dy := y - yNew
	if dy < 0 {
		return 0
	}
	return dy
}

func stableInvariantD(x, y, ann float64) float64 {
	sum := x + y
	if sum == 0 {
		return 0
	}
	d := sum
	for i := 0; i < stableInvariantIter; i++ {
		dP := d * d * d / (4 * x * y)
		prev := d
		d = (ann*sum + 2*dP) * d / ((ann-1)*d + 3*dP)
		if math.Abs(d-prev) <= 1e-10*d {
			break
		}
	}
	return d
}

func stableGetY(xNew, d, ann float64) float64 {
	c := d * d * d / (4 * xNew * ann)
	b := xNew + d/ann
	y := d
	for i := 0; i < stableInvariantIter; i++ {
		prev := y
		y = (y*y + c) / (2*y + b - d)
		if y <= 0 {
			return 0
		}
		if math.Abs(y-prev) <= 1e-10*y {
			break
		}
	}
	return y
}
