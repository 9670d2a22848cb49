package sizer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onrollup/lstarb/pkg/venue"
)

func TestClosedFormConstantProduct(t *testing.T) {
	// Seed scenario 1: buy-pool reserves (1000, 950), sell-pool (500, 480),
	// both 30 bps fees.
	buy := PoolParams{
		Venue:        venue.ConstantProductTight,
		ReserveBase:  big.NewInt(1000),
		ReserveToken: big.NewInt(950),
		FeeBps:       30,
	}
	sell := PoolParams{
		Venue:        venue.ConstantProductTight,
		ReserveBase:  big.NewInt(480),
		ReserveToken: big.NewInt(500),
		FeeBps:       30,
	}

	s := New()
	s.MinTradeSize = 0
	result, err := s.Size([]PoolParams{buy, sell})
	require.NoError(t, err)
	require.NotNil(t, result)

	x := result.Amount.Int64()
	assert.Greater(t, x, int64(0))
	assert.Less(t, x, int64(500))
	assert.Equal(t, 1, result.Iterations)
	assert.Greater(t, result.Profit.Int64(), int64(0))
}

func TestNoArbitrageWhenReservesIdentical(t *testing.T) {
	pool := PoolParams{
		Venue:        venue.ConstantProductTight,
		ReserveBase:  big.NewInt(1_000_000),
		ReserveToken: big.NewInt(1_000_000),
		FeeBps:       0,
	}
	s := New()
	s.MinTradeSize = 1
	_, err := s.Size([]PoolParams{pool, pool})
	assert.ErrorIs(t, err, ErrNoProfitablePair)
}

func TestClampScalesProfitProportionally(t *testing.T) {
	s := New()
	r := &Result{
		Amount: big.NewInt(100),
		Profit: big.NewInt(10),
	}
	vaultReserve := big.NewInt(50) // 0.9*50 = 45
	clamped := s.Clamp(r, vaultReserve)

	require.True(t, clamped.Clamped)
	assert.Equal(t, big.NewInt(45), clamped.Amount)
	// profit scaled 10 * 45/100 = 4 (integer division)
	assert.Equal(t, big.NewInt(4), clamped.Profit)
}

func TestClampNoopBelowCap(t *testing.T) {
	s := New()
	r := &Result{Amount: big.NewInt(10), Profit: big.NewInt(1)}
	out := s.Clamp(r, big.NewInt(1000))
	assert.False(t, out.Clamped)
	assert.Equal(t, r.Amount, out.Amount)
}

func TestStableSwapPairConverges(t *testing.T) {
	buy := PoolParams{
		Venue:        venue.StableSwap,
		ReserveBase:  big.NewInt(1_000_000),
		ReserveToken: big.NewInt(950_000),
		FeeBps:       4,
		Amp:          100,
	}
	sell := PoolParams{
		Venue:        venue.StableSwap,
		ReserveBase:  big.NewInt(500_000),
		ReserveToken: big.NewInt(470_000),
		FeeBps:       4,
		Amp:          100,
	}
	s := New()
	s.MinTradeSize = 1
	result, err := s.Size([]PoolParams{buy, sell})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Greater(t, result.Profit.Int64(), int64(0))
	t.Logf("stable-swap cycle: amount=%s profit=%s iterations=%d", result.Amount, result.Profit, result.Iterations)
}

func TestMixedVenuesUsesGoldenSection(t *testing.T) {
	buy := PoolParams{
		Venue:        venue.ConstantProductTight,
		ReserveBase:  big.NewInt(1_000_000),
		ReserveToken: big.NewInt(900_000),
		FeeBps:       5,
	}
	sell := PoolParams{
		Venue:        venue.StableSwap,
		ReserveBase:  big.NewInt(500_000),
		ReserveToken: big.NewInt(460_000),
		FeeBps:       4,
		Amp:          100,
	}
	s := New()
	s.MinTradeSize = 1
	result, err := s.Size([]PoolParams{buy, sell})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Greater(t, result.Profit.Int64(), int64(0))
}

func TestInsufficientPools(t *testing.T) {
	s := New()
	_, err := s.Size([]PoolParams{{}})
	assert.ErrorIs(t, err, ErrInsufficientPools)
}
