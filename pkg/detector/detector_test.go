package detector

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onrollup/lstarb/pkg/quote"
	"github.com/onrollup/lstarb/pkg/sizer"
	"github.com/onrollup/lstarb/pkg/venue"
)

func TestDetectEmitsOnlyOpportunitiesClearingFloors(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	set := quote.NewSet(token, "stETH")
	set.Merge(venue.ConstantProductTight, quote.Quote{
		BuyAmount: big.NewInt(1_000_000_000),
		TimestampMs: 1,
	})
	set.Merge(venue.Other, quote.Quote{
		SellAmount: big.NewInt(1_050_000_000),
		TimestampMs: 1,
	})

	d := New(sizer.New(), Floors{MinSpreadBps: 10, MinProfit: big.NewInt(1)})
	d.Sizer.MinTradeSize = 1
	opps := d.Detect([]*quote.Set{set}, "patrol", 1000)

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, token, opp.Token)
	assert.NotEqual(t, opp.BuyVenue, opp.SellVenue)
	assert.GreaterOrEqual(t, opp.SpreadBps, int64(10))
	assert.True(t, opp.ExpectedProfit.Sign() > 0)
	assert.Equal(t, "patrol", opp.Tier)
}

func TestDetectRejectsBelowSpreadFloor(t *testing.T) {
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	set := quote.NewSet(token, "rETH")
	set.Merge(venue.ConstantProductTight, quote.Quote{BuyAmount: big.NewInt(1_000_000_000), TimestampMs: 1})
	set.Merge(venue.Other, quote.Quote{SellAmount: big.NewInt(1_000_100_000), TimestampMs: 1})

	d := New(sizer.New(), Floors{MinSpreadBps: 1_000_000, MinProfit: big.NewInt(0)})
	d.Sizer.MinTradeSize = 1
	opps := d.Detect([]*quote.Set{set}, "lazy", 1000)
	assert.Empty(t, opps)
}

func TestDetectSkipsUnactionableSets(t *testing.T) {
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	set := quote.NewSet(token, "cbETH")
	set.Merge(venue.ConstantProductTight, quote.Quote{BuyAmount: big.NewInt(1), TimestampMs: 1})

	d := New(sizer.New(), Floors{})
	opps := d.Detect([]*quote.Set{set}, "stream", 1000)
	assert.Empty(t, opps)
}
