package scheduler

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/quote"
	"github.com/onrollup/lstarb/pkg/sizer"
	"github.com/onrollup/lstarb/pkg/tokenset"
	"github.com/onrollup/lstarb/pkg/venue"
)

func TestTierOfRankBoundaries(t *testing.T) {
	assert.Equal(t, Stream, TierOf(1))
	assert.Equal(t, Stream, TierOf(5))
	assert.Equal(t, Patrol, TierOf(6))
	assert.Equal(t, Patrol, TierOf(20))
	assert.Equal(t, Lazy, TierOf(21))
}

func testDetector() *detector.Detector {
	s := sizer.New()
	s.MinTradeSize = 1
	return detector.New(s, detector.Floors{MinSpreadBps: 1, MinProfit: big.NewInt(1)})
}

func sampleSets(token common.Address) []*quote.Set {
	set := quote.NewSet(token, "stETH")
	set.Merge(venue.ConstantProductTight, quote.Quote{
		BuyAmount:  big.NewInt(990_000),
		SellAmount: big.NewInt(990_000),
		TimestampMs: quote.NowMs(),
	})
	set.Merge(venue.StableSwap, quote.Quote{
		BuyAmount:  big.NewInt(1_010_000),
		SellAmount: big.NewInt(1_010_000),
		TimestampMs: quote.NowMs(),
	})
	return []*quote.Set{set}
}

func TestScanAndEmitPushesOpportunity(t *testing.T) {
	token := common.HexToAddress("0x0a")
	fetch := func(ctx context.Context, tokens []common.Address) ([]*quote.Set, error) {
		return sampleSets(token), nil
	}
	sched := New(fetch, testDetector(), tokenset.New(), nil)
	sched.AddPool(&Pool{Address: common.HexToAddress("0xaa"), Token: token, VolumeRank: 1})

	sched.scanAndEmit(context.Background(), Stream)

	select {
	case opp := <-sched.Opportunities():
		assert.Equal(t, token, opp.Token)
	case <-time.After(time.Second):
		t.Fatal("expected an opportunity")
	}
}

func TestPromotionOnLargePriceMove(t *testing.T) {
	token := common.HexToAddress("0x0b")
	call := 0
	fetch := func(ctx context.Context, tokens []common.Address) ([]*quote.Set, error) {
		call++
		set := quote.NewSet(token, "x")
		price := int64(1_000_000)
		if call > 1 {
			price = 1_100_000 // +10%, well over the 0.5% threshold
		}
		set.Merge(venue.ConstantProductTight, quote.Quote{BuyAmount: big.NewInt(price), SellAmount: big.NewInt(price), TimestampMs: quote.NowMs()})
		set.Merge(venue.StableSwap, quote.Quote{BuyAmount: big.NewInt(price), SellAmount: big.NewInt(price), TimestampMs: quote.NowMs()})
		return []*quote.Set{set}, nil
	}
	sched := New(fetch, testDetector(), tokenset.New(), nil)
	pool := &Pool{Address: common.HexToAddress("0xbb"), Token: token, VolumeRank: 50, CurrentTier: Lazy}
	sched.AddPool(pool)

	sched.scanAndEmit(context.Background(), Lazy)
	sched.scanAndEmit(context.Background(), Lazy)

	sched.mu.RLock()
	got := sched.pools[pool.Address]
	sched.mu.RUnlock()
	require.NotNil(t, got)
	assert.Equal(t, Stream, got.CurrentTier)
	assert.NotNil(t, got.TierBeforePromotion)
	assert.Equal(t, Lazy, *got.TierBeforePromotion)

	select {
	case <-sched.membershipChanged:
	default:
		t.Fatal("expected promotion to signal membershipChanged")
	}
}

func TestDemotionRestoresTierAfterWindow(t *testing.T) {
	sched := New(nil, testDetector(), tokenset.New(), nil)
	before := Patrol
	past := time.Now().Add(-2 * time.Hour)
	pool := &Pool{
		Address:             common.HexToAddress("0xcc"),
		CurrentTier:         Stream,
		TierBeforePromotion: &before,
		PromotionStart:      &past,
	}
	sched.AddPool(pool)
	<-sched.membershipChanged // consume AddPool's own Stream-tier signal

	sched.runDemotionPass()

	sched.mu.RLock()
	got := sched.pools[pool.Address]
	sched.mu.RUnlock()
	assert.Equal(t, Patrol, got.CurrentTier)
	assert.Nil(t, got.PromotionStart)

	select {
	case <-sched.membershipChanged:
	default:
		t.Fatal("expected demotion to signal membershipChanged")
	}
}

func TestDemotionLeavesRecentPromotionAlone(t *testing.T) {
	sched := New(nil, testDetector(), tokenset.New(), nil)
	before := Patrol
	recent := time.Now().Add(-1 * time.Minute)
	pool := &Pool{
		Address:             common.HexToAddress("0xdd"),
		CurrentTier:         Stream,
		TierBeforePromotion: &before,
		PromotionStart:      &recent,
	}
	sched.AddPool(pool)

	sched.runDemotionPass()

	sched.mu.RLock()
	got := sched.pools[pool.Address]
	sched.mu.RUnlock()
	assert.Equal(t, Stream, got.CurrentTier)
}
