package notifier

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onrollup/lstarb/pkg/executor"
)

func TestAccumulatorCountsConfirmedAndProfit(t *testing.T) {
	a := NewAccumulator()
	a.AddOpportunity()
	a.AddOpportunity()
	a.AddResult(executor.Result{Kind: "confirmed", Profit: big.NewInt(500)})
	a.AddResult(executor.Result{Kind: "confirmed", Profit: big.NewInt(250)})
	a.AddResult(executor.Result{Kind: "reverted"})
	a.AddResult(executor.Result{Kind: "aborted"})

	stats := a.Drain()
	assert.Equal(t, int64(2), stats.OpportunitiesFound)
	assert.Equal(t, int64(3), stats.TxsSubmitted)
	assert.Equal(t, int64(2), stats.TxsConfirmed)
	assert.Equal(t, int64(1), stats.TxsReverted)
	assert.Equal(t, big.NewInt(750), stats.TotalProfit)
}

func TestDrainResetsAccumulator(t *testing.T) {
	a := NewAccumulator()
	a.AddOpportunity()
	a.Drain()

	stats := a.Drain()
	assert.Equal(t, int64(0), stats.OpportunitiesFound)
	assert.Equal(t, big.NewInt(0), stats.TotalProfit)
}
