// Package notifier defines the human-notification capability: recording
// opportunities and execution results, and periodically summarizing them.
// It is a pure interface; internal/db supplies the reference MySQL
// adapter.
package notifier

import (
	"math/big"

	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/executor"
)

// Notifier is the capability the Submission Pipeline and Scheduler report
// into. Implementations must not block the hot path for long; a slow sink
// should buffer internally.
type Notifier interface {
	RecordOpportunity(opp detector.Opportunity)
	RecordExecutionResult(opp detector.Opportunity, result executor.Result)
	PeriodicSummary(stats Stats)
}

// Stats is one periodic summary snapshot, matching the fields the source's
// Stats/log_summary tracked.
type Stats struct {
	OpportunitiesFound int64
	SimulationsPassed  int64
	TxsSubmitted       int64
	TxsConfirmed       int64
	TxsReverted         int64
	TotalProfit        *big.Int
	TotalGasSpent      *big.Int
}

// Accumulator collects counts in memory between PeriodicSummary calls; a
// Notifier implementation embeds or owns one and flushes it on its own
// interval.
type Accumulator struct {
	Stats
}

func NewAccumulator() *Accumulator {
	return &Accumulator{Stats: Stats{TotalProfit: big.NewInt(0), TotalGasSpent: big.NewInt(0)}}
}

func (a *Accumulator) AddOpportunity() {
	a.OpportunitiesFound++
}

func (a *Accumulator) AddResult(result executor.Result) {
	switch result.Kind {
	case "aborted":
		return
	case "submitted":
		a.SimulationsPassed++
		a.TxsSubmitted++
	case "confirmed":
		a.SimulationsPassed++
		a.TxsSubmitted++
		a.TxsConfirmed++
		if result.Profit != nil {
			a.TotalProfit.Add(a.TotalProfit, result.Profit)
		}
	case "reverted":
		a.SimulationsPassed++
		a.TxsSubmitted++
		a.TxsReverted++
	}
}

// Drain returns the accumulated Stats and resets the accumulator to zero.
func (a *Accumulator) Drain() Stats {
	s := a.Stats
	a.Stats = Stats{TotalProfit: big.NewInt(0), TotalGasSpent: big.NewInt(0)}
	return s
}
