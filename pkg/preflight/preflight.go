// Package preflight implements the Pre-flight Verifier: the
// last-moment re-simulation that defeats the detection-to-submission price
// drift before a nonce is ever consumed.
package preflight

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/onrollup/lstarb/pkg/executor"
	"github.com/onrollup/lstarb/pkg/nodeclient"
)

// Outcome is the verifier's verdict.
type Outcome int

const (
	Passed Outcome = iota
	Aborted
)

// Result carries the verdict plus the figures a caller logs or reports.
type Result struct {
	Outcome Outcome
	ExpectedProfit *big.Int
	ActualProfit *big.Int
	Simulation *executor.SimulationResult
}

// MinProfitScale is the fraction of the detector's expected profit the
// re-simulation must still clear to pass.
const MinProfitScale = 0.90

// Verifier re-simulates an opportunity against the latest chain state.
type Verifier struct {
	Client nodeclient.NodeClient
	Contract common.Address
}

func New(client nodeclient.NodeClient, contract common.Address) *Verifier {
	return &Verifier{Client: client, Contract: contract}
}

// Verify runs the pre-flight check. On any simulation error, it returns a
// conservative Aborted result rather than propagating the error, since the
// pipeline must never submit on an ambiguous signal.
func (v *Verifier) Verify(ctx context.Context, call executor.Call, expectedProfit *big.Int, gasPrice *big.Int) Result {
	sim, err := executor.Simulate(ctx, v.Client, v.Contract, call, gasPrice)
	if err != nil || sim == nil || !sim.Success {
		return Result{Outcome: Aborted, ExpectedProfit: expectedProfit, ActualProfit: big.NewInt(0), Simulation: sim}
	}

	threshold := scaleDown(expectedProfit, MinProfitScale)
	if sim.NetProfit.Cmp(threshold) < 0 {
		return Result{Outcome: Aborted, ExpectedProfit: expectedProfit, ActualProfit: sim.NetProfit, Simulation: sim}
	}

	return Result{Outcome: Passed, ExpectedProfit: expectedProfit, ActualProfit: sim.NetProfit, Simulation: sim}
}

// scaleDown multiplies a big.Int by a float scale factor using fixed-point
// basis points, avoiding float64 rounding on the integer comparison that
// gates a real transaction.
func scaleDown(amount *big.Int, scale float64) *big.Int {
	bps := big.NewInt(int64(scale * 10_000))
	out := new(big.Int).Mul(amount, bps)
	return out.Div(out, big.NewInt(10_000))
}
