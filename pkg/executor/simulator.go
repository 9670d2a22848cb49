package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/onrollup/lstarb/pkg/nodeclient"
)

// SimulationResult combines a single eth_call with a gas estimate into a
// net-profit verdict.
type SimulationResult struct {
	Success bool
	ExpectedProfit *big.Int
	GasEstimate uint64
	GasCostWei *big.Int
	NetProfit *big.Int
	RevertReason string
}

const defaultGasEstimateFallback = 500_000

// Simulate calls simulateArb via eth_call, estimates gas for the matching
// executeArb call, and folds both into a net-profit verdict. It never
// submits anything and never consumes a nonce.
func Simulate(ctx context.Context, client nodeclient.NodeClient, contract common.Address, call Call, gasPrice *big.Int) (*SimulationResult, error) {
	simData, err := PackSimulate(call)
	if err != nil {
		return nil, fmt.Errorf("executor: pack simulateArb: %w", err)
	}

	raw, err := client.Call(ctx, ethereum.CallMsg{To: &contract, Data: simData})
	if err != nil {
		return &SimulationResult{Success: false, RevertReason: ExtractRevertReason(raw)}, nil
	}

	expectedProfit, err := UnpackSimulateResult(raw)
	if err != nil {
		return nil, fmt.Errorf("executor: unpack simulateArb result: %w", err)
	}

	execCall := call
	execCall.MinProfit = big.NewInt(0)
	execData, err := PackExecute(execCall)
	if err != nil {
		return nil, fmt.Errorf("executor: pack executeArb: %w", err)
	}

	gasEstimate, err := client.EstimateGas(ctx, ethereum.CallMsg{To: &contract, Data: execData})
	if err != nil {
		gasEstimate = defaultGasEstimateFallback
	}

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gasEstimate), gasPrice)
	netProfit := new(big.Int).Sub(expectedProfit, gasCost)
	if netProfit.Sign() < 0 {
		netProfit = big.NewInt(0)
	}

	return &SimulationResult{
		Success: true,
		ExpectedProfit: expectedProfit,
		GasEstimate: gasEstimate,
		GasCostWei: gasCost,
		NetProfit: netProfit,
	}, nil
}

// QuickSimulate is a call-only fast path that skips gas estimation,
// suitable as a cheap pre-filter before the full Simulate/execute path.
func QuickSimulate(ctx context.Context, client nodeclient.NodeClient, contract common.Address, call Call) (bool, string, error) {
	simData, err := PackSimulate(call)
	if err != nil {
		return false, "", fmt.Errorf("executor: pack simulateArb: %w", err)
	}
	raw, err := client.Call(ctx, ethereum.CallMsg{To: &contract, Data: simData})
	if err != nil {
		return false, ExtractRevertReason(raw), nil
	}
	return true, "", nil
}
