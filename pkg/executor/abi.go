package executor

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"math/big"

	"github.com/onrollup/lstarb/pkg/venue"
)

// executorABI is the bit-exact external surface of the on-chain executor
// contract: executeArb is state-changing and reverts with a reason
// string on failure; simulateArb is a view function used for pre-flight
// and gas estimation.
const executorABI = `[
	{
		"name":"executeArb",
		"type":"function",
		"stateMutability":"nonpayable",
		"inputs":[
			{"name":"lst","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"buyVenue","type":"uint8"},
			{"name":"sellVenue","type":"uint8"},
			{"name":"minProfit","type":"uint256"}
		],
		"outputs":[]
	},
	{
		"name":"simulateArb",
		"type":"function",
		"stateMutability":"view",
		"inputs":[
			{"name":"lst","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"buyVenue","type":"uint8"},
			{"name":"sellVenue","type":"uint8"}
		],
		"outputs":[{"name":"expectedProfit","type":"uint256"}]
	}
]`

var executorParsed abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(executorABI))
	if err != nil {
		panic("executor: invalid embedded ABI: " + err.Error())
	}
	executorParsed = parsed
}

// Call is the decoded set of arguments for either executeArb or
// simulateArb; the venue enum is packed as the single byte defined in
// pkg/venue (constant-product-tight=3, stable-swap=1, weighted-vault=2,
// other=4).
type Call struct {
	Token common.Address
	Amount *big.Int
	BuyVenue venue.Kind
	SellVenue venue.Kind
	MinProfit *big.Int // zero for simulateArb
}

// PackSimulate encodes a simulateArb call.
func PackSimulate(c Call) ([]byte, error) {
	return executorParsed.Pack("simulateArb", c.Token, c.Amount, uint8(c.BuyVenue), uint8(c.SellVenue))
}

// PackExecute encodes an executeArb call.
func PackExecute(c Call) ([]byte, error) {
	return executorParsed.Pack("executeArb", c.Token, c.Amount, uint8(c.BuyVenue), uint8(c.SellVenue), c.MinProfit)
}

// UnpackSimulateResult decodes simulateArb's single uint256 return value.
func UnpackSimulateResult(data []byte) (*big.Int, error) {
	out, err := executorParsed.Unpack("simulateArb", data)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ExtractRevertReason decodes a standard Solidity revert string payload:
// selector(4) + offset(32) + length(32) + the reason bytes, matching the
// source's extract_revert_reason.
func ExtractRevertReason(data []byte) string {
	if len(data) < 68 {
		return ""
	}
	length := new(big.Int).SetBytes(data[36:68]).Uint64()
	if uint64(len(data)) < 68+length {
		return ""
	}
	return string(data[68: 68+length])
}

// NewTx builds the zero-priority-fee, FIFO-ordered transaction shape this
// chain requires: max_priority_fee_per_gas is always zero because the
// sequencer orders by arrival, not by fee auction.
func NewTx(chainID *big.Int, nonce uint64, to common.Address, gasLimit uint64, maxFeePerGas *big.Int, data []byte) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID: chainID,
		Nonce: nonce,
		GasTipCap: big.NewInt(0),
		GasFeeCap: maxFeePerGas,
		Gas: gasLimit,
		To: &to,
		Data: data,
	})
}
