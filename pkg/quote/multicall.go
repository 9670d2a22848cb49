package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onrollup/lstarb/pkg/nodeclient"
	"github.com/onrollup/lstarb/pkg/venue"
)

// multicall3ABI is the subset of Multicall3's interface this package needs:
// a single aggregate3 call that tolerates per-subcall failure, matching the
// "batched call, per-sub-call failure tolerance" requirement.
const multicall3ABI = `[{
	"inputs":[{"components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}],"name":"calls","type":"tuple[]"}],
	"name":"aggregate3",
	"outputs":[{"components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}],"name":"returnData","type":"tuple[]"}],
	"stateMutability":"payable",
	"type":"function"
}]`

var multicall3Parsed abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(multicall3ABI))
	if err != nil {
		panic(fmt.Sprintf("quote: invalid embedded multicall3 ABI: %v", err))
	}
	multicall3Parsed = parsed
}

// Probe is one (token, venue, direction) sub-call to fold into a single
// Multicall3 round-trip.
type Probe struct {
	Venue    venue.Kind
	Target   common.Address
	CallData []byte
	// Decode turns raw return data into a buy/sell amount; a Probe that
	// fails or whose Decode returns an error contributes nothing, the
	// other probes in the same batch are unaffected.
	Decode func([]byte) (buy, sell *big.Int, err error)
}

// MulticallQuoter fetches every probe for a set of tokens in one RPC
// round-trip, mirroring the original multicall-based fast path: a single
// aggregate3 call with allowFailure=true on every sub-call.
type MulticallQuoter struct {
	client          nodeclient.NodeClient
	multicallTarget common.Address
}

func NewMulticallQuoter(client nodeclient.NodeClient, multicallTarget common.Address) *MulticallQuoter {
	return &MulticallQuoter{client: client, multicallTarget: multicallTarget}
}

// FetchAll executes every probe and merges successes into per-token
// QuoteSets, keyed by token address. Probes are indexed into sets by the
// caller via tokenOf; a probe whose sub-call reverts or fails to decode is
// silently dropped and does not fail the batch.
func (q *MulticallQuoter) FetchAll(ctx context.Context, probes []Probe, tokenOf func(int) (common.Address, string)) (map[common.Address]*Set, error) {
	if len(probes) == 0 {
		return map[common.Address]*Set{}, nil
	}

	type call struct {
		Target       common.Address
		AllowFailure bool
		CallData     []byte
	}
	calls := make([]call, len(probes))
	for i, p := range probes {
		calls[i] = call{Target: p.Target, AllowFailure: true, CallData: p.CallData}
	}

	data, err := multicall3Parsed.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("quote: pack aggregate3: %w", err)
	}

	raw, err := q.client.Call(ctx, ethereum.CallMsg{To: &q.multicallTarget, Data: data})
	if err != nil {
		return nil, fmt.Errorf("quote: aggregate3 call: %w", err)
	}

	outputs, err := multicall3Parsed.Unpack("aggregate3", raw)
	if err != nil {
		return nil, fmt.Errorf("quote: unpack aggregate3: %w", err)
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("quote: unexpected aggregate3 output shape")
	}

	type result struct {
		Success    bool
		ReturnData []byte
	}
	results, ok := outputs[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})
	if !ok {
		return nil, fmt.Errorf("quote: unexpected aggregate3 result type")
	}

	nowMs := NowMs()
	sets := make(map[common.Address]*Set)
	for i, p := range probes {
		if i >= len(results) || !results[i].Success {
			continue
		}
		buy, sell, err := p.Decode(results[i].ReturnData)
		if err != nil {
			continue
		}
		token, name := tokenOf(i)
		set, ok := sets[token]
		if !ok {
			set = NewSet(token, name)
			sets[token] = set
		}
		set.Merge(p.Venue, Quote{BuyAmount: buy, SellAmount: sell, TimestampMs: nowMs})
	}
	return sets, nil
}
