package scheduler

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/onrollup/lstarb/pkg/nodeclient"
)

// Swap-event topic0 hashes the Stream watcher subscribes to. Each is the
// keccak256 of the venue's Swap/TokenExchange event signature; matching any
// one of them is sufficient cause to re-scan the affected pool.
var (
	UniswapV2SwapTopic                = common.HexToHash("0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822")
	UniswapV3SwapTopic                = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
	CurveTokenExchangeTopic           = common.HexToHash("0x8b3e96f2b889fa771c53c981b40daf005f63f637f1869f707052d15a3dd97140")
	CurveTokenExchangeUnderlyingTopic = common.HexToHash("0xd013ca23e77a65003c2c659c5442c00c805371b7fc1ebd4c206c41d1536bd90b")
	BalancerSwapTopic                 = common.HexToHash("0x2170c741c41531aec20e7c107c24eecfdd15e69c9bb0a8dd37b1840b9e0b207b")
)

var streamTopics = []common.Hash{
	UniswapV2SwapTopic,
	UniswapV3SwapTopic,
	CurveTokenExchangeTopic,
	CurveTokenExchangeUnderlyingTopic,
	BalancerSwapTopic,
}

// SwapEvent is the minimal shape the Stream task needs from a matched log:
// which pool emitted it and in which block. The scheduler re-scans the whole
// Stream tier on any event rather than tracing the exact pool, matching the
// source's coarse-grained "something moved, rescan" behavior.
type SwapEvent struct {
	Pool  common.Address
	Block uint64
}

// EventWatcher subscribes to swap-family logs on a NodeClient and converts
// the raw ethereum.FilterQuery stream into SwapEvents.
type EventWatcher struct {
	client nodeclient.NodeClient
}

func NewEventWatcher(client nodeclient.NodeClient) *EventWatcher {
	return &EventWatcher{client: client}
}

// Subscribe opens a log subscription scoped to pools and the known
// swap-event topics. The returned channel is closed, and unsub is a no-op,
// once the underlying subscription errors or ctx is cancelled; RunStream is
// responsible for the 1s-backoff restart on that path, and for rebuilding
// the subscription against a fresh pool list when Stream membership changes.
func (w *EventWatcher) Subscribe(ctx context.Context, pools []common.Address) (<-chan SwapEvent, func(), error) {
	if len(pools) == 0 {
		// An empty address filter would match every log on-chain; refuse
		// rather than subscribe to the firehose.
		ch := make(chan SwapEvent)
		close(ch)
		return ch, func() {}, nil
	}

	filter := ethereum.FilterQuery{
		Addresses: pools,
		Topics:    [][]common.Hash{streamTopics},
	}
	raw, sub, err := w.client.SubscribeLogs(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan SwapEvent, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					log.Warn().Err(err).Msg("swap log subscription terminated")
				}
				return
			case l, ok := <-raw:
				if !ok {
					return
				}
				out <- swapEventFromLog(l)
			}
		}
	}()

	return out, sub.Unsubscribe, nil
}

func swapEventFromLog(l types.Log) SwapEvent {
	return SwapEvent{Pool: l.Address, Block: l.BlockNumber}
}
