// Package nodeclient defines the NodeClient capability every other package
// in this module depends on, plus one concrete adapter backed by
// go-ethereum's ethclient.Client.
//
// The capability is intentionally narrow: no endpoint health-tracking, no
// failover between primary/backup RPC URLs. That transport-resilience layer
// is an external collaborator's job; this package only wraps a single
// client's calls with a circuit breaker and a rate limiter so one flaky
// endpoint cannot hang a scheduler tier task.
package nodeclient

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// NodeClient is the full surface the scheduler, sizer, pre-flight verifier
// and submission pipeline need from the chain.
type NodeClient interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	SendRaw(ctx context.Context, signed *types.Transaction) error
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TxCount(ctx context.Context, addr common.Address) (uint64, error)
	SubscribeLogs(ctx context.Context, filter ethereum.FilterQuery) (chan types.Log, ethereum.Subscription, error)
	SubscribeBlocks(ctx context.Context) (chan *types.Header, ethereum.Subscription, error)
}

// EthClient adapts *ethclient.Client to NodeClient, wrapping every call with
// a circuit breaker (trips after 5 consecutive failures, half-opens after
// 10s) and a token-bucket rate limiter so Patrol/Lazy poll loops cannot
// overrun a shared public endpoint.
type EthClient struct {
	raw     *ethclient.Client
	breaker *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
}

// Option configures an EthClient.
type Option func(*EthClient)

// WithRateLimit overrides the default 20 req/s, burst-5 limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *EthClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New wraps an existing *ethclient.Client.
func New(raw *ethclient.Client, opts ...Option) *EthClient {
	st := gobreaker.Settings{
		Name:        "rpc",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	c := &EthClient{
		raw:     raw,
		breaker: gobreaker.NewCircuitBreaker[any](st),
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EthClient) guard(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.breaker.Execute(fn)
}

func (c *EthClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	res, err := c.guard(ctx, func() (any, error) {
		return c.raw.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (c *EthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	res, err := c.guard(ctx, func() (any, error) {
		return c.raw.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

func (c *EthClient) GasPrice(ctx context.Context) (*big.Int, error) {
	res, err := c.guard(ctx, func() (any, error) {
		return c.raw.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

func (c *EthClient) SendRaw(ctx context.Context, signed *types.Transaction) error {
	_, err := c.guard(ctx, func() (any, error) {
		return nil, c.raw.SendTransaction(ctx, signed)
	})
	return err
}

func (c *EthClient) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	res, err := c.guard(ctx, func() (any, error) {
		return c.raw.TransactionReceipt(ctx, hash)
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.Receipt), nil
}

func (c *EthClient) TxCount(ctx context.Context, addr common.Address) (uint64, error) {
	res, err := c.guard(ctx, func() (any, error) {
		return c.raw.PendingNonceAt(ctx, addr)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

// SubscribeLogs is not routed through the breaker/limiter: it is a
// long-lived stream, not a request/response call.
func (c *EthClient) SubscribeLogs(ctx context.Context, filter ethereum.FilterQuery) (chan types.Log, ethereum.Subscription, error) {
	ch := make(chan types.Log, 256)
	sub, err := c.raw.SubscribeFilterLogs(ctx, filter, ch)
	if err != nil {
		return nil, nil, err
	}
	return ch, sub, nil
}

func (c *EthClient) SubscribeBlocks(ctx context.Context) (chan *types.Header, ethereum.Subscription, error) {
	ch := make(chan *types.Header, 16)
	sub, err := c.raw.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, nil, err
	}
	return ch, sub, nil
}
