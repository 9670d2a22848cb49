// Package executor also implements the Submission Pipeline: nonce
// issuance, signing, submission, and the resubmit/tracker loops that keep a
// transaction moving under FIFO ordering.
package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/onrollup/lstarb/internal/metrics"
	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/nodeclient"
	"github.com/onrollup/lstarb/pkg/preflight"
)

// Policy holds the Submission Pipeline's tunable constants.
type Policy struct {
	MaxResubmitAttempts int
	ResubmitWait time.Duration
	StuckTimeout time.Duration
	GasBuffer float64 // e.g. 1.20
	MinProfitScale float64 // e.g. 0.80, applied to the on-chain minProfit argument
	MaxGasPrice *big.Int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxResubmitAttempts: 3,
		ResubmitWait: 500 * time.Millisecond,
		StuckTimeout: 120 * time.Second,
		GasBuffer: 1.20,
		MinProfitScale: 0.80,
	}
}

// Result is the tagged ExecutionResult variant.
type Result struct {
	Kind string // "submitted" | "confirmed" | "reverted" | "aborted" | "failed"
	Hash common.Hash
	Profit *big.Int
	Reason string
	ExpectedProfit *big.Int
	ActualProfit *big.Int
	ResubmitCount int
	CorrelationID string
}

// PendingTx tracks one in-flight attempt awaiting a terminal receipt.
type PendingTx struct {
	Hash common.Hash
	Opportunity detector.Opportunity
	SubmitTime time.Time
	GasPrice *big.Int
	ResubmitCount int
	CorrelationID string
	signed *types.Transaction
}

// Pipeline owns the nonce counter, the wallet, and the set of PendingTx.
type Pipeline struct {
	Client nodeclient.NodeClient
	Verifier *preflight.Verifier
	Contract common.Address
	ChainID *big.Int
	PrivateKey *ecdsa.PrivateKey
	MyAddress common.Address
	Policy Policy

	nonce uint64
	nonceMu sync.Mutex

	pendingMu sync.RWMutex
	pending map[common.Hash]*PendingTx
}

// New builds a Pipeline and initializes the nonce from the chain.
func New(ctx context.Context, client nodeclient.NodeClient, verifier *preflight.Verifier, contract common.Address, chainID *big.Int, pk *ecdsa.PrivateKey, policy Policy) (*Pipeline, error) {
	addr := crypto.PubkeyToAddress(pk.PublicKey)
	n, err := client.TxCount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("executor: init nonce: %w", err)
	}
	return &Pipeline{
		Client: client,
		Verifier: verifier,
		Contract: contract,
		ChainID: chainID,
		PrivateKey: pk,
		MyAddress: addr,
		Policy: policy,
		nonce: n,
		pending: make(map[common.Hash]*PendingTx),
	}, nil
}

// ResyncNonce re-reads the chain's transaction count and atomically
// overwrites the local counter.
func (p *Pipeline) ResyncNonce(ctx context.Context) error {
	n, err := p.Client.TxCount(ctx, p.MyAddress)
	if err != nil {
		return fmt.Errorf("executor: resync nonce: %w", err)
	}
	p.nonceMu.Lock()
	p.nonce = n
	p.nonceMu.Unlock()
	return nil
}

func (p *Pipeline) nextNonce() uint64 {
	p.nonceMu.Lock()
	defer p.nonceMu.Unlock()
	n := p.nonce
	p.nonce++
	return n
}

func (p *Pipeline) decrementNonce() {
	p.nonceMu.Lock()
	defer p.nonceMu.Unlock()
	if p.nonce > 0 {
		p.nonce--
	}
}

// Execute runs the full execute() sequence for one opportunity.
func (p *Pipeline) Execute(ctx context.Context, opp detector.Opportunity) Result {
	correlationID := uuid.NewString()
	logger := log.With().Str("correlation_id", correlationID).Str("token", opp.TokenName).Logger()

	gasPrice, err := p.Client.GasPrice(ctx)
	if err != nil {
		return Result{Kind: "failed", Reason: "gas price unavailable: " + err.Error(), CorrelationID: correlationID}
	}
	if p.Policy.MaxGasPrice != nil && gasPrice.Cmp(p.Policy.MaxGasPrice) > 0 {
		logger.Warn().Str("gas_price", gasPrice.String()).Msg("gas ceiling breached, skipping")
		return Result{Kind: "failed", Reason: "gas price above ceiling", CorrelationID: correlationID}
	}

	call := Call{
		Token: opp.Token,
		Amount: opp.TradeAmount,
		BuyVenue: opp.BuyVenue,
		SellVenue: opp.SellVenue,
	}

	sim, err := Simulate(ctx, p.Client, p.Contract, call, gasPrice)
	if err != nil {
		return Result{Kind: "failed", Reason: "simulate: " + err.Error(), CorrelationID: correlationID}
	}
	if !sim.Success {
		logger.Info().Str("revert", sim.RevertReason).Msg("simulation reverted, skipping")
		return Result{Kind: "failed", Reason: sim.RevertReason, CorrelationID: correlationID}
	}
	if sim.NetProfit.Sign() <= 0 {
		logger.Info().Str("net_profit", sim.NetProfit.String()).Msg("simulated net profit non-positive, skipping")
		return Result{Kind: "failed", Reason: "simulated net profit non-positive", ExpectedProfit: opp.ExpectedProfit, ActualProfit: sim.NetProfit, CorrelationID: correlationID}
	}

	pre := p.Verifier.Verify(ctx, call, opp.ExpectedProfit, gasPrice)
	if pre.Outcome == preflight.Aborted {
		logger.Info().Str("expected", pre.ExpectedProfit.String()).Str("actual", pre.ActualProfit.String()).Msg("pre-flight aborted")
		return Result{
			Kind: "aborted",
			ExpectedProfit: pre.ExpectedProfit,
			ActualProfit: pre.ActualProfit,
			CorrelationID: correlationID,
		}
	}

	nonce := p.nextNonce()
	metrics.CurrentNonce.Set(float64(nonce + 1))

	gasLimit := uint64(math.Ceil(float64(pre.Simulation.GasEstimate) * p.Policy.GasBuffer))
	minProfit := new(big.Int).Mul(pre.Simulation.NetProfit, big.NewInt(int64(p.Policy.MinProfitScale*10_000)))
	minProfit.Div(minProfit, big.NewInt(10_000))
	call.MinProfit = minProfit

	data, err := PackExecute(call)
	if err != nil {
		p.decrementNonce()
		return Result{Kind: "failed", Reason: err.Error(), CorrelationID: correlationID}
	}

	tx := NewTx(p.ChainID, nonce, p.Contract, gasLimit, gasPrice, data)
	signer := types.LatestSignerForChainID(p.ChainID)
	signedTx, err := types.SignTx(tx, signer, p.PrivateKey)
	if err != nil {
		p.decrementNonce()
		return Result{Kind: "failed", Reason: "sign: " + err.Error(), CorrelationID: correlationID}
	}

	result := p.submitWithResubmit(ctx, signedTx, opp, gasPrice, correlationID, &logger)
	if result.Kind == "failed" && classifySubmitError(errors.New(result.Reason)) == errInsufficientFunds {
		p.decrementNonce()
	}
	metrics.RecordExecutionResult(result.Kind)
	return result
}

// submitWithResubmit implements the bounded resubmit loop.
func (p *Pipeline) submitWithResubmit(ctx context.Context, signedTx *types.Transaction, opp detector.Opportunity, gasPrice *big.Int, correlationID string, logger *zerolog.Logger) Result {
	hash := signedTx.Hash()
	var lastHash common.Hash
	attempts := 0

	for attempts < p.Policy.MaxResubmitAttempts {
		err := p.Client.SendRaw(ctx, signedTx)
		if err != nil {
			classified := classifySubmitError(err)
			switch classified {
			case errNonceTooLow:
				if lastHash != (common.Hash{}) {
					return Result{Kind: "submitted", Hash: lastHash, ResubmitCount: attempts, CorrelationID: correlationID}
				}
				return Result{Kind: "failed", Reason: "nonce too low, no prior hash", ResubmitCount: attempts, CorrelationID: correlationID}
			case errReplacementUnderpriced:
				p.track(hash, opp, gasPrice, attempts, correlationID, signedTx)
				return Result{Kind: "submitted", Hash: hash, ResubmitCount: attempts, CorrelationID: correlationID}
			case errInsufficientFunds:
				return Result{Kind: "failed", Reason: err.Error(), ResubmitCount: attempts, CorrelationID: correlationID}
			default:
				logger.Warn().Err(err).Int("attempt", attempts).Msg("submit failed, will retry")
			}
		} else {
			lastHash = hash
		}

		attempts++
		if attempts > 1 {
			metrics.ResubmitCount.Inc()
		}
		select {
		case <-ctx.Done():
			return Result{Kind: "failed", Reason: ctx.Err().Error(), ResubmitCount: attempts - 1, CorrelationID: correlationID}
		case <-time.After(p.Policy.ResubmitWait):
		}

		receipt, rerr := p.Client.Receipt(ctx, hash)
		if rerr == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				logger.Info().Str("hash", hash.Hex()).Msg("confirmed")
				return Result{Kind: "confirmed", Hash: hash, Profit: opp.ExpectedProfit, ResubmitCount: attempts - 1, CorrelationID: correlationID}
			}
			return Result{Kind: "reverted", Hash: hash, ResubmitCount: attempts - 1, CorrelationID: correlationID}
		}
	}

	resubmits := attempts - 1
	if resubmits < 0 {
		resubmits = 0
	}
	p.track(hash, opp, gasPrice, resubmits, correlationID, signedTx)
	return Result{Kind: "submitted", Hash: hash, ResubmitCount: resubmits, CorrelationID: correlationID}
}

func (p *Pipeline) track(hash common.Hash, opp detector.Opportunity, gasPrice *big.Int, resubmits int, correlationID string, signed *types.Transaction) {
	p.pendingMu.Lock()
	p.pending[hash] = &PendingTx{
		Hash: hash,
		Opportunity: opp,
		SubmitTime: time.Now(),
		GasPrice: gasPrice,
		ResubmitCount: resubmits,
		CorrelationID: correlationID,
		signed: signed,
	}
	count := len(p.pending)
	p.pendingMu.Unlock()
	metrics.PendingTxCount.Set(float64(count))
}

// PendingCount reports the number of in-flight transactions the background
// tracker is still watching.
func (p *Pipeline) PendingCount() int {
	p.pendingMu.RLock()
	defer p.pendingMu.RUnlock()
	return len(p.pending)
}

// RunTracker polls every PendingTx every 500ms until ctx is cancelled,
// emitting a Result on results for every terminal state.
func (p *Pipeline) RunTracker(ctx context.Context, results chan<- Result) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollPending(ctx, results)
		}
	}
}

func (p *Pipeline) pollPending(ctx context.Context, results chan<- Result) {
	p.pendingMu.RLock()
	snapshot := make([]*PendingTx, 0, len(p.pending))
	for _, tx := range p.pending {
		snapshot = append(snapshot, tx)
	}
	p.pendingMu.RUnlock()

	now := time.Now()
	for _, tx := range snapshot {
		if now.Sub(tx.SubmitTime) > p.Policy.StuckTimeout {
			p.removePending(tx.Hash)
			metrics.RecordExecutionResult("failed")
			results <- Result{Kind: "failed", Hash: tx.Hash, Reason: "stuck", CorrelationID: tx.CorrelationID}
			continue
		}
		receipt, err := p.Client.Receipt(ctx, tx.Hash)
		if err != nil || receipt == nil {
			continue
		}
		p.removePending(tx.Hash)
		if receipt.Status == types.ReceiptStatusSuccessful {
			metrics.RecordExecutionResult("confirmed")
			results <- Result{Kind: "confirmed", Hash: tx.Hash, Profit: tx.Opportunity.ExpectedProfit, CorrelationID: tx.CorrelationID}
		} else {
			metrics.RecordExecutionResult("reverted")
			results <- Result{Kind: "reverted", Hash: tx.Hash, CorrelationID: tx.CorrelationID}
		}
	}
}

func (p *Pipeline) removePending(hash common.Hash) {
	p.pendingMu.Lock()
	delete(p.pending, hash)
	count := len(p.pending)
	p.pendingMu.Unlock()
	metrics.PendingTxCount.Set(float64(count))
}

type submitErrorClass int

const (
	errOther submitErrorClass = iota
	errNonceTooLow
	errReplacementUnderpriced
	errInsufficientFunds
)

// classifySubmitError isolates the one string-matching surface in this
// pipeline: the chain's error text is the only place it compares strings
// instead of using errors.Is.
func classifySubmitError(err error) submitErrorClass {
	if err == nil {
		return errOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"):
		return errNonceTooLow
	case strings.Contains(msg, "replacement transaction underpriced"):
		return errReplacementUnderpriced
	case strings.Contains(msg, "insufficient funds"):
		return errInsufficientFunds
	default:
		return errOther
	}
}

var ErrStuck = errors.New("executor: transaction stuck past timeout")
