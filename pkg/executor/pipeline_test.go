package executor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/preflight"
	"github.com/onrollup/lstarb/pkg/venue"
)

type fakeClient struct {
	sendCalls    int
	sendErrs     []error
	receipts     []*types.Receipt
	receiptCalls int
	simProfit    *big.Int
	gasEstimate  uint64
	simCallErr   error
}

func (f *fakeClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if f.simCallErr != nil {
		return nil, f.simCallErr
	}
	out := make([]byte, 32)
	f.simProfit.FillBytes(out)
	return out, nil
}
func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gasEstimate, nil
}
func (f *fakeClient) GasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (f *fakeClient) SendRaw(ctx context.Context, signed *types.Transaction) error {
	idx := f.sendCalls
	f.sendCalls++
	if idx < len(f.sendErrs) {
		return f.sendErrs[idx]
	}
	return nil
}
func (f *fakeClient) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	idx := f.receiptCalls
	f.receiptCalls++
	if idx < len(f.receipts) {
		return f.receipts[idx], nil
	}
	return nil, nil
}
func (f *fakeClient) TxCount(ctx context.Context, addr common.Address) (uint64, error) {
	return 42, nil
}
func (f *fakeClient) SubscribeLogs(ctx context.Context, filter ethereum.FilterQuery) (chan types.Log, ethereum.Subscription, error) {
	return nil, nil, errors.New("unsupported")
}
func (f *fakeClient) SubscribeBlocks(ctx context.Context) (chan *types.Header, ethereum.Subscription, error) {
	return nil, nil, errors.New("unsupported")
}

func testOpportunity() detector.Opportunity {
	return detector.Opportunity{
		Token:          common.HexToAddress("0xabc0000000000000000000000000000000000a"),
		TokenName:      "stETH",
		BuyVenue:       venue.ConstantProductTight,
		SellVenue:      venue.StableSwap,
		ExpectedProfit: big.NewInt(1000),
		TradeAmount:    big.NewInt(500),
	}
}

func newTestPipeline(t *testing.T, client *fakeClient) *Pipeline {
	t.Helper()
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	v := preflight.New(client, common.HexToAddress("0xdead000000000000000000000000000000dead"))
	p, err := New(context.Background(), client, v, common.HexToAddress("0xdead000000000000000000000000000000dead"), big.NewInt(1), pk, DefaultPolicy())
	require.NoError(t, err)
	return p
}

func TestExecuteConfirmsAfterResubmits(t *testing.T) {
	client := &fakeClient{
		simProfit:   big.NewInt(1000),
		gasEstimate: 1,
		receipts: []*types.Receipt{
			nil,
			nil,
			{Status: types.ReceiptStatusSuccessful},
		},
	}
	p := newTestPipeline(t, client)
	result := p.Execute(context.Background(), testOpportunity())

	assert.Equal(t, "confirmed", result.Kind)
	assert.Equal(t, 2, result.ResubmitCount)
}

func TestExecuteNonceTooLowReturnsSubmittedWithPriorHash(t *testing.T) {
	client := &fakeClient{
		simProfit:   big.NewInt(1000),
		gasEstimate: 1,
		sendErrs:    []error{nil, errors.New("nonce too low")},
		receipts:    []*types.Receipt{nil}, // no receipt after first send
	}
	p := newTestPipeline(t, client)
	result := p.Execute(context.Background(), testOpportunity())

	assert.Equal(t, "submitted", result.Kind)
	assert.NotEqual(t, common.Hash{}, result.Hash)
}

func TestExecuteInsufficientFundsFailsImmediately(t *testing.T) {
	client := &fakeClient{
		simProfit:   big.NewInt(1000),
		gasEstimate: 1,
		sendErrs:    []error{errors.New("insufficient funds for gas * price + value")},
	}
	p := newTestPipeline(t, client)
	result := p.Execute(context.Background(), testOpportunity())

	assert.Equal(t, "failed", result.Kind)
	assert.Equal(t, 0, result.ResubmitCount)
}

func TestExecuteAbortsOnDegradedSimulation(t *testing.T) {
	client := &fakeClient{simProfit: big.NewInt(100), gasEstimate: 1} // far below expected 1000
	p := newTestPipeline(t, client)
	result := p.Execute(context.Background(), testOpportunity())

	assert.Equal(t, "aborted", result.Kind)
}

func TestExecuteFailsOnPreSubmitSimulationRevert(t *testing.T) {
	client := &fakeClient{simCallErr: errors.New("execution reverted: stale price")}
	p := newTestPipeline(t, client)
	result := p.Execute(context.Background(), testOpportunity())

	assert.Equal(t, "failed", result.Kind)
	assert.Equal(t, 0, result.ResubmitCount)
}

func TestExecuteFailsOnNonPositiveNetProfit(t *testing.T) {
	client := &fakeClient{simProfit: big.NewInt(0), gasEstimate: 1}
	p := newTestPipeline(t, client)
	result := p.Execute(context.Background(), testOpportunity())

	assert.Equal(t, "failed", result.Kind)
}

func TestClassifySubmitError(t *testing.T) {
	assert.Equal(t, errNonceTooLow, classifySubmitError(errors.New("nonce too low")))
	assert.Equal(t, errReplacementUnderpriced, classifySubmitError(errors.New("replacement transaction underpriced")))
	assert.Equal(t, errInsufficientFunds, classifySubmitError(errors.New("insufficient funds")))
	assert.Equal(t, errOther, classifySubmitError(errors.New("connection reset")))
}
