package preflight

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onrollup/lstarb/pkg/executor"
	"github.com/onrollup/lstarb/pkg/venue"
)

type stubClient struct {
	callResult []byte
	callErr    error
	gasEstimate uint64
}

func (s *stubClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return s.callResult, s.callErr
}
func (s *stubClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return s.gasEstimate, nil
}
func (s *stubClient) GasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (s *stubClient) SendRaw(ctx context.Context, signed *types.Transaction) error { return nil }
func (s *stubClient) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return nil, nil
}
func (s *stubClient) TxCount(ctx context.Context, addr common.Address) (uint64, error) {
	return 0, nil
}
func (s *stubClient) SubscribeLogs(ctx context.Context, filter ethereum.FilterQuery) (chan types.Log, ethereum.Subscription, error) {
	return nil, nil, errors.New("unsupported")
}
func (s *stubClient) SubscribeBlocks(ctx context.Context) (chan *types.Header, ethereum.Subscription, error) {
	return nil, nil, errors.New("unsupported")
}

func encodedProfit(t *testing.T, profit *big.Int) []byte {
	t.Helper()
	data, err := executor.PackSimulate(executor.Call{
		Token:     common.HexToAddress("0xabc0000000000000000000000000000000000a"),
		Amount:    big.NewInt(1),
		BuyVenue:  venue.ConstantProductTight,
		SellVenue: venue.StableSwap,
	})
	require.NoError(t, err)
	_ = data
	packed, err := packUint256Return(profit)
	require.NoError(t, err)
	return packed
}

// packUint256Return mirrors how go-ethereum's abi.Pack would ABI-encode a
// single uint256 return value for a stub client response.
func packUint256Return(v *big.Int) ([]byte, error) {
	out := make([]byte, 32)
	v.FillBytes(out)
	return out, nil
}

func TestVerifyPassesWhenNetProfitClearsThreshold(t *testing.T) {
	client := &stubClient{callResult: encodedProfit(t, big.NewInt(1000)), gasEstimate: 1}
	v := New(client, common.HexToAddress("0xdead000000000000000000000000000000dead"))

	call := executor.Call{
		Token:     common.HexToAddress("0xabc0000000000000000000000000000000000a"),
		Amount:    big.NewInt(1),
		BuyVenue:  venue.ConstantProductTight,
		SellVenue: venue.StableSwap,
	}
	res := v.Verify(context.Background(), call, big.NewInt(1000), big.NewInt(0))
	assert.Equal(t, Passed, res.Outcome)
}

func TestVerifyAbortsOnDegradedProfit(t *testing.T) {
	// Seed scenario 5: expected 1000, actual 850 (85%) -> Aborted.
	client := &stubClient{callResult: encodedProfit(t, big.NewInt(850)), gasEstimate: 1}
	v := New(client, common.HexToAddress("0xdead000000000000000000000000000000dead"))

	call := executor.Call{
		Token:     common.HexToAddress("0xabc0000000000000000000000000000000000a"),
		Amount:    big.NewInt(1),
		BuyVenue:  venue.ConstantProductTight,
		SellVenue: venue.StableSwap,
	}
	res := v.Verify(context.Background(), call, big.NewInt(1000), big.NewInt(0))
	assert.Equal(t, Aborted, res.Outcome)
	assert.Equal(t, big.NewInt(850).String(), res.ActualProfit.String())
}

func TestVerifyAbortsOnCallError(t *testing.T) {
	client := &stubClient{callErr: errors.New("execution reverted")}
	v := New(client, common.HexToAddress("0xdead000000000000000000000000000000dead"))
	res := v.Verify(context.Background(), executor.Call{}, big.NewInt(1000), big.NewInt(0))
	assert.Equal(t, Aborted, res.Outcome)
}
