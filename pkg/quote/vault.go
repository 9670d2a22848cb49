package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/onrollup/lstarb/pkg/nodeclient"
)

// erc20BalanceOfABI is the one ERC20 method the liquidity clamp needs: the
// weighted vault's holdings of the configured base asset.
const erc20BalanceOfABI = `[{
	"constant":true,
	"inputs":[{"name":"account","type":"address"}],
	"name":"balanceOf",
	"outputs":[{"name":"","type":"uint256"}],
	"stateMutability":"view",
	"type":"function"
}]`

var erc20Parsed abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		panic(fmt.Sprintf("quote: invalid embedded erc20 ABI: %v", err))
	}
	erc20Parsed = parsed
}

// VaultReserveSource reads and caches the weighted vault's base-asset
// reserve for the liquidity clamp. The source config names exactly one
// weighted vault and one base asset wrapper, so the cached reserve is a
// single number shared across every token's clamp check, refreshed at
// most once per refreshInterval.
type VaultReserveSource struct {
	client    nodeclient.NodeClient
	vault     common.Address
	baseAsset common.Address
	refresh   time.Duration

	mu        sync.Mutex
	cached    *big.Int
	fetchedAt time.Time
}

// NewVaultReserveSource builds a reserve source for the given weighted
// vault / base asset wrapper pair. A zero refresh duration defaults to 30s.
func NewVaultReserveSource(client nodeclient.NodeClient, vault, baseAsset common.Address, refresh time.Duration) *VaultReserveSource {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	return &VaultReserveSource{client: client, vault: vault, baseAsset: baseAsset, refresh: refresh}
}

// Get returns the cached vault reserve, refreshing it first if stale. The
// token argument is accepted to satisfy detector.Detector.VaultReserveOf's
// signature but ignored: the clamp is against the vault's single base-asset
// balance, not a per-token reserve. A refresh failure returns the last
// known-good value (or nil before the first successful fetch) rather than
// blocking or erroring the detector's hot path.
func (v *VaultReserveSource) Get(_ common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cached != nil && time.Since(v.fetchedAt) < v.refresh {
		return v.cached
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	balance, err := v.fetch(ctx)
	if err != nil {
		return v.cached
	}
	v.cached = balance
	v.fetchedAt = time.Now()
	return v.cached
}

func (v *VaultReserveSource) fetch(ctx context.Context) (*big.Int, error) {
	data, err := erc20Parsed.Pack("balanceOf", v.vault)
	if err != nil {
		return nil, fmt.Errorf("quote: pack balanceOf: %w", err)
	}
	out, err := v.client.Call(ctx, ethereum.CallMsg{To: &v.baseAsset, Data: data})
	if err != nil {
		return nil, fmt.Errorf("quote: call balanceOf: %w", err)
	}
	results, err := erc20Parsed.Unpack("balanceOf", out)
	if err != nil || len(results) == 0 {
		return nil, fmt.Errorf("quote: unpack balanceOf: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quote: balanceOf returned unexpected type %T", results[0])
	}
	return balance, nil
}
