// Package configs loads the bot's YAML configuration and converts it into
// the validated runtime types each package expects (parsed addresses,
// *big.Int policy constants). The signing key is not part of the YAML file;
// cmd/bot reads it from the environment. The executor address, minimum
// profit and MySQL DSN are read from the file, and an environment variable,
// when set, overrides each of them.
package configs

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/executor"
)

// Config is the flat structure unmarshalled directly from config.yml.
type Config struct {
	RPC        RPCYAML        `yaml:"rpc"`
	Tokens     []TokenYAML    `yaml:"tokens"`
	Venues     VenuesYAML     `yaml:"venues"`
	Strategy   StrategyYAML   `yaml:"strategy"`
	Execution  ExecutionYAML  `yaml:"execution"`
	Monitoring MonitoringYAML `yaml:"monitoring"`
}

type RPCYAML struct {
	HTTPURL   string  `yaml:"httpUrl"`
	WSURL     string  `yaml:"wsUrl"`
	ChainID   int64   `yaml:"chainId"`
	RateLimit float64 `yaml:"rateLimitRps"`
	Burst     int     `yaml:"rateLimitBurst"`
}

type TokenYAML struct {
	Address  string `yaml:"address"`
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type VenuesYAML struct {
	Multicall3   string `yaml:"multicall3"`
	ExecutorAddr string `yaml:"executor"`
	// PoolsByVenue maps a venue kind name ("stableSwap", "weightedVault",
	// "constantProductTight", "other") to the pool address probed for that
	// kind, for callers that need a fixed default pool per kind rather than
	// one resolved per token by a PoolDiscoverer.
	PoolsByVenue map[string]string `yaml:"poolsByVenue"`
	// WeightedVault and BaseAssetWrapper identify the pool the Liquidity
	// Clamp reads its reserve from: WeightedVault's balance of
	// BaseAssetWrapper caps the sizer's trade size.
	WeightedVault    string `yaml:"weightedVault"`
	BaseAssetWrapper string `yaml:"baseAssetWrapper"`
}

type StrategyYAML struct {
	MinSpreadBps      int64   `yaml:"minSpreadBps"`
	MinProfitWei      string  `yaml:"minProfitWei"`
	MinTradeSize      float64 `yaml:"minTradeSize"`
	ReserveMultiplier int64   `yaml:"reserveEstimateMultiplier"`
}

type ExecutionYAML struct {
	MaxResubmitAttempts int     `yaml:"maxResubmitAttempts"`
	ResubmitWaitMs      int     `yaml:"resubmitWaitMs"`
	StuckTimeoutSec     int     `yaml:"stuckTimeoutSec"`
	GasBuffer           float64 `yaml:"gasBuffer"`
	MinProfitScale      float64 `yaml:"minProfitScale"`
	MaxGasPriceGwei     int64   `yaml:"maxGasPriceGwei"`
}

type MonitoringYAML struct {
	SummaryIntervalSec int    `yaml:"summaryIntervalSec"`
	MySQLDSN           string `yaml:"mysqlDsn"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &cfg, nil
}

// ToFloors converts the strategy section into the Detector's Floors,
// applying an environment override for the minimum profit floor so an
// operator can tighten it without a redeploy.
func (c *Config) ToFloors() (detector.Floors, error) {
	minProfit, ok := new(big.Int).SetString(c.Strategy.MinProfitWei, 10)
	if !ok {
		return detector.Floors{}, fmt.Errorf("invalid strategy.minProfitWei: %q", c.Strategy.MinProfitWei)
	}
	if override := os.Getenv("LSTARB_MIN_PROFIT_WEI"); override != "" {
		overridden, ok := new(big.Int).SetString(override, 10)
		if !ok {
			return detector.Floors{}, fmt.Errorf("invalid LSTARB_MIN_PROFIT_WEI: %q", override)
		}
		minProfit = overridden
	}
	return detector.Floors{MinSpreadBps: c.Strategy.MinSpreadBps, MinProfit: minProfit}, nil
}

// ToExecutionPolicy converts the execution section into an executor.Policy.
func (c *Config) ToExecutionPolicy() executor.Policy {
	p := executor.DefaultPolicy()
	if c.Execution.MaxResubmitAttempts > 0 {
		p.MaxResubmitAttempts = c.Execution.MaxResubmitAttempts
	}
	if c.Execution.ResubmitWaitMs > 0 {
		p.ResubmitWait = time.Duration(c.Execution.ResubmitWaitMs) * time.Millisecond
	}
	if c.Execution.StuckTimeoutSec > 0 {
		p.StuckTimeout = time.Duration(c.Execution.StuckTimeoutSec) * time.Second
	}
	if c.Execution.GasBuffer > 0 {
		p.GasBuffer = c.Execution.GasBuffer
	}
	if c.Execution.MinProfitScale > 0 {
		p.MinProfitScale = c.Execution.MinProfitScale
	}
	if c.Execution.MaxGasPriceGwei > 0 {
		p.MaxGasPrice = new(big.Int).Mul(big.NewInt(c.Execution.MaxGasPriceGwei), big.NewInt(1e9))
	}
	return p
}

// ExecutorAddress parses the executor contract address, applying an
// environment override.
func (c *Config) ExecutorAddress() (common.Address, error) {
	addr := c.Venues.ExecutorAddr
	if override := os.Getenv("LSTARB_EXECUTOR_ADDRESS"); override != "" {
		addr = override
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid executor address: %q", addr)
	}
	return common.HexToAddress(addr), nil
}

// Multicall3Address parses the Multicall3 aggregator address.
func (c *Config) Multicall3Address() (common.Address, error) {
	if !common.IsHexAddress(c.Venues.Multicall3) {
		return common.Address{}, fmt.Errorf("invalid multicall3 address: %q", c.Venues.Multicall3)
	}
	return common.HexToAddress(c.Venues.Multicall3), nil
}

// WeightedVaultAddress parses the weighted vault address the liquidity
// clamp reads its reserve from. Returns false if unconfigured.
func (c *Config) WeightedVaultAddress() (common.Address, bool) {
	if !common.IsHexAddress(c.Venues.WeightedVault) {
		return common.Address{}, false
	}
	return common.HexToAddress(c.Venues.WeightedVault), true
}

// BaseAssetWrapperAddress parses the base asset wrapper token address.
// Returns false if unconfigured.
func (c *Config) BaseAssetWrapperAddress() (common.Address, bool) {
	if !common.IsHexAddress(c.Venues.BaseAssetWrapper) {
		return common.Address{}, false
	}
	return common.HexToAddress(c.Venues.BaseAssetWrapper), true
}

// ChainID returns the configured chain ID as a *big.Int.
func (c *Config) ChainID() *big.Int {
	return big.NewInt(c.RPC.ChainID)
}

// MySQLDSN returns the monitoring DSN, preferring the environment variable
// over the file value since credentials shouldn't live in version control.
func (c *Config) MySQLDSN() string {
	if override := os.Getenv("LSTARB_MYSQL_DSN"); override != "" {
		return override
	}
	return c.Monitoring.MySQLDSN
}

// SummaryInterval returns the periodic summary cadence, defaulting to 5
// minutes when unset.
func (c *Config) SummaryInterval() time.Duration {
	if c.Monitoring.SummaryIntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Monitoring.SummaryIntervalSec) * time.Second
}
