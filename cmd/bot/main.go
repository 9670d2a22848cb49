// Command bot runs the arbitrage loop: it loads configuration, wires the
// Scheduler, Submission Pipeline, and Notifier together, and drains
// detected opportunities into the pipeline until the process is asked to
// shut down.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/onrollup/lstarb/configs"
	"github.com/onrollup/lstarb/internal/db"
	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/executor"
	"github.com/onrollup/lstarb/pkg/nodeclient"
	"github.com/onrollup/lstarb/pkg/notifier"
	"github.com/onrollup/lstarb/pkg/preflight"
	"github.com/onrollup/lstarb/pkg/quote"
	"github.com/onrollup/lstarb/pkg/scheduler"
	"github.com/onrollup/lstarb/pkg/sizer"
	"github.com/onrollup/lstarb/pkg/tokenset"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on process environment")
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("bot exited")
	}
}

func run() error {
	configPath := os.Getenv("LSTARB_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}
	cfg, err := configs.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pk, err := loadPrivateKey()
	if err != nil {
		return fmt.Errorf("load private key: %w", err)
	}

	rawClient, err := ethclient.Dial(cfg.RPC.HTTPURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	client := nodeclient.New(rawClient, nodeclient.WithRateLimit(cfg.RPC.RateLimit, cfg.RPC.Burst))

	executorAddr, err := cfg.ExecutorAddress()
	if err != nil {
		return err
	}
	multicallAddr, err := cfg.Multicall3Address()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tokens := tokenset.New()
	var toks []tokenset.Token
	for _, t := range cfg.Tokens {
		toks = append(toks, tokenset.Token{
			Address:  parseAddressOrPanic(t.Address),
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Verified: true,
		})
	}
	tokens.Replace(toks)

	floors, err := cfg.ToFloors()
	if err != nil {
		return err
	}
	s := sizer.New()
	if cfg.Strategy.MinTradeSize > 0 {
		s.MinTradeSize = cfg.Strategy.MinTradeSize
	}
	det := detector.New(s, floors)
	if cfg.Strategy.ReserveMultiplier > 0 {
		det.ReserveEstimateMultiplier = cfg.Strategy.ReserveMultiplier
	}
	if vault, ok := cfg.WeightedVaultAddress(); ok {
		if baseAsset, ok := cfg.BaseAssetWrapperAddress(); ok {
			vaultSource := quote.NewVaultReserveSource(client, vault, baseAsset, 0)
			det.VaultReserveOf = vaultSource.Get
		}
	}

	mcQuoter := quote.NewMulticallQuoter(client, multicallAddr)
	fetch := newQuoteFetcher(mcQuoter, tokens)

	watcher := scheduler.NewEventWatcher(client)
	sched := scheduler.New(fetch, det, tokens, watcher)

	verifier := preflight.New(client, executorAddr)
	policy := cfg.ToExecutionPolicy()
	pipeline, err := executor.New(ctx, client, verifier, executorAddr, cfg.ChainID(), pk, policy)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	var notify notifier.Notifier
	if dsn := cfg.MySQLDSN(); dsn != "" {
		mysqlNotifier, err := db.NewMySQLNotifier(dsn)
		if err != nil {
			return fmt.Errorf("connect notifier db: %w", err)
		}
		defer mysqlNotifier.Close()
		notify = mysqlNotifier
	}

	acc := notifier.NewAccumulator()

	go sched.RunStream(ctx)
	go sched.RunPatrol(ctx)
	go sched.RunLazy(ctx)
	go sched.RunDemotionChecker(ctx)

	results := make(chan executor.Result, 256)
	go pipeline.RunTracker(ctx, results)

	go serveMetrics(os.Getenv("LSTARB_METRICS_ADDR"))
	go runSummaryLoop(ctx, cfg.SummaryInterval(), acc, notify)

	dispatchLoop(ctx, sched, pipeline, notify, acc, results)
	return nil
}

func dispatchLoop(ctx context.Context, sched *scheduler.Scheduler, pipeline *executor.Pipeline, notify notifier.Notifier, acc *notifier.Accumulator, results <-chan executor.Result) {
	var inflight sync.WaitGroup
	execCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			inflight.Wait()
			return
		case opp := <-sched.Opportunities():
			acc.AddOpportunity()
			if notify != nil {
				notify.RecordOpportunity(opp)
			}
			inflight.Add(1)
			go func(opp detector.Opportunity) {
				defer inflight.Done()
				result := pipeline.Execute(execCtx, opp)
				acc.AddResult(result)
				if notify != nil {
					notify.RecordExecutionResult(opp, result)
				}
				log.Info().Str("kind", result.Kind).Str("token", opp.TokenName).Msg("execution result")
			}(opp)
		case result := <-results:
			acc.AddResult(result)
			log.Info().Str("kind", result.Kind).Str("hash", result.Hash.Hex()).Msg("background tracker result")
		}
	}
}

func runSummaryLoop(ctx context.Context, interval time.Duration, acc *notifier.Accumulator, notify notifier.Notifier) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := acc.Drain()
			log.Info().
				Int64("opportunities", stats.OpportunitiesFound).
				Int64("confirmed", stats.TxsConfirmed).
				Int64("reverted", stats.TxsReverted).
				Str("total_profit", stats.TotalProfit.String()).
				Msg("periodic summary")
			if notify != nil {
				notify.PeriodicSummary(stats)
			}
		}
	}
}

func serveMetrics(addr string) {
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Msg("metrics server stopped")
	}
}

// newQuoteFetcher adapts a MulticallQuoter into a scheduler.QuoteFetcher.
// Building the per-venue Probe set (pool address, calldata, decoder) for a
// token is the PoolDiscoverer's job, out of scope here. No PoolDiscoverer is
// wired into this binary, so the probe list is always empty and the fetcher
// returns no sets for any request.
func newQuoteFetcher(q *quote.MulticallQuoter, tokens *tokenset.Set) scheduler.QuoteFetcher {
	type probeOwner struct {
		addr common.Address
		name string
	}
	return func(ctx context.Context, addrs []common.Address) ([]*quote.Set, error) {
		var probes []quote.Probe
		var owners []probeOwner
		// probes/owners stay empty until a PoolDiscoverer is wired in to
		// resolve (pool, venue, calldata) tuples for addrs.
		if len(probes) == 0 {
			return nil, nil
		}
		sets, err := q.FetchAll(ctx, probes, func(i int) (common.Address, string) {
			return owners[i].addr, owners[i].name
		})
		if err != nil {
			return nil, err
		}
		out := make([]*quote.Set, 0, len(sets))
		for _, set := range sets {
			out = append(out, set)
		}
		return out, nil
	}
}

func loadPrivateKey() (*ecdsa.PrivateKey, error) {
	hexKey := os.Getenv("LSTARB_PRIVATE_KEY")
	if hexKey == "" {
		return nil, fmt.Errorf("LSTARB_PRIVATE_KEY not set")
	}
	return crypto.HexToECDSA(hexKey)
}

func parseAddressOrPanic(s string) (addr common.Address) {
	if !common.IsHexAddress(s) {
		panic(fmt.Sprintf("invalid token address in config: %q", s))
	}
	return common.HexToAddress(s)
}
