// Package scheduler implements the Tiered Scan Scheduler: it routes
// pools across Stream/Patrol/Lazy tiers, runs each tier's loop, and
// promotes/demotes pools based on observed price movement.
package scheduler

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/onrollup/lstarb/internal/metrics"
	"github.com/onrollup/lstarb/pkg/detector"
	"github.com/onrollup/lstarb/pkg/quote"
	"github.com/onrollup/lstarb/pkg/tokenset"
)

// Tier identifies one of the three scan cadences.
type Tier string

const (
	Stream Tier = "stream"
	Patrol Tier = "patrol"
	Lazy Tier = "lazy"
)

const (
	streamRankCeiling = 5
	patrolRankCeiling = 20

	promotionThresholdBps = 50 // 0.5%
	promotionDuration = 1 * time.Hour
	demotionCheckInterval = 60 * time.Second
	patrolInterval = 1 * time.Second
	lazyInterval = 60 * time.Second
)

// TierOf derives a pool's initial tier from its discovery-time volume rank:
// ranks 1-5 -> Stream, 6-20 -> Patrol, 21+ -> Lazy.
func TierOf(volumeRank int) Tier {
	switch {
	case volumeRank <= streamRankCeiling:
		return Stream
	case volumeRank <= patrolRankCeiling:
		return Patrol
	default:
		return Lazy
	}
}

// Pool is the scheduler's per-pool bookkeeping record.
type Pool struct {
	Address common.Address
	TokenName string
	Token common.Address
	CurrentTier Tier
	VolumeRank int
	LastObservedPrice *float64
	PromotionStart *time.Time
	TierBeforePromotion *Tier
}

// QuoteFetcher fetches the latest two-sided price picture for a set of
// tokens, normally backed by a quote.MulticallQuoter.
type QuoteFetcher func(ctx context.Context, tokens []common.Address) ([]*quote.Set, error)

// Scheduler owns the pool map and drives the three tier tasks plus the
// demotion checker.
type Scheduler struct {
	mu sync.RWMutex
	pools map[common.Address]*Pool

	fetch QuoteFetcher
	detector *detector.Detector
	tokens *tokenset.Set

	out chan detector.Opportunity

	streamWatcher *EventWatcher
	// membershipChanged signals RunStream that the Stream tier's pool set
	// changed so it can tear down and re-open its subscription with the new
	// address list. Buffered to 1 and sent to non-blockingly: a pending
	// signal already covers any further membership change before RunStream
	// gets to it.
	membershipChanged chan struct{}
}

// New constructs a Scheduler. out should be drained promptly by the
// execution dispatcher; its buffer approximates the source's unbounded
// channel at a generous, bounded size so a slow consumer cannot grow
// memory without limit.
func New(fetch QuoteFetcher, det *detector.Detector, tokens *tokenset.Set, watcher *EventWatcher) *Scheduler {
	return &Scheduler{
		pools:             make(map[common.Address]*Pool),
		fetch:             fetch,
		detector:          det,
		tokens:            tokens,
		out:               make(chan detector.Opportunity, 4096),
		streamWatcher:     watcher,
		membershipChanged: make(chan struct{}, 1),
	}
}

func (s *Scheduler) notifyMembershipChanged() {
	select {
	case s.membershipChanged <- struct{}{}:
	default:
	}
}

// Opportunities is the outbound channel the execution dispatcher drains.
func (s *Scheduler) Opportunities() <-chan detector.Opportunity {
	return s.out
}

// AddPool registers a pool at its rank-derived tier.
func (s *Scheduler) AddPool(p *Pool) {
	if p.CurrentTier == "" {
		p.CurrentTier = TierOf(p.VolumeRank)
	}
	s.mu.Lock()
	s.pools[p.Address] = p
	s.mu.Unlock()
	if p.CurrentTier == Stream {
		s.notifyMembershipChanged()
	}
}

// NewStatic builds a Scheduler with no EventWatcher; it is New with a nil
// watcher. RunStream returns at once without subscribing to swap events.
// Tiers are not frozen: RunLazy still applies the promotion rule, and
// RunDemotionChecker, if started, still demotes.
func NewStatic(fetch QuoteFetcher, det *detector.Detector, tokens *tokenset.Set) *Scheduler {
	return New(fetch, det, tokens, nil)
}

func (s *Scheduler) poolsInTier(tier Tier) []*Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Pool
	for _, p := range s.pools {
		if p.CurrentTier == tier {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func tokensOf(pools []*Pool) []common.Address {
	seen := make(map[common.Address]struct{}, len(pools))
	var out []common.Address
	for _, p := range pools {
		if _, ok := seen[p.Token]; ok {
			continue
		}
		seen[p.Token] = struct{}{}
		out = append(out, p.Token)
	}
	return out
}

func (s *Scheduler) scanAndEmit(ctx context.Context, tier Tier) {
	pools := s.poolsInTier(tier)
	metrics.PoolsPerTier.WithLabelValues(string(tier)).Set(float64(len(pools)))
	if len(pools) == 0 {
		return
	}

	start := time.Now()
	sets, err := s.fetch(ctx, tokensOf(pools))
	metrics.QuoteFetchDuration.WithLabelValues(string(tier)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Str("tier", string(tier)).Msg("quote fetch failed")
		return
	}
	if tier == Lazy {
		s.applyPromotionRule(pools, sets)
	}
	opps := s.detector.Detect(sets, string(tier), quote.NowMs())
	if len(opps) > 0 {
		metrics.OpportunitiesDetected.WithLabelValues(string(tier)).Add(float64(len(opps)))
	}
	for _, opp := range opps {
		select {
		case s.out <- opp:
		default:
			log.Warn().Str("token", opp.TokenName).Msg("opportunity channel full, dropping")
		}
	}
}

// RunPatrol runs the 1s Patrol tier loop until ctx is cancelled.
func (s *Scheduler) RunPatrol(ctx context.Context) {
	ticker := time.NewTicker(patrolInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanAndEmit(ctx, Patrol)
		}
	}
}

// RunLazy runs the 60s Lazy tier loop until ctx is cancelled.
func (s *Scheduler) RunLazy(ctx context.Context) {
	ticker := time.NewTicker(lazyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanAndEmit(ctx, Lazy)
		}
	}
}

// applyPromotionRule implements promotion check: a price move of 0.5% or more
// observed on a Lazy scan promotes the pool to Stream.
func (s *Scheduler) applyPromotionRule(pools []*Pool, sets []*quote.Set) {
	priceByToken := make(map[common.Address]float64, len(sets))
	for _, set := range sets {
		best := bestBuyPrice(set)
		if best > 0 {
			priceByToken[set.Token] = best
		}
	}

	promoted := false
	s.mu.Lock()
	for _, snapshot := range pools {
		p, ok := s.pools[snapshot.Address]
		if !ok {
			continue
		}
		newPrice, ok := priceByToken[p.Token]
		if !ok {
			continue
		}
		if p.LastObservedPrice != nil && *p.LastObservedPrice > 0 {
			moveBps := ((newPrice - *p.LastObservedPrice) / *p.LastObservedPrice)
			if moveBps < 0 {
				moveBps = -moveBps
			}
			if moveBps >= float64(promotionThresholdBps)/10_000 && p.CurrentTier != Stream {
				before := p.CurrentTier
				now := time.Now()
				p.TierBeforePromotion = &before
				p.PromotionStart = &now
				p.CurrentTier = Stream
				promoted = true
				log.Info().Str("pool", p.Address.Hex()).Str("from", string(before)).Msg("promoted to stream on price move")
			}
		}
		price := newPrice
		p.LastObservedPrice = &price
	}
	s.mu.Unlock()
	if promoted {
		s.notifyMembershipChanged()
	}
}

func bestBuyPrice(set *quote.Set) float64 {
	var best float64
	for _, q := range set.ByVenue {
		if q.BuyAmount == nil {
			continue
		}
		f, _ := new(big.Float).SetInt(q.BuyAmount).Float64()
		if f > best {
			best = f
		}
	}
	return best
}

// RunDemotionChecker wakes every 60s and restores any pool whose promotion
// has been active for more than an hour.
func (s *Scheduler) RunDemotionChecker(ctx context.Context) {
	ticker := time.NewTicker(demotionCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDemotionPass()
		}
	}
}

func (s *Scheduler) runDemotionPass() {
	demoted := false
	s.mu.Lock()
	now := time.Now()
	for _, p := range s.pools {
		if p.PromotionStart == nil || p.TierBeforePromotion == nil {
			continue
		}
		if now.Sub(*p.PromotionStart) > promotionDuration {
			log.Info().Str("pool", p.Address.Hex()).Str("restoring", string(*p.TierBeforePromotion)).Msg("demoted after promotion window")
			p.CurrentTier = *p.TierBeforePromotion
			p.PromotionStart = nil
			p.TierBeforePromotion = nil
			demoted = true
		}
	}
	s.mu.Unlock()
	if demoted {
		s.notifyMembershipChanged()
	}
}

// RunStream drives the Stream task: subscribe to swap events on the
// current Stream pool set, and on every event fetch+detect+emit. It
// restarts with a 1s backoff on stream termination and re-opens the
// subscription whenever Stream membership has changed.
func (s *Scheduler) RunStream(ctx context.Context) {
	if s.streamWatcher == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		members := streamAddresses(s.poolsInTier(Stream))
		events, unsub, err := s.streamWatcher.Subscribe(ctx, members)
		if err != nil {
			log.Warn().Err(err).Msg("stream subscribe failed, retrying")
			time.Sleep(1 * time.Second)
			continue
		}

		s.drainStream(ctx, events)
		unsub()
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
	}
}

// drainStream pumps swap events into scanAndEmit until ctx is cancelled,
// the subscription terminates, or promotion/demotion changes Stream
// membership — in the last case it returns so RunStream rebuilds the
// subscription against the new address list.
func (s *Scheduler) drainStream(ctx context.Context, events <-chan SwapEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.membershipChanged:
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			s.scanAndEmit(ctx, Stream)
		}
	}
}

func streamAddresses(pools []*Pool) []common.Address {
	out := make([]common.Address, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Address)
	}
	return out
}
