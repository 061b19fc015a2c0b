package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/config"
	"stakingcore/core/events"
	"stakingcore/core/state"
	"stakingcore/native/balancer"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/delegator"
	"stakingcore/native/exchange"
	"stakingcore/native/gauge"
	"stakingcore/native/oracle"
	"stakingcore/native/staking"
	"stakingcore/native/treasury"
	"stakingcore/native/vault"
	"stakingcore/storage"
)

// Oracle names registered on every node. Feed names from the configuration
// are registered alongside them.
const (
	OracleManual    = "manual"
	OraclePool      = "pool"
	OracleAggregate = "aggregate"
)

// Option customises node construction.
type Option func(*Node)

// WithClock overrides the wall clock used by every time-aware module.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		if now != nil {
			n.now = now
		}
	}
}

// WithHTTPClient sets the client used by HTTP price feeds.
func WithHTTPClient(client oracle.HTTPDoer) Option {
	return func(n *Node) {
		if client != nil {
			n.httpClient = client
		}
	}
}

// WithSink registers a subscriber for committed events.
func WithSink(sink events.Emitter) Option {
	return func(n *Node) {
		if sink != nil {
			n.sinks = append(n.sinks, sink)
		}
	}
}

// Node owns the state manager and every module handle built on it. Module
// handles are rebuilt from the configuration on each start; persistent
// state lives in the database.
type Node struct {
	cfg        config.Config
	db         storage.Database
	state      *state.Manager
	now        func() time.Time
	httpClient oracle.HTTPDoer
	sinks      fanout

	ledger    *bank.Ledger
	pools     map[common.Address]*balancer.Pool
	pairs     map[common.Address]*exchange.UniswapV2Pair
	gauges    *gauge.Registry
	oracles   *oracle.Registry
	manual    *oracle.ManualOracle
	venue     *exchange.Venue
	trader    *exchange.TradingModule
	staking   *staking.Engine
	treasury  *treasury.Engine
	vaults    *vault.Registry
	vaultList []*vault.Vault
	delegator *delegator.Delegator

	mu sync.Mutex
}

type fanout []events.Emitter

func (f fanout) Emit(ev events.Event) {
	for _, sink := range f {
		sink.Emit(ev)
	}
}

// New wires the modules described by cfg over db and runs genesis when the
// database has never been initialised.
func New(cfg config.Config, db storage.Database, opts ...Option) (*Node, error) {
	n := &Node{
		cfg:        cfg,
		db:         db,
		state:      state.NewManager(db),
		now:        time.Now,
		httpClient: oracle.NewHTTPClient(oracle.DefaultHTTPTimeout),
		pools:      make(map[common.Address]*balancer.Pool),
		pairs:      make(map[common.Address]*exchange.UniswapV2Pair),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.state.SetSink(n.sinks)
	if err := n.wire(); err != nil {
		return nil, err
	}
	if err := n.genesis(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return n, nil
}

func (n *Node) wire() error {
	cfg := n.cfg
	pauses := nativecommon.StaticPauses(cfg.Pauses)

	n.ledger = bank.NewLedger(n.state)
	n.ledger.SetEmitter(n.state)
	n.ledger.SetWrappedNative(cfg.Staking.WETH)

	for _, pc := range cfg.Pools {
		p := balancer.Open(n.state, n.ledger, pc.Address)
		p.SetEmitter(n.state)
		p.SetNowFunc(n.now)
		n.pools[pc.Address] = p
	}
	pool, ok := n.pools[cfg.Staking.Pool]
	if !ok {
		return fmt.Errorf("staking pool %s not configured", cfg.Staking.Pool.Hex())
	}

	n.gauges = gauge.NewRegistry(n.state, n.ledger)
	n.gauges.SetEmitter(n.state)
	n.gauges.SetNowFunc(n.now)

	if err := n.wireOracles(pool); err != nil {
		return err
	}

	n.venue = exchange.NewVenue(cfg.Exchange.Venue, n.state, n.ledger)
	n.venue.SetEmitter(n.state)
	n.venue.SetNowFunc(n.now)
	n.trader = exchange.NewTradingModule(n.state)
	n.trader.SetEmitter(n.state)
	n.trader.SetNowFunc(n.now)
	allPools := make([]*balancer.Pool, 0, len(cfg.Pools))
	for _, pc := range cfg.Pools {
		allPools = append(allPools, n.pools[pc.Address])
	}
	pairs := make([]*exchange.UniswapV2Pair, 0, len(cfg.Exchange.UniswapPairs))
	for _, pc := range cfg.Exchange.UniswapPairs {
		pair := exchange.OpenUniswapV2Pair(pc.Address, n.state, n.ledger)
		pair.SetNowFunc(n.now)
		n.pairs[pc.Address] = pair
		pairs = append(pairs, pair)
	}
	n.trader.RegisterAdapter(exchange.DexBalancerV2, exchange.NewBalancerAdapter(allPools...))
	n.trader.RegisterAdapter(exchange.DexUniswapV2, exchange.NewUniswapV2Adapter(pairs...))
	n.trader.RegisterAdapter(exchange.DexZeroEx, exchange.NewZeroExAdapter(n.venue))

	stakingCfg, err := stakingConfig(cfg.Staking)
	if err != nil {
		return err
	}
	n.staking = staking.NewEngine(stakingCfg, n.state, n.ledger, pool, n.gauges)
	n.staking.SetEmitter(n.state)
	n.staking.SetNowFunc(n.now)
	n.staking.SetPauses(pauses)

	n.vaults = vault.NewRegistry()
	for _, vc := range cfg.Vaults {
		vp, ok := n.pools[vc.Pool]
		if !ok {
			return fmt.Errorf("vault %s: pool %s not configured", vc.Address.Hex(), vc.Pool.Hex())
		}
		v := vault.New(vc.Address, n.state, n.ledger, vp, n.gauges)
		v.SetEmitter(n.state)
		v.SetPauses(pauses)
		n.vaults.Register(v)
		n.vaultList = append(n.vaultList, v)
	}

	n.treasury = treasury.NewEngine(treasuryConfig(cfg), n.state, n.ledger, treasury.Deps{
		Oracles: n.oracles,
		Venue:   n.venue,
		Trader:  n.trader,
		Pool:    pool,
		Core:    n.staking,
		Gauges:  n.gauges,
		Vaults:  n.vaults,
	})
	n.treasury.SetEmitter(n.state)
	n.treasury.SetPauses(pauses)
	if !nativecommon.IsZeroAddress(cfg.Treasury.Address) {
		n.venue.RegisterWallet(cfg.Treasury.Address, n.treasury)
	}

	if !nativecommon.IsZeroAddress(cfg.Delegator.Address) {
		n.delegator = delegator.New(cfg.Delegator.Address, n.state, n.ledger, n.gauges)
		n.delegator.SetEmitter(n.state)
		n.delegator.SetPauses(pauses)
	}
	return nil
}

func (n *Node) wireOracles(pool *balancer.Pool) error {
	cfg := n.cfg.Oracles
	n.oracles = oracle.NewRegistry()
	aggregator := oracle.NewOracleAggregator(cfg.Priority, cfg.MaxAge.Duration)
	aggregator.SetNowFunc(n.now)
	aggregator.SetTWAPWindow(cfg.TWAPWindow.Duration)

	n.manual = oracle.NewManualOracle()
	started := n.now()
	for _, q := range cfg.Manual {
		if err := n.manual.SetDecimal(q.Base, q.Quote, q.Rate, started); err != nil {
			return err
		}
	}
	if err := n.oracles.Register(OracleManual, n.manual); err != nil {
		return err
	}
	aggregator.Register(OracleManual, n.manual)

	for _, feed := range cfg.Feeds {
		o, err := oracle.NewHTTPOracle(feed.Name, n.httpClient, feed.Endpoint, feed.APIKey)
		if err != nil {
			return err
		}
		if err := n.oracles.Register(feed.Name, o); err != nil {
			return err
		}
		aggregator.Register(feed.Name, o)
	}

	twap := oracle.NewPoolTWAPOracle(pool, n.ledger, cfg.TWAPWindow.Duration)
	twap.SetNowFunc(n.now)
	if err := n.oracles.Register(OraclePool, twap); err != nil {
		return err
	}
	aggregator.Register(OraclePool, twap)
	return n.oracles.Register(OracleAggregate, aggregator)
}

func stakingConfig(c config.StakingConfig) (staking.Config, error) {
	redemption, err := staking.ParseRedemptionPolicy(c.RedemptionPolicy)
	if err != nil {
		return staking.Config{}, err
	}
	shortfall, err := staking.ParseShortfallPolicy(c.ShortfallPolicy)
	if err != nil {
		return staking.Config{}, err
	}
	return staking.Config{
		Address:            c.Address,
		Owner:              c.Owner,
		Treasury:           c.Treasury,
		NOTE:               c.NOTE,
		WETH:               c.WETH,
		Gauge:              c.Gauge,
		CoolDown:           c.CoolDown.Duration,
		RedemptionWindow:   c.RedemptionWindow.Duration,
		ShortfallCapBps:    c.ShortfallCapBps,
		ShortfallCoolDown:  c.ShortfallCoolDown.Duration,
		VotingOracleWindow: c.VotingOracleWindow.Duration,
		RedemptionPolicy:   redemption,
		ShortfallPolicy:    shortfall,
	}, nil
}

func treasuryConfig(cfg config.Config) treasury.Config {
	return treasury.Config{
		Address:     cfg.Treasury.Address,
		Owner:       cfg.Treasury.Owner,
		Manager:     cfg.Treasury.Manager,
		NOTE:        cfg.Staking.NOTE,
		WETH:        cfg.Staking.WETH,
		PriceWindow: cfg.Treasury.PriceWindow.Duration,
	}
}

// Execute runs fn as one atomic unit and commits its writes and events. Any
// error discards the unit.
func (n *Node) Execute(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.state.Atomic(fn); err != nil {
		n.state.Discard()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return err
	}
	return nil
}

// View runs fn under the node lock and discards anything it wrote.
func (n *Node) View(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer n.state.Discard()
	return fn()
}

// Now returns the node clock.
func (n *Node) Now() time.Time { return n.now() }

// Config returns the configuration the node was built from.
func (n *Node) Config() config.Config { return n.cfg }

func (n *Node) Ledger() *bank.Ledger               { return n.ledger }
func (n *Node) Gauges() *gauge.Registry            { return n.gauges }
func (n *Node) Oracles() *oracle.Registry          { return n.oracles }
func (n *Node) ManualOracle() *oracle.ManualOracle { return n.manual }
func (n *Node) Venue() *exchange.Venue             { return n.venue }
func (n *Node) Trader() *exchange.TradingModule    { return n.trader }
func (n *Node) Staking() *staking.Engine           { return n.staking }
func (n *Node) Treasury() *treasury.Engine         { return n.treasury }
func (n *Node) Vaults() *vault.Registry            { return n.vaults }
func (n *Node) Delegator() *delegator.Delegator    { return n.delegator }

// Pool returns the configured pool at addr or nil.
func (n *Node) Pool(addr common.Address) *balancer.Pool { return n.pools[addr] }

// StakingPool returns the NOTE/WETH pool backing the staking core.
func (n *Node) StakingPool() *balancer.Pool { return n.pools[n.cfg.Staking.Pool] }
