package staking

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakingcore/core/events"
	"stakingcore/core/state"
	"stakingcore/native/balancer"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/gauge"
	"stakingcore/storage"
)

var (
	note      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	weth      = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bal       = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	gaugeAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	gauge2    = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	snoteAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	treasury  = common.HexToAddress("0x0000000000000000000000000000000000000c02")
	lp        = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000d03")
	carol     = common.HexToAddress("0x0000000000000000000000000000000000000d04")
)

const (
	testCoolDown = 100 * time.Second
	testWindow   = 3 * 24 * time.Hour
)

func units(n int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

func fixed(numerator, denominator int64) *big.Int {
	v := new(big.Int).Mul(balancer.One, big.NewInt(numerator))
	return v.Quo(v, big.NewInt(denominator))
}

type fixture struct {
	mgr       *state.Manager
	ledger    *bank.Ledger
	pool      *balancer.Pool
	gauges    *gauge.Registry
	engine    *Engine
	collector *events.Collector
	now       time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func testConfig() Config {
	return Config{
		Address:            snoteAddr,
		Owner:              owner,
		Treasury:           treasury,
		NOTE:               note,
		WETH:               weth,
		Gauge:              gaugeAddr,
		CoolDown:           testCoolDown,
		RedemptionWindow:   testWindow,
		ShortfallCapBps:    3_000,
		ShortfallCoolDown:  7 * 24 * time.Hour,
		VotingOracleWindow: time.Hour,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mgr:       state.NewManager(storage.NewMemDB()),
		collector: &events.Collector{},
		now:       time.Unix(1_700_000_000, 0),
	}
	f.ledger = bank.NewLedger(f.mgr)
	for _, tok := range []bank.Token{
		{Address: note, Symbol: "NOTE", Decimals: 8},
		{Address: weth, Symbol: "WETH", Decimals: 18},
		{Address: bal, Symbol: "BAL", Decimals: 18},
	} {
		require.NoError(t, f.ledger.RegisterToken(tok))
	}
	f.ledger.SetWrappedNative(weth)

	f.pool = balancer.Open(f.mgr, f.ledger, poolAddr)
	f.pool.SetNowFunc(f.clock)
	require.NoError(t, f.pool.Create(balancer.Config{
		Address: poolAddr,
		Owner:   snoteAddr,
		Symbol:  "sNOTE-BPT",
		Tokens:  [2]common.Address{note, weth},
		Weights: [2]*big.Int{fixed(8, 10), fixed(2, 10)},
		SwapFee: fixed(5, 1000),
	}))
	for _, account := range []common.Address{lp, alice, bob} {
		require.NoError(t, f.ledger.Mint(note, account, units(10_000_000, 8)))
		require.NoError(t, f.ledger.Mint(weth, account, units(10_000, 18)))
		require.NoError(t, f.ledger.Mint(bank.NativeAsset, account, units(1_000, 18)))
	}
	_, err := f.pool.Join(lp, lp, [2]*big.Int{units(1_000_000, 8), units(250, 18)}, nil)
	require.NoError(t, err)

	f.gauges = gauge.NewRegistry(f.mgr, f.ledger)
	f.gauges.SetNowFunc(f.clock)
	for _, addr := range []common.Address{gaugeAddr, gauge2} {
		require.NoError(t, f.gauges.Create(gauge.Config{Address: addr, LPToken: poolAddr, PrimaryReward: bal}))
	}

	cfg := testConfig()
	f.engine = NewEngine(cfg, f.mgr, f.ledger, f.pool, f.gauges)
	f.engine.SetNowFunc(f.clock)
	f.engine.SetEmitter(f.collector)
	require.NoError(t, f.engine.Initialize(cfg))
	return f
}

func (f *fixture) balance(t *testing.T, token, account common.Address) *big.Int {
	t.Helper()
	v, err := f.ledger.BalanceOf(token, account)
	require.NoError(t, err)
	return v
}

func (f *fixture) receipts(t *testing.T, account common.Address) *big.Int {
	t.Helper()
	v, err := f.engine.BalanceOf(account)
	require.NoError(t, err)
	return v
}

func (f *fixture) share(t *testing.T, account common.Address) *big.Int {
	t.Helper()
	v, err := f.engine.PoolTokenShareOf(account)
	require.NoError(t, err)
	return v
}

func (f *fixture) totalPoolTokens(t *testing.T) *big.Int {
	t.Helper()
	v, err := f.engine.TotalPoolTokens()
	require.NoError(t, err)
	return v
}

func (f *fixture) supply(t *testing.T) *big.Int {
	t.Helper()
	v, err := f.engine.TotalSupply()
	require.NoError(t, err)
	return v
}

func (f *fixture) mintNOTE(t *testing.T, account common.Address, amount int64) *big.Int {
	t.Helper()
	minted, err := f.engine.MintFromNOTE(account, units(amount, 8), nil)
	require.NoError(t, err)
	return minted
}

func (f *fixture) state(t *testing.T, account common.Address) CoolDownState {
	t.Helper()
	view, err := f.engine.Account(account)
	require.NoError(t, err)
	return view.State
}

func TestInitializeStoresParamsAndVersion(t *testing.T) {
	f := newFixture(t)
	params, err := f.engine.Params()
	require.NoError(t, err)
	require.Equal(t, owner, params.Owner)
	require.Equal(t, uint64(100), params.CoolDownSeconds)
	require.Equal(t, RedemptionResetsCoolDown, params.RedemptionPolicy)
	require.Equal(t, ShortfallClamp, params.ShortfallPolicy)

	version, err := f.engine.Version()
	require.NoError(t, err)
	require.Equal(t, ImplementationVersion, version)

	require.ErrorIs(t, f.engine.Initialize(testConfig()), errAlreadyInit)

	bad := testConfig()
	bad.CoolDown = 0
	other := NewEngine(bad, f.mgr, f.ledger, f.pool, f.gauges)
	require.ErrorIs(t, other.Initialize(bad), errInvalidParam)
}

func TestEmptyCoreReportsZeroShares(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, 0, f.share(t, alice).Sign())
	claim, err := f.engine.GetTokenClaim(units(1, 18))
	require.NoError(t, err)
	require.Equal(t, 0, claim.PoolTokens.Sign())
	require.Equal(t, 0, claim.NOTE.Sign())
	require.Equal(t, 0, claim.WETH.Sign())
}

func TestGetTokenClaimDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	reserveBefore := f.balance(t, note, poolAddr)
	supplyBefore := f.supply(t)

	claim, err := f.engine.GetTokenClaim(minted)
	require.NoError(t, err)
	require.Equal(t, minted, claim.PoolTokens)
	require.Equal(t, 1, claim.NOTE.Sign())
	require.Equal(t, 1, claim.WETH.Sign())

	expected, err := f.pool.QueryExit(claim.PoolTokens)
	require.NoError(t, err)
	require.Equal(t, expected[0], claim.NOTE)
	require.Equal(t, expected[1], claim.WETH)
	require.Equal(t, reserveBefore, f.balance(t, note, poolAddr))
	require.Equal(t, supplyBefore, f.supply(t))
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newFixture(t)
	f.mintNOTE(t, alice, 1_000)
	f.engine.SetPauses(nativecommon.StaticPauses{moduleName: true})
	_, err := f.engine.MintFromNOTE(bob, units(1_000, 8), nil)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.ErrorIs(t, f.engine.Transfer(alice, bob, big.NewInt(1)), nativecommon.ErrModulePaused)

	f.engine.SetPauses(nil)
	require.NoError(t, f.engine.Transfer(alice, bob, big.NewInt(1)))
}
