package gauge

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakingcore/core/events"
	"stakingcore/core/state"
	"stakingcore/native/bank"
	"stakingcore/storage"
)

var (
	bpt       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bal       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	aura      = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	gaugeAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	funder    = common.HexToAddress("0x0000000000000000000000000000000000000a03")
)

type gaugeFixture struct {
	ledger    *bank.Ledger
	registry  *Registry
	gauge     *Gauge
	collector *events.Collector
	now       time.Time
}

func newGaugeFixture(t *testing.T) *gaugeFixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	f := &gaugeFixture{ledger: bank.NewLedger(mgr), collector: &events.Collector{}, now: time.Unix(1_700_000_000, 0)}
	for _, tok := range []bank.Token{
		{Address: bpt, Symbol: "BPT", Decimals: 18},
		{Address: bal, Symbol: "BAL", Decimals: 18},
		{Address: aura, Symbol: "AURA", Decimals: 18},
	} {
		require.NoError(t, f.ledger.RegisterToken(tok))
	}
	f.registry = NewRegistry(mgr, f.ledger)
	f.registry.SetEmitter(f.collector)
	f.registry.SetNowFunc(func() time.Time { return f.now })
	require.NoError(t, f.registry.Create(Config{Address: gaugeAddr, LPToken: bpt, PrimaryReward: bal, ExtraRewards: []common.Address{aura}}))
	f.gauge = f.registry.Gauge(gaugeAddr)
	require.NoError(t, f.ledger.Mint(bpt, alice, big.NewInt(1_000)))
	require.NoError(t, f.ledger.Mint(bpt, bob, big.NewInt(1_000)))
	require.NoError(t, f.ledger.Mint(bal, funder, big.NewInt(1_000_000)))
	require.NoError(t, f.ledger.Mint(aura, funder, big.NewInt(1_000_000)))
	return f
}

func TestDepositWithdrawTracksStake(t *testing.T) {
	f := newGaugeFixture(t)
	require.ErrorIs(t, f.registry.Create(Config{Address: gaugeAddr}), errGaugeExists)

	require.NoError(t, f.gauge.Deposit(alice, big.NewInt(600)))
	require.NoError(t, f.gauge.DepositFor(bob, alice, big.NewInt(100)))

	stake, err := f.gauge.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(700), stake)
	total, err := f.gauge.TotalStaked()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(700), total)
	held, err := f.ledger.BalanceOf(bpt, gaugeAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(700), held)

	require.ErrorIs(t, f.gauge.Withdraw(alice, big.NewInt(701)), errInsufficientStake)
	require.NoError(t, f.gauge.Withdraw(alice, big.NewInt(700)))
	back, err := f.ledger.BalanceOf(bpt, alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_100), back)
	require.Len(t, f.collector.OfType(events.TypeGaugeDeposit), 2)
}

func TestRewardsAccrueProRata(t *testing.T) {
	f := newGaugeFixture(t)
	require.NoError(t, f.gauge.Deposit(alice, big.NewInt(300)))
	require.NoError(t, f.gauge.Deposit(bob, big.NewInt(100)))

	require.NoError(t, f.gauge.NotifyReward(funder, bal, big.NewInt(40_000), 100*time.Second))
	require.NoError(t, f.gauge.NotifyReward(funder, aura, big.NewInt(4_000), 100*time.Second))
	f.now = f.now.Add(50 * time.Second)

	earned, err := f.gauge.Earned(alice, bal)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(15_000), earned)

	minted, err := f.gauge.MintPrimary(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(15_000), minted)

	f.now = f.now.Add(500 * time.Second)
	paid, err := f.gauge.ClaimRewards(bob)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Equal(t, aura, paid[0].Token)
	require.Equal(t, big.NewInt(1_000), paid[0].Amount)

	minted, err = f.gauge.MintPrimary(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(15_000), minted)
	balance, err := f.ledger.BalanceOf(bal, alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(30_000), balance)

	_, err = f.gauge.Earned(alice, common.HexToAddress("0x1234"))
	require.ErrorIs(t, err, errUnknownReward)
}

func TestNotifyRewardRollsOverRemainder(t *testing.T) {
	f := newGaugeFixture(t)
	require.NoError(t, f.gauge.Deposit(alice, big.NewInt(100)))
	require.NoError(t, f.gauge.NotifyReward(funder, bal, big.NewInt(1_000), 100*time.Second))
	f.now = f.now.Add(50 * time.Second)
	require.NoError(t, f.gauge.NotifyReward(funder, bal, big.NewInt(1_000), 100*time.Second))
	f.now = f.now.Add(100 * time.Second)

	earned, err := f.gauge.Earned(alice, bal)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2_000), earned)
	require.ErrorIs(t, f.gauge.NotifyReward(funder, bal, big.NewInt(1), 0), errInvalidDuration)
}
