package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	"stakingcore/native/bank"
)

func TestMintFromBPTBootstrapsOneToOne(t *testing.T) {
	f := newFixture(t)
	poolTokens := units(5, 18)
	require.NoError(t, f.ledger.Transfer(poolAddr, lp, alice, poolTokens))

	minted, err := f.engine.MintFromBPT(alice, poolTokens)
	require.NoError(t, err)
	require.Equal(t, poolTokens, minted)
	require.Equal(t, poolTokens, f.receipts(t, alice))
	require.Equal(t, poolTokens, f.share(t, alice))
	require.Equal(t, poolTokens, f.totalPoolTokens(t))

	staked, err := f.gauges.Gauge(gaugeAddr).BalanceOf(snoteAddr)
	require.NoError(t, err)
	require.Equal(t, poolTokens, staked)
	require.Equal(t, 0, f.balance(t, poolAddr, snoteAddr).Sign())

	mintedEvents := f.collector.OfType(events.TypeStakingMinted)
	require.Len(t, mintedEvents, 1)
	ev := mintedEvents[0].(events.StakingMinted)
	require.Equal(t, alice, ev.Account)
	require.Equal(t, poolTokens, ev.PoolTokenDelta)
	require.Equal(t, poolTokens, ev.ReceiptMinted)
}

func TestSecondMinterReceivesDilutionNeutralShare(t *testing.T) {
	f := newFixture(t)
	mintedA := f.mintNOTE(t, alice, 10_000)
	mintedB := f.mintNOTE(t, bob, 10_000)

	// The second single-sided join lands on a heavier NOTE reserve and
	// obtains fewer pool tokens for the same deposit.
	require.Equal(t, -1, mintedB.Cmp(mintedA))
	require.Equal(t, f.receipts(t, alice), f.share(t, alice))
	require.Equal(t, f.receipts(t, bob), f.share(t, bob))
	require.Equal(t, f.supply(t), f.totalPoolTokens(t))
}

func TestMintRespectsMinimumPoolTokens(t *testing.T) {
	f := newFixture(t)
	noteBefore := f.balance(t, note, alice)
	_, err := f.engine.MintFromNOTE(alice, units(10_000, 8), units(1_000_000, 18))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientOutput)
	require.Equal(t, noteBefore, f.balance(t, note, alice))
	require.Equal(t, 0, f.supply(t).Sign())
}

func TestMintRejectsEmptyDeposit(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.MintFromWETH(alice, big.NewInt(0), big.NewInt(0), nil)
	require.ErrorIs(t, err, errInvalidAmount)
	_, err = f.engine.MintFromBPT(alice, big.NewInt(0))
	require.ErrorIs(t, err, errInvalidAmount)
	_, err = f.engine.MintFromWETH(alice, big.NewInt(-1), units(1, 18), nil)
	require.ErrorIs(t, err, errInvalidAmount)
}

func TestDonationRaisesExistingShares(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	shareBefore := f.share(t, alice)

	donation := units(1, 18)
	require.NoError(t, f.gauges.Gauge(gaugeAddr).DepositFor(lp, snoteAddr, donation))
	require.Equal(t, minted, f.receipts(t, alice))
	require.Equal(t, new(big.Int).Add(shareBefore, donation), f.share(t, alice))

	// Later minters buy in at the raised price.
	poolTokens := units(1, 18)
	require.NoError(t, f.ledger.Transfer(poolAddr, lp, bob, poolTokens))
	mintedBob, err := f.engine.MintFromBPT(bob, poolTokens)
	require.NoError(t, err)
	require.Equal(t, -1, mintedBob.Cmp(poolTokens))
	require.LessOrEqual(t, f.share(t, bob).Cmp(poolTokens), 0)
}

func TestMintFromWETHJoinsWithBothAssets(t *testing.T) {
	f := newFixture(t)
	noteBefore := f.balance(t, note, alice)
	wethBefore := f.balance(t, weth, alice)

	minted, err := f.engine.MintFromWETH(alice, units(4_000, 8), units(1, 18), nil)
	require.NoError(t, err)
	require.Equal(t, 1, minted.Sign())
	require.Equal(t, new(big.Int).Sub(noteBefore, units(4_000, 8)), f.balance(t, note, alice))
	require.Equal(t, new(big.Int).Sub(wethBefore, units(1, 18)), f.balance(t, weth, alice))
	require.Equal(t, 0, f.balance(t, weth, snoteAddr).Sign())
	require.Equal(t, 0, f.balance(t, note, snoteAddr).Sign())
}

func TestMintFromETHWrapsNativeFunds(t *testing.T) {
	f := newFixture(t)
	nativeBefore := f.balance(t, bank.NativeAsset, alice)
	wethBefore := f.balance(t, weth, alice)
	escrowBefore := f.balance(t, bank.NativeAsset, weth)

	minted, err := f.engine.MintFromETH(alice, units(1_000, 8), units(1, 18), nil)
	require.NoError(t, err)
	require.Equal(t, minted, f.receipts(t, alice))
	require.Equal(t, new(big.Int).Sub(nativeBefore, units(1, 18)), f.balance(t, bank.NativeAsset, alice))
	require.Equal(t, wethBefore, f.balance(t, weth, alice))
	require.Equal(t, new(big.Int).Add(escrowBefore, units(1, 18)), f.balance(t, bank.NativeAsset, weth))
	require.Equal(t, 0, f.balance(t, weth, snoteAddr).Sign())
}

func TestMintRejectedDuringCoolDown(t *testing.T) {
	f := newFixture(t)
	f.mintNOTE(t, alice, 1_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)

	_, err = f.engine.MintFromNOTE(alice, units(1_000, 8), nil)
	require.ErrorIs(t, err, coreerrors.ErrAccountInCoolDown)

	require.NoError(t, f.engine.StopCoolDown(alice))
	f.mintNOTE(t, alice, 1_000)
}
