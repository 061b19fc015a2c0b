package staking

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreerrors "stakingcore/core/errors"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
)

func TestCoolDownStateTransitions(t *testing.T) {
	params := Params{CoolDownSeconds: 100, RedemptionWindowSecs: 3_600}
	start := uint64(1_000)
	account := &Account{CoolDownStart: start}

	cases := []struct {
		name string
		now  uint64
		want CoolDownState
	}{
		{"just started", start, StateCoolingDown},
		{"one second early", start + 99, StateCoolingDown},
		{"window opens", start + 100, StateRedemptionWindow},
		{"last second", start + 100 + 3_599, StateRedemptionWindow},
		{"window closed", start + 100 + 3_600, StateWindowExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, coolDownState(params, account, tc.now))
		})
	}
	require.Equal(t, StateActive, coolDownState(params, newAccount(), start))
}

func TestStartCoolDownSnapshotsShare(t *testing.T) {
	f := newFixture(t)
	f.mintNOTE(t, alice, 10_000)

	coolDown, maxRedeemable, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	require.Equal(t, testCoolDown, coolDown)
	require.Equal(t, f.share(t, alice), maxRedeemable)

	view, err := f.engine.Account(alice)
	require.NoError(t, err)
	require.Equal(t, StateCoolingDown, view.State)
	require.Equal(t, uint64(f.now.Unix()), view.CoolDownStart)
	require.Equal(t, maxRedeemable, view.MaxRedeemable)

	_, _, err = f.engine.StartCoolDown(alice)
	require.ErrorIs(t, err, coreerrors.ErrAccountInCoolDown)
	f.advance(testCoolDown)
	_, _, err = f.engine.StartCoolDown(alice)
	require.ErrorIs(t, err, coreerrors.ErrAccountInCoolDown)

	f.advance(testWindow)
	require.Equal(t, StateWindowExpired, f.state(t, alice))
	_, _, err = f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	require.Equal(t, StateCoolingDown, f.state(t, alice))
}

func TestCoolDownGatesTransfers(t *testing.T) {
	f := newFixture(t)
	f.mintNOTE(t, alice, 10_000)
	f.mintNOTE(t, bob, 10_000)
	require.NoError(t, f.engine.Approve(alice, carol, nativecommon.MaxUint256))
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.Transfer(alice, bob, big.NewInt(1)), coreerrors.ErrAccountInCoolDown)
	require.ErrorIs(t, f.engine.TransferFrom(carol, alice, bob, big.NewInt(1)), coreerrors.ErrAccountInCoolDown)

	// Receiving is not gated.
	require.NoError(t, f.engine.Transfer(bob, alice, big.NewInt(1)))

	// An expired window still blocks transfers until the cooldown is stopped.
	f.advance(testCoolDown + testWindow)
	require.ErrorIs(t, f.engine.Transfer(alice, bob, big.NewInt(1)), coreerrors.ErrAccountInCoolDown)

	require.NoError(t, f.engine.StopCoolDown(alice))
	require.Equal(t, StateActive, f.state(t, alice))
	require.NoError(t, f.engine.Transfer(alice, bob, big.NewInt(1)))
	require.NoError(t, f.engine.TransferFrom(carol, alice, bob, big.NewInt(1)))
	require.ErrorIs(t, f.engine.StopCoolDown(alice), errNoCoolDown)
}

func TestRedeemOnlyInsideWindow(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)

	f.advance(testCoolDown - time.Second)
	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.ErrorIs(t, err, coreerrors.ErrNotInRedemptionWindow)

	f.advance(time.Second)
	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.NoError(t, err)
}

func TestRedeemAtLastSecondOfWindow(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)

	f.advance(testCoolDown + testWindow - time.Second)
	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.NoError(t, err)
}

func TestRedeemFailsAfterWindowCloses(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)

	f.advance(testCoolDown + testWindow)
	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.ErrorIs(t, err, coreerrors.ErrNotInRedemptionWindow)
}

func TestRedeemWithoutCoolDownFails(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	_, err := f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.ErrorIs(t, err, coreerrors.ErrNotInRedemptionWindow)
}

func TestTransferIntoCoolingAccountLeavesCoolDownIntact(t *testing.T) {
	f := newFixture(t)
	f.mintNOTE(t, alice, 10_000)
	f.mintNOTE(t, bob, 10_000)
	_, maxRedeemable, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	before := f.receipts(t, alice)

	require.NoError(t, f.engine.Transfer(bob, alice, big.NewInt(1)))
	require.Equal(t, new(big.Int).Add(before, big.NewInt(1)), f.receipts(t, alice))

	view, err := f.engine.Account(alice)
	require.NoError(t, err)
	require.Equal(t, StateCoolingDown, view.State)
	require.Equal(t, maxRedeemable, view.MaxRedeemable)

	// Minting into a cooling account is the holder's own deposit and stays blocked.
	_, err = f.engine.MintFromNOTE(alice, units(1, 8), nil)
	require.ErrorIs(t, err, coreerrors.ErrAccountInCoolDown)
}

func TestRedeemCappedBySnapshot(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	f.mintNOTE(t, bob, 10_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)

	require.NoError(t, f.engine.Transfer(bob, alice, units(1, 8)))
	f.advance(testCoolDown)

	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: f.receipts(t, alice)})
	require.ErrorIs(t, err, coreerrors.ErrRedeemExceedsMaxRedeemable)

	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.NoError(t, err)
	require.Equal(t, units(1, 8), f.receipts(t, alice))
}

func TestRedeemReleasesUnderlying(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	claim, err := f.engine.GetTokenClaim(minted)
	require.NoError(t, err)
	noteBefore := f.balance(t, note, alice)
	wethBefore := f.balance(t, weth, alice)

	_, _, err = f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	f.advance(testCoolDown)

	result, err := f.engine.Redeem(alice, RedeemRequest{Amount: minted})
	require.NoError(t, err)
	require.Equal(t, claim.PoolTokens, result.PoolTokens)
	require.Equal(t, claim.NOTE, result.NOTEOut)
	require.Equal(t, claim.WETH, result.WETHOut)
	require.Equal(t, new(big.Int).Add(noteBefore, result.NOTEOut), f.balance(t, note, alice))
	require.Equal(t, new(big.Int).Add(wethBefore, result.WETHOut), f.balance(t, weth, alice))

	require.Equal(t, 0, f.receipts(t, alice).Sign())
	require.Equal(t, 0, f.supply(t).Sign())
	require.Equal(t, 0, f.totalPoolTokens(t).Sign())
	require.Equal(t, StateActive, f.state(t, alice))
}

func TestRedeemToNativeUnwraps(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	nativeBefore := f.balance(t, bank.NativeAsset, alice)
	wethBefore := f.balance(t, weth, alice)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	f.advance(testCoolDown)

	result, err := f.engine.Redeem(alice, RedeemRequest{Amount: minted, ToETH: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.WETHOut.Sign())
	require.Equal(t, new(big.Int).Add(nativeBefore, result.WETHOut), f.balance(t, bank.NativeAsset, alice))
	require.Equal(t, wethBefore, f.balance(t, weth, alice))
}

func TestRedeemRevertsOnMinimumOutput(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	f.advance(testCoolDown)
	supplyBefore := f.supply(t)
	totalBefore := f.totalPoolTokens(t)

	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: minted, MinNOTEOut: units(1_000_000, 8)})
	require.ErrorIs(t, err, coreerrors.ErrInsufficientOutput)
	require.Equal(t, minted, f.receipts(t, alice))
	require.Equal(t, supplyBefore, f.supply(t))
	require.Equal(t, totalBefore, f.totalPoolTokens(t))
	require.Equal(t, StateRedemptionWindow, f.state(t, alice))
}

func TestRedemptionPolicyKeepsWindowOpen(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetRedemptionPolicy(owner, RedemptionKeepsWindowOpen))
	minted := f.mintNOTE(t, alice, 10_000)
	_, maxRedeemable, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	f.advance(testCoolDown)

	half := new(big.Int).Rsh(minted, 1)
	result, err := f.engine.Redeem(alice, RedeemRequest{Amount: half})
	require.NoError(t, err)

	view, err := f.engine.Account(alice)
	require.NoError(t, err)
	require.Equal(t, StateRedemptionWindow, view.State)
	require.Equal(t, new(big.Int).Sub(maxRedeemable, result.PoolTokens), view.MaxRedeemable)
	require.ErrorIs(t, f.engine.Transfer(alice, bob, big.NewInt(1)), coreerrors.ErrAccountInCoolDown)

	quarter := new(big.Int).Rsh(minted, 2)
	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: quarter})
	require.NoError(t, err)
}

func TestRedemptionPolicyResetsCoolDown(t *testing.T) {
	f := newFixture(t)
	minted := f.mintNOTE(t, alice, 10_000)
	_, _, err := f.engine.StartCoolDown(alice)
	require.NoError(t, err)
	f.advance(testCoolDown)

	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: new(big.Int).Rsh(minted, 1)})
	require.NoError(t, err)
	view, err := f.engine.Account(alice)
	require.NoError(t, err)
	require.Equal(t, StateActive, view.State)
	require.Equal(t, 0, view.MaxRedeemable.Sign())

	_, err = f.engine.Redeem(alice, RedeemRequest{Amount: big.NewInt(1)})
	require.ErrorIs(t, err, coreerrors.ErrNotInRedemptionWindow)
	require.NoError(t, f.engine.Transfer(alice, bob, big.NewInt(1)))
}
