package treasury

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/exchange"
)

func balTrade(amount *big.Int) exchange.Trade {
	return exchange.Trade{
		TradeType: exchange.ExactInSingle,
		SellToken: bal,
		BuyToken:  dai,
		Amount:    amount,
	}
}

func TestExecuteTradeRequiresPermission(t *testing.T) {
	f := newFixture(t)
	f.fund(t, bal, units(100, 18))
	trade := balTrade(units(10, 18))

	_, _, err := f.treasury.ExecuteTrade(deployer, exchange.DexBalancerV2, trade)
	require.ErrorIs(t, err, coreerrors.ErrNotManager)
	_, _, err = f.treasury.ExecuteTrade(f.manager, exchange.DexBalancerV2, trade)
	require.ErrorIs(t, err, coreerrors.ErrPermissionDenied)

	require.NoError(t, f.treasury.SetTradingPermissions(deployer, treasuryAddr, bal, Permission{
		Allowed:    true,
		Dexes:      nativecommon.NewSet(exchange.DexBalancerV2),
		TradeTypes: nativecommon.NewSet(exchange.ExactInSingle),
	}))
	_, _, err = f.treasury.ExecuteTrade(f.manager, exchange.DexUniswapV2, trade)
	require.ErrorIs(t, err, coreerrors.ErrPermissionDenied)
	exactOut := trade
	exactOut.TradeType = exchange.ExactOutSingle
	_, _, err = f.treasury.ExecuteTrade(f.manager, exchange.DexBalancerV2, exactOut)
	require.ErrorIs(t, err, coreerrors.ErrPermissionDenied)

	simSold, simBought, err := f.treasury.SimulateTrade(f.manager, exchange.DexBalancerV2, trade)
	require.NoError(t, err)
	require.Equal(t, units(100, 18), f.balance(t, bal, treasuryAddr))

	sold, bought, err := f.treasury.ExecuteTrade(f.manager, exchange.DexBalancerV2, trade)
	require.NoError(t, err)
	require.Equal(t, simSold, sold)
	require.Equal(t, simBought, bought)
	require.Equal(t, units(90, 18), f.balance(t, bal, treasuryAddr))
	require.Equal(t, bought, f.balance(t, dai, treasuryAddr))
}

func TestExecuteTradeRevertsOnLimit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, bal, units(100, 18))
	require.NoError(t, f.treasury.SetTradingPermissions(deployer, treasuryAddr, bal, allowAll(exchange.DexBalancerV2)))
	trade := balTrade(units(10, 18))
	trade.Limit = units(1_000, 18)

	_, _, err := f.treasury.ExecuteTrade(f.manager, exchange.DexBalancerV2, trade)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientOutput)
	require.Equal(t, units(100, 18), f.balance(t, bal, treasuryAddr))
}

func TestInvestWETHAndNOTEDonatesToStakingCore(t *testing.T) {
	f := newFixture(t)
	f.fund(t, weth, units(1, 18))
	_, err := f.core.MintFromNOTE(alice, units(10_000, 8), nil)
	require.NoError(t, err)
	shareBefore, err := f.core.PoolTokenShareOf(alice)
	require.NoError(t, err)
	receiptsBefore, err := f.core.TotalSupply()
	require.NoError(t, err)
	stakeBefore, err := f.gauges.Gauge(gaugeAddr).BalanceOf(snoteAddr)
	require.NoError(t, err)

	req := InvestRequest{WETHAmount: milli(100, 18)}
	_, err = f.treasury.InvestWETHAndNOTE(f.manager, req)
	require.ErrorIs(t, err, errPurchaseLimitUnset)
	require.NoError(t, f.treasury.SetNOTEPurchaseLimit(deployer, 9_000))
	_, err = f.treasury.InvestWETHAndNOTE(deployer, req)
	require.ErrorIs(t, err, coreerrors.ErrNotManager)

	result, err := f.treasury.InvestWETHAndNOTE(f.manager, req)
	require.NoError(t, err)
	require.Equal(t, milli(80, 18), result.WETHSwapped)
	require.Equal(t, milli(20, 18), result.WETHJoined)
	require.Equal(t, result.NOTEBought, result.NOTEJoined)
	require.Equal(t, 1, result.PoolTokens.Sign())

	stakeAfter, err := f.gauges.Gauge(gaugeAddr).BalanceOf(snoteAddr)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(stakeBefore, result.PoolTokens), stakeAfter)
	receiptsAfter, err := f.core.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, receiptsBefore, receiptsAfter)
	shareAfter, err := f.core.PoolTokenShareOf(alice)
	require.NoError(t, err)
	require.Equal(t, 1, shareAfter.Cmp(shareBefore))

	require.Equal(t, milli(900, 18), f.balance(t, weth, treasuryAddr))
	require.Equal(t, 0, f.balance(t, note, treasuryAddr).Sign())
	require.Equal(t, 0, f.balance(t, poolAddr, treasuryAddr).Sign())

	invested := f.collector.OfType(events.TypeTreasuryInvested)
	require.Len(t, invested, 1)
	require.Equal(t, result.PoolTokens, invested[0].(events.TreasuryInvested).PoolTokens)
	require.Equal(t, snoteAddr, invested[0].(events.TreasuryInvested).StakingCore)
}

func TestInvestRespectsPurchaseLimit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, weth, units(1, 18))
	// Swap fees alone push the paid price above the average.
	require.NoError(t, f.treasury.SetNOTEPurchaseLimit(deployer, 0))
	stakeBefore, err := f.gauges.Gauge(gaugeAddr).BalanceOf(snoteAddr)
	require.NoError(t, err)

	_, err = f.treasury.InvestWETHAndNOTE(f.manager, InvestRequest{WETHAmount: milli(100, 18)})
	require.ErrorIs(t, err, coreerrors.ErrPriceOutsideBounds)
	require.Equal(t, units(1, 18), f.balance(t, weth, treasuryAddr))
	stakeAfter, err := f.gauges.Gauge(gaugeAddr).BalanceOf(snoteAddr)
	require.NoError(t, err)
	require.Equal(t, stakeBefore, stakeAfter)

	_, err = f.treasury.InvestWETHAndNOTE(f.manager, InvestRequest{WETHAmount: milli(100, 18), MinNOTEOut: units(1_000_000, 8)})
	require.ErrorIs(t, err, coreerrors.ErrInsufficientOutput)
}

// seedVault deposits pool tokens into the vault and funds a BAL reward
// stream on its gauge.
func seedVault(t *testing.T, f *fixture) {
	t.Helper()
	poolTokens := units(1_000, 18)
	require.NoError(t, f.ledger.Transfer(vaultPool, lp, alice, poolTokens))
	_, err := f.vault.Deposit(alice, poolTokens)
	require.NoError(t, err)
	require.NoError(t, f.gauges.Gauge(vaultGauge).NotifyReward(lp, bal, units(100, 18), time.Hour))
	f.advance(time.Hour)
}

func reinvestParams() ReinvestParams {
	leg := ReinvestTrade{Dex: exchange.DexBalancerV2, TradeType: exchange.ExactInSingle}
	return ReinvestParams{RewardToken: bal, Primary: leg, Secondary: leg}
}

func TestReinvestVaultReward(t *testing.T) {
	f := newFixture(t)
	seedVault(t, f)
	totalBefore, err := f.vault.TotalPoolTokens()
	require.NoError(t, err)

	_, err = f.treasury.ReinvestVaultReward(deployer, vaultAddr, reinvestParams())
	require.ErrorIs(t, err, coreerrors.ErrNotManager)
	_, err = f.treasury.ReinvestVaultReward(f.manager, vaultAddr, reinvestParams())
	require.ErrorIs(t, err, coreerrors.ErrPermissionDenied)

	// Treasury-level permissions do not cover vault rewards.
	require.NoError(t, f.treasury.SetTradingPermissions(deployer, treasuryAddr, bal, allowAll(exchange.DexBalancerV2)))
	_, err = f.treasury.ReinvestVaultReward(f.manager, vaultAddr, reinvestParams())
	require.ErrorIs(t, err, coreerrors.ErrPermissionDenied)

	require.NoError(t, f.treasury.SetTradingPermissions(deployer, vaultAddr, bal, allowAll(exchange.DexBalancerV2)))
	result, err := f.treasury.ReinvestVaultReward(f.manager, vaultAddr, reinvestParams())
	require.NoError(t, err)
	require.Equal(t, bal, result.RewardToken)
	require.Equal(t, 1, result.PrimaryAmount.Sign())
	require.Equal(t, 1, result.SecondaryAmount.Sign())
	require.Equal(t, 1, result.PoolTokensReceived.Sign())
	require.Equal(t, 1, result.StrategySharesMinted.Sign())

	totalAfter, err := f.vault.TotalPoolTokens()
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(totalBefore, result.PoolTokensReceived), totalAfter)
	feeShares, err := f.vault.BalanceOf(deployer)
	require.NoError(t, err)
	require.Equal(t, result.StrategySharesMinted, feeShares)
	require.Equal(t, 0, f.balance(t, bal, treasuryAddr).Sign())
	require.Equal(t, 0, f.balance(t, dai, treasuryAddr).Sign())
	require.Equal(t, 0, f.balance(t, usdc, treasuryAddr).Sign())

	reinvested := f.collector.OfType(events.TypeTreasuryVaultRewardReinvested)
	require.Len(t, reinvested, 1)
	ev := reinvested[0].(events.TreasuryVaultRewardReinvested)
	require.Equal(t, vaultAddr, ev.Vault)
	require.Equal(t, result.PrimaryAmount, ev.PrimaryAmount)
	require.Equal(t, result.SecondaryAmount, ev.SecondaryAmount)
	require.Equal(t, result.PoolTokensReceived, ev.PoolTokensReceived)
	require.Equal(t, result.StrategySharesMinted, ev.StrategySharesMinted)

	// Everything accrued was harvested.
	_, err = f.treasury.ReinvestVaultReward(f.manager, vaultAddr, reinvestParams())
	require.ErrorIs(t, err, errNoReward)
}

func TestReinvestSplitsByScaledReserves(t *testing.T) {
	f := newFixture(t)
	split, err := f.treasury.splitByReserves([2]common.Address{dai, usdc}, [2]*big.Int{units(3_000, 18), units(1_000, 6)}, big.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(750), split[0])
	require.Equal(t, big.NewInt(250), split[1])
}
