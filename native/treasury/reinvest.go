package treasury

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/exchange"
)

// splitByReserves divides amount between the two pool assets in proportion to
// their reserves scaled to a common 18-decimal unit.
func (e *Engine) splitByReserves(tokens [2]common.Address, reserves [2]*big.Int, amount *big.Int) ([2]*big.Int, error) {
	var scaled [2]*big.Int
	for i := range tokens {
		meta, err := e.bank.Token(tokens[i])
		if err != nil {
			return [2]*big.Int{}, err
		}
		scaled[i] = new(big.Int).Set(reserves[i])
		if meta.Decimals < 18 {
			scaled[i].Mul(scaled[i], new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-meta.Decimals)), nil))
		}
		if meta.Decimals > 18 {
			scaled[i].Quo(scaled[i], new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(meta.Decimals-18)), nil))
		}
	}
	total := new(big.Int).Add(scaled[0], scaled[1])
	if total.Sign() == 0 {
		return [2]*big.Int{}, fmt.Errorf("%w: vault pool has no reserves", errInvalidParam)
	}
	first := nativecommon.MulDiv(amount, scaled[0], total)
	return [2]*big.Int{first, new(big.Int).Sub(amount, first)}, nil
}

// ReinvestVaultReward harvests the vault's rewards, sells the chosen reward
// token for the vault pool's assets in proportion to its reserves, joins the
// pool and adds the pool tokens to the vault. Trades are gated by the
// permission stored for (vault, reward token). Other harvested tokens stay
// with the treasury.
func (e *Engine) ReinvestVaultReward(caller, vaultAddr common.Address, p ReinvestParams) (ReinvestResult, error) {
	var result ReinvestResult
	err := e.state.Atomic(func() error {
		if _, err := e.requireManager(caller); err != nil {
			return err
		}
		v, err := e.deps.Vaults.Vault(vaultAddr)
		if err != nil {
			return err
		}
		rewards, err := v.ClaimRewardTokens(e.address)
		if err != nil {
			return err
		}
		amount := big.NewInt(0)
		for _, r := range rewards {
			if r.Token == p.RewardToken {
				amount.Add(amount, r.Amount)
			}
		}
		if amount.Sign() == 0 {
			return fmt.Errorf("%w: %s", errNoReward, p.RewardToken.Hex())
		}

		pool := v.Pool()
		tokens, reserves, err := pool.Reserves()
		if err != nil {
			return err
		}
		split, err := e.splitByReserves(tokens, reserves, amount)
		if err != nil {
			return err
		}
		legs := [2]ReinvestTrade{p.Primary, p.Secondary}
		var joined [2]*big.Int
		for i := range tokens {
			joined[i], err = e.reinvestLeg(vaultAddr, tokens[i], p.RewardToken, split[i], legs[i])
			if err != nil {
				return err
			}
		}
		poolTokens, err := pool.Join(e.address, e.address, joined, p.MinPoolTokensOut)
		if err != nil {
			return err
		}
		shares, err := v.AddPoolTokens(e.address, poolTokens)
		if err != nil {
			return err
		}
		result = ReinvestResult{
			RewardToken:          p.RewardToken,
			PrimaryAmount:        joined[0],
			SecondaryAmount:      joined[1],
			PoolTokensReceived:   poolTokens,
			StrategySharesMinted: shares,
		}
		e.emitter.Emit(events.TreasuryVaultRewardReinvested{
			Vault:                vaultAddr,
			RewardToken:          p.RewardToken,
			PrimaryAmount:        nativecommon.CloneInt(joined[0]),
			SecondaryAmount:      nativecommon.CloneInt(joined[1]),
			PoolTokensReceived:   nativecommon.CloneInt(poolTokens),
			StrategySharesMinted: nativecommon.CloneInt(shares),
		})
		return nil
	})
	if err != nil {
		return ReinvestResult{}, err
	}
	return result, nil
}

// reinvestLeg converts amount of rewardToken into poolToken. A reward that is
// itself a pool asset is joined without trading.
func (e *Engine) reinvestLeg(vaultAddr, poolToken, rewardToken common.Address, amount *big.Int, leg ReinvestTrade) (*big.Int, error) {
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if poolToken == rewardToken {
		return amount, nil
	}
	if !leg.TradeType.ExactIn() {
		return nil, fmt.Errorf("%w: reinvestment trades sell an exact amount", errInvalidParam)
	}
	trade := exchange.Trade{
		TradeType: leg.TradeType,
		SellToken: rewardToken,
		BuyToken:  poolToken,
		Amount:    amount,
		Limit:     leg.Limit,
		Deadline:  leg.Deadline,
		Path:      leg.Path,
		Order:     leg.Order,
	}
	if err := e.checkPermission(vaultAddr, leg.Dex, trade); err != nil {
		return nil, err
	}
	_, bought, err := e.deps.Trader.ExecuteTrade(e.address, leg.Dex, trade)
	if err != nil {
		return nil, err
	}
	return bought, nil
}
