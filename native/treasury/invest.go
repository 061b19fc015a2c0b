package treasury

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	"stakingcore/native/balancer"
	nativecommon "stakingcore/native/common"
)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// InvestWETHAndNOTE swaps the NOTE-weighted share of req.WETHAmount for NOTE,
// joins the pool with the proceeds, the remaining WETH and req.NOTEAmount,
// and stakes the pool tokens on behalf of the staking core. No receipts are
// minted, so every holder's pool-token share grows.
func (e *Engine) InvestWETHAndNOTE(caller common.Address, req InvestRequest) (InvestResult, error) {
	wethAmount := orZero(req.WETHAmount)
	noteAmount := orZero(req.NOTEAmount)
	if wethAmount.Sign() < 0 || noteAmount.Sign() < 0 || (wethAmount.Sign() == 0 && noteAmount.Sign() == 0) {
		return InvestResult{}, errInvalidAmount
	}
	var result InvestResult
	err := e.state.Atomic(func() error {
		params, err := e.requireManager(caller)
		if err != nil {
			return err
		}
		if !params.NOTEPurchaseLimitSet {
			return errPurchaseLimitUnset
		}
		pool := e.deps.Pool
		tokens, err := pool.Tokens()
		if err != nil {
			return err
		}
		weights, err := pool.Weights()
		if err != nil {
			return err
		}
		noteIdx := 0
		if tokens[1] == e.note {
			noteIdx = 1
		}
		if tokens[noteIdx] != e.note || tokens[1-noteIdx] != e.weth {
			return fmt.Errorf("%w: pool does not trade NOTE/WETH", errInvalidParam)
		}

		swapAmount := nativecommon.MulDiv(wethAmount, weights[noteIdx], balancer.One)
		swapped, bought := big.NewInt(0), big.NewInt(0)
		if swapAmount.Sign() > 0 {
			window := time.Duration(params.PriceWindowSecs) * time.Second
			twap, err := pool.TimeWeightedAverage(e.note, window)
			if err != nil {
				return err
			}
			swapped, bought, err = pool.Swap(balancer.SwapRequest{
				Kind:      balancer.GivenIn,
				Sender:    e.address,
				Recipient: e.address,
				TokenIn:   e.weth,
				TokenOut:  e.note,
				Amount:    swapAmount,
				Limit:     req.MinNOTEOut,
				Deadline:  req.Deadline,
			})
			if err != nil {
				return err
			}
			// swapped * 10000 <= bought * twap * (10000 + limit)
			ceiling := new(big.Rat).SetInt(bought)
			ceiling.Mul(ceiling, twap)
			ceiling.Mul(ceiling, new(big.Rat).SetInt64(int64(10_000+params.NOTEPurchaseLimitBps)))
			paid := new(big.Rat).SetInt(new(big.Int).Mul(swapped, basisPoints))
			if paid.Cmp(ceiling) > 0 {
				return fmt.Errorf("treasury: %s WETH paid for %s NOTE: %w", swapped, bought, coreerrors.ErrPriceOutsideBounds)
			}
		}

		noteJoined := new(big.Int).Add(bought, noteAmount)
		wethJoined := new(big.Int).Sub(wethAmount, swapped)
		var amounts [2]*big.Int
		amounts[noteIdx] = noteJoined
		amounts[1-noteIdx] = wethJoined
		poolTokens, err := pool.Join(e.address, e.address, amounts, req.MinPoolTokensOut)
		if err != nil {
			return err
		}
		coreParams, err := e.deps.Core.Params()
		if err != nil {
			return err
		}
		if err := e.deps.Gauges.Gauge(coreParams.Gauge).DepositFor(e.address, e.deps.Core.Address(), poolTokens); err != nil {
			return err
		}
		result = InvestResult{
			WETHSwapped: swapped,
			NOTEBought:  bought,
			NOTEJoined:  noteJoined,
			WETHJoined:  wethJoined,
			PoolTokens:  poolTokens,
		}
		e.emitter.Emit(events.TreasuryInvested{
			WETHAmount:  nativecommon.CloneInt(wethAmount),
			WETHSwapped: nativecommon.CloneInt(swapped),
			NOTEBought:  nativecommon.CloneInt(bought),
			NOTEJoined:  nativecommon.CloneInt(noteJoined),
			PoolTokens:  nativecommon.CloneInt(poolTokens),
			StakingCore: e.deps.Core.Address(),
		})
		return nil
	})
	if err != nil {
		return InvestResult{}, err
	}
	return result, nil
}
