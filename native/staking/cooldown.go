package staking

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
)

// StartCoolDown begins the caller's cooldown and snapshots the pool-token
// share that may be redeemed during the coming window. An account whose
// previous window expired may start again.
func (e *Engine) StartCoolDown(caller common.Address) (time.Duration, *big.Int, error) {
	var (
		coolDown      time.Duration
		maxRedeemable *big.Int
	)
	err := e.state.Atomic(func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		account, err := e.loadAccount(caller)
		if err != nil {
			return err
		}
		now := e.now()
		switch coolDownState(params, account, now) {
		case StateCoolingDown, StateRedemptionWindow:
			return fmt.Errorf("staking: start cooldown: %w", coreerrors.ErrAccountInCoolDown)
		}
		share, err := e.poolShare(params, account.Balance)
		if err != nil {
			return err
		}
		account.CoolDownStart = now
		account.MaxRedeemable = share
		if err := e.putAccount(caller, account); err != nil {
			return err
		}
		coolDown = params.coolDown()
		maxRedeemable = nativecommon.CloneInt(share)
		e.emitter.Emit(events.StakingCoolDownStarted{
			Account:         caller,
			Start:           now,
			RedeemWindowEnd: now + params.CoolDownSeconds + params.RedemptionWindowSecs,
			MaxRedeemable:   nativecommon.CloneInt(share),
		})
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return coolDown, maxRedeemable, nil
}

// StopCoolDown clears the caller's cooldown and its redeemable snapshot.
func (e *Engine) StopCoolDown(caller common.Address) error {
	return e.state.Atomic(func() error {
		account, err := e.loadAccount(caller)
		if err != nil {
			return err
		}
		if account.CoolDownStart == 0 {
			return errNoCoolDown
		}
		return e.endCoolDown(caller, account, "stopped")
	})
}

func (e *Engine) endCoolDown(addr common.Address, account *Account, reason string) error {
	account.CoolDownStart = 0
	account.MaxRedeemable = big.NewInt(0)
	if err := e.putAccount(addr, account); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingCoolDownEnded{Account: addr, Reason: reason})
	return nil
}

// Redeem burns receipts inside the caller's redemption window and releases
// the underlying NOTE and WETH. The pool-token value of the burn may not
// exceed the cooldown snapshot.
func (e *Engine) Redeem(caller common.Address, req RedeemRequest) (RedeemResult, error) {
	if err := validAmount(req.Amount); err != nil {
		return RedeemResult{}, err
	}
	var result RedeemResult
	err := e.state.Atomic(func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		params, err := e.Params()
		if err != nil {
			return err
		}
		account, err := e.loadAccount(caller)
		if err != nil {
			return err
		}
		if coolDownState(params, account, e.now()) != StateRedemptionWindow {
			return coreerrors.ErrNotInRedemptionWindow
		}
		if account.Balance.Cmp(req.Amount) < 0 {
			return errInsufficientFunds
		}
		share, err := e.poolShare(params, req.Amount)
		if err != nil {
			return err
		}
		if share.Cmp(account.MaxRedeemable) > 0 {
			return fmt.Errorf("staking: redeem of %s pool tokens, cap %s: %w", share, account.MaxRedeemable, coreerrors.ErrRedeemExceedsMaxRedeemable)
		}
		if share.Sign() == 0 {
			return errInvalidAmount
		}
		if err := e.burn(caller, account, req.Amount); err != nil {
			return err
		}
		noteOut, wethOut, err := e.release(params, share, req.MinNOTEOut, req.MinWETHOut)
		if err != nil {
			return err
		}
		if err := e.bank.Transfer(e.note, e.address, caller, noteOut); err != nil {
			return err
		}
		if req.ToETH {
			if err := e.bank.Unwrap(e.address, wethOut); err != nil {
				return err
			}
			if err := e.bank.Transfer(bank.NativeAsset, e.address, caller, wethOut); err != nil {
				return err
			}
		} else if err := e.bank.Transfer(e.weth, e.address, caller, wethOut); err != nil {
			return err
		}
		switch params.RedemptionPolicy {
		case RedemptionKeepsWindowOpen:
			account.MaxRedeemable.Sub(account.MaxRedeemable, share)
			if err := e.putAccount(caller, account); err != nil {
				return err
			}
		default:
			if err := e.endCoolDown(caller, account, "redeemed"); err != nil {
				return err
			}
		}
		result = RedeemResult{PoolTokens: share, NOTEOut: noteOut, WETHOut: wethOut}
		e.emitter.Emit(events.StakingRedeemed{
			Account:          caller,
			ReceiptBurned:    nativecommon.CloneInt(req.Amount),
			PoolTokensExited: nativecommon.CloneInt(share),
			WETHOut:          nativecommon.CloneInt(wethOut),
			NOTEOut:          nativecommon.CloneInt(noteOut),
			RedeemedToETH:    req.ToETH,
		})
		return nil
	})
	if err != nil {
		return RedeemResult{}, err
	}
	return result, nil
}

// release unstakes poolTokens (using directly held pool tokens first) and
// exits the pool to the engine account.
func (e *Engine) release(params Params, poolTokens, minNOTE, minWETH *big.Int) (*big.Int, *big.Int, error) {
	held, err := e.bank.BalanceOf(e.pool.Address(), e.address)
	if err != nil {
		return nil, nil, err
	}
	if held.Cmp(poolTokens) < 0 {
		if err := e.gauge(params).Withdraw(e.address, new(big.Int).Sub(poolTokens, held)); err != nil {
			return nil, nil, err
		}
	}
	mins, err := e.order(minNOTE, minWETH)
	if err != nil {
		return nil, nil, err
	}
	amounts, err := e.pool.Exit(e.address, e.address, poolTokens, mins)
	if err != nil {
		return nil, nil, err
	}
	return e.split(amounts)
}
