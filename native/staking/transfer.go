package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
)

// Transfer moves receipts between accounts. A sender with a cooldown set
// cannot transfer until the cooldown is stopped or cleared by a redemption.
// The receiver is not gated: its MaxRedeemable snapshot stays fixed, so
// incoming receipts only count toward a later cooldown.
func (e *Engine) Transfer(from, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return e.state.Atomic(func() error {
		return e.transfer(from, to, amount)
	})
}

func (e *Engine) transfer(from, to common.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if nativecommon.IsZeroAddress(to) {
		return fmt.Errorf("staking: transfer to the zero address")
	}
	sender, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if sender.CoolDownStart != 0 {
		return fmt.Errorf("staking: transfer from %s: %w", from.Hex(), coreerrors.ErrAccountInCoolDown)
	}
	if sender.Balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	sender.Balance.Sub(sender.Balance, amount)
	if err := e.putAccount(from, sender); err != nil {
		return err
	}
	receiver, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	receiver.Balance.Add(receiver.Balance, amount)
	if err := e.putAccount(to, receiver); err != nil {
		return err
	}
	if err := e.moveVotes(sender.Delegate, receiver.Delegate, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingTransfer{From: from, To: to, Amount: nativecommon.CloneInt(amount)})
	return nil
}

// Allowance returns the receipts spender may move on behalf of owner.
func (e *Engine) Allowance(owner, spender common.Address) (*big.Int, error) {
	return e.loadInt(allowanceKey(owner, spender))
}

// Approve sets the receipts spender may move on behalf of owner.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || nativecommon.CheckU256(amount) != nil {
		return errInvalidAmount
	}
	return e.state.Atomic(func() error {
		if err := e.state.KVPut(allowanceKey(owner, spender), amount); err != nil {
			return err
		}
		e.emitter.Emit(events.StakingApproval{Owner: owner, Spender: spender, Amount: nativecommon.CloneInt(amount)})
		return nil
	})
}

// TransferFrom moves receipts from owner using spender's allowance. A
// maximum allowance is never decremented.
func (e *Engine) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return e.state.Atomic(func() error {
		allowance, err := e.Allowance(owner, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return errInsufficientAllow
		}
		if !nativecommon.IsMaxUint256(allowance) {
			allowance.Sub(allowance, amount)
			if err := e.state.KVPut(allowanceKey(owner, spender), allowance); err != nil {
				return err
			}
		}
		return e.transfer(owner, to, amount)
	})
}
