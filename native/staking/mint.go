package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/core/events"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
)

// MintFromBPT stakes pool tokens supplied by caller and mints receipts.
func (e *Engine) MintFromBPT(caller common.Address, poolTokens *big.Int) (*big.Int, error) {
	if err := validAmount(poolTokens); err != nil {
		return nil, err
	}
	var minted *big.Int
	err := e.state.Atomic(func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		params, before, err := e.beginMint(caller)
		if err != nil {
			return err
		}
		if err := e.bank.Transfer(e.pool.Address(), caller, e.address, poolTokens); err != nil {
			return err
		}
		minted, err = e.finishMint(params, caller, before, poolTokens, big.NewInt(0), big.NewInt(0))
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// MintFromNOTE joins the pool with NOTE only.
func (e *Engine) MintFromNOTE(caller common.Address, noteAmount, minPoolTokens *big.Int) (*big.Int, error) {
	return e.MintFromWETH(caller, noteAmount, nil, minPoolTokens)
}

// MintFromWETH joins the pool with any combination of NOTE and WETH supplied
// by caller. At least one amount must be positive.
func (e *Engine) MintFromWETH(caller common.Address, noteAmount, wethAmount, minPoolTokens *big.Int) (*big.Int, error) {
	return e.mintFromAssets(caller, noteAmount, wethAmount, false, minPoolTokens)
}

// MintFromETH wraps ethAmount of the native asset and joins the pool with it
// and noteAmount.
func (e *Engine) MintFromETH(caller common.Address, noteAmount, ethAmount, minPoolTokens *big.Int) (*big.Int, error) {
	return e.mintFromAssets(caller, noteAmount, ethAmount, true, minPoolTokens)
}

func (e *Engine) mintFromAssets(caller common.Address, noteAmount, wethAmount *big.Int, native bool, minPoolTokens *big.Int) (*big.Int, error) {
	noteAmount, wethAmount = nativecommon.CloneInt(noteAmount), nativecommon.CloneInt(wethAmount)
	if noteAmount.Sign() < 0 || wethAmount.Sign() < 0 {
		return nil, errInvalidAmount
	}
	if noteAmount.Sign() == 0 && wethAmount.Sign() == 0 {
		return nil, errInvalidAmount
	}
	var minted *big.Int
	err := e.state.Atomic(func() error {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
		params, before, err := e.beginMint(caller)
		if err != nil {
			return err
		}
		if wethAmount.Sign() > 0 {
			if native {
				if err := e.bank.Transfer(bank.NativeAsset, caller, e.address, wethAmount); err != nil {
					return err
				}
				if err := e.bank.Wrap(e.address, wethAmount); err != nil {
					return err
				}
			} else if err := e.bank.Transfer(e.weth, caller, e.address, wethAmount); err != nil {
				return err
			}
		}
		if noteAmount.Sign() > 0 {
			if err := e.bank.Transfer(e.note, caller, e.address, noteAmount); err != nil {
				return err
			}
		}
		amounts, err := e.order(noteAmount, wethAmount)
		if err != nil {
			return err
		}
		obtained, err := e.pool.Join(e.address, e.address, amounts, minPoolTokens)
		if err != nil {
			return err
		}
		minted, err = e.finishMint(params, caller, before, obtained, noteAmount, wethAmount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// beginMint checks the receiver and measures the backing before any pool
// tokens arrive.
func (e *Engine) beginMint(receiver common.Address) (Params, *big.Int, error) {
	params, err := e.Params()
	if err != nil {
		return Params{}, nil, err
	}
	account, err := e.loadAccount(receiver)
	if err != nil {
		return Params{}, nil, err
	}
	if account.CoolDownStart != 0 {
		return Params{}, nil, coreerrors.ErrAccountInCoolDown
	}
	before, err := e.totalPoolTokens(params)
	if err != nil {
		return Params{}, nil, err
	}
	return params, before, nil
}

// finishMint stakes the obtained pool tokens and mints receipts diluting
// existing holders by exactly the pool-token increase.
func (e *Engine) finishMint(params Params, receiver common.Address, before, obtained, noteIn, wethIn *big.Int) (*big.Int, error) {
	if err := e.gauge(params).Deposit(e.address, obtained); err != nil {
		return nil, err
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return nil, err
	}
	var minted *big.Int
	switch {
	case supply.Sign() == 0:
		minted = new(big.Int).Set(obtained)
	case before.Sign() == 0:
		return nil, errNoBacking
	default:
		minted = nativecommon.MulDiv(obtained, supply, before)
	}
	if minted.Sign() == 0 {
		return nil, errInvalidAmount
	}
	if err := e.mint(receiver, minted); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingMinted{
		Account:        receiver,
		WETHChange:     nativecommon.CloneInt(wethIn),
		NOTEChange:     nativecommon.CloneInt(noteIn),
		PoolTokenDelta: nativecommon.CloneInt(obtained),
		ReceiptMinted:  nativecommon.CloneInt(minted),
	})
	return minted, nil
}

func (e *Engine) mint(to common.Address, amount *big.Int) error {
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	supply.Add(supply, amount)
	if err := nativecommon.CheckU256(supply); err != nil {
		return err
	}
	if err := e.state.KVPut(supplyKey, supply); err != nil {
		return err
	}
	account, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	account.Balance.Add(account.Balance, amount)
	if err := e.putAccount(to, account); err != nil {
		return err
	}
	if err := e.moveVotes(common.Address{}, account.Delegate, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingTransfer{To: to, Amount: nativecommon.CloneInt(amount)})
	return nil
}

func (e *Engine) burn(from common.Address, account *Account, amount *big.Int) error {
	if account.Balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		coreerrors.InvariantViolation("receipt supply %s below burn %s", supply, amount)
	}
	supply.Sub(supply, amount)
	if err := e.state.KVPut(supplyKey, supply); err != nil {
		return err
	}
	account.Balance.Sub(account.Balance, amount)
	if err := e.putAccount(from, account); err != nil {
		return err
	}
	if err := e.moveVotes(account.Delegate, common.Address{}, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.StakingTransfer{From: from, Amount: nativecommon.CloneInt(amount)})
	return nil
}
