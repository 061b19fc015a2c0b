package delegator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/gauge"
)

const moduleName = "delegator"

// State is the journaled store delegated balances live in.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
}

// Bank pulls LP tokens from their owners and returns them on withdrawal.
type Bank interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, owner, to common.Address, amount *big.Int) error
}

// Gauges resolves gauges by address.
type Gauges interface {
	Gauge(addr common.Address) *gauge.Gauge
}

var (
	errNotInitialised = errors.New("delegator: not initialised")
	errAlreadyInit    = errors.New("delegator: already initialised")
	errInvalidAmount  = errors.New("delegator: amount must be positive")
	errInvalidParam   = errors.New("delegator: invalid parameter")
	errUnknownToken   = errors.New("delegator: no gauge for LP token")
	errInsufficient   = errors.New("delegator: insufficient delegated balance")
)

// Params is the stored delegator configuration.
type Params struct {
	Owner   common.Address
	Manager common.Address
}

// Delegator stakes LP tokens into gauges on behalf of their owners so that
// boosted rewards accrue to a single account.
type Delegator struct {
	address common.Address
	state   State
	bank    Bank
	gauges  Gauges
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func New(address common.Address, state State, b Bank, gauges Gauges) *Delegator {
	return &Delegator{address: address, state: state, bank: b, gauges: gauges, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink.
func (d *Delegator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		d.emitter = events.NoopEmitter{}
		return
	}
	d.emitter = emitter
}

func (d *Delegator) SetPauses(p nativecommon.PauseView) { d.pauses = p }

func (d *Delegator) Address() common.Address { return d.address }

// Initialize stores the owner. The manager is unset until the owner names one.
func (d *Delegator) Initialize(owner common.Address) error {
	if nativecommon.IsZeroAddress(owner) {
		return fmt.Errorf("%w: owner required", errInvalidParam)
	}
	return d.state.Atomic(func() error {
		if ok, err := d.state.KVGet(paramsKey, nil); err != nil {
			return err
		} else if ok {
			return errAlreadyInit
		}
		return d.state.KVPut(paramsKey, &Params{Owner: owner})
	})
}

// Params returns the stored configuration.
func (d *Delegator) Params() (Params, error) {
	var params Params
	ok, err := d.state.KVGet(paramsKey, &params)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return Params{}, errNotInitialised
	}
	return params, nil
}

// SetManagerContract names the account allowed to move delegated balances.
func (d *Delegator) SetManagerContract(caller, manager common.Address) error {
	return d.state.Atomic(func() error {
		params, err := d.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		params.Manager = manager
		return d.state.KVPut(paramsKey, &params)
	})
}

// SetGauge maps an LP token to the gauge it is staked into. The gauge must
// stake that token.
func (d *Delegator) SetGauge(caller, lpToken, gaugeAddr common.Address) error {
	return d.state.Atomic(func() error {
		params, err := d.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		staked, err := d.gauges.Gauge(gaugeAddr).LPToken()
		if err != nil {
			return err
		}
		if staked != lpToken {
			return fmt.Errorf("%w: gauge %s stakes %s", errInvalidParam, gaugeAddr.Hex(), staked.Hex())
		}
		return d.state.KVPut(gaugeKey(lpToken), gaugeAddr)
	})
}

func (d *Delegator) gaugeFor(lpToken common.Address) (*gauge.Gauge, error) {
	var addr common.Address
	ok, err := d.state.KVGet(gaugeKey(lpToken), &addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownToken, lpToken.Hex())
	}
	return d.gauges.Gauge(addr), nil
}

// TokenBalance returns the LP tokens delegated by owner.
func (d *Delegator) TokenBalance(lpToken, owner common.Address) (*big.Int, error) {
	value := new(big.Int)
	if _, err := d.state.KVGet(balanceKey(lpToken, owner), value); err != nil {
		return nil, err
	}
	return value, nil
}

func (d *Delegator) requireManager(caller common.Address) error {
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return err
	}
	params, err := d.Params()
	if err != nil {
		return err
	}
	return nativecommon.RequireManager(moduleName, params.Manager, caller)
}

// DepositToken pulls amount of lpToken from owner, which must have approved
// the delegator, and stakes it into the token's gauge.
func (d *Delegator) DepositToken(caller, lpToken, owner common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return d.state.Atomic(func() error {
		if err := d.requireManager(caller); err != nil {
			return err
		}
		g, err := d.gaugeFor(lpToken)
		if err != nil {
			return err
		}
		if err := d.bank.TransferFrom(lpToken, d.address, owner, d.address, amount); err != nil {
			return err
		}
		if err := g.Deposit(d.address, amount); err != nil {
			return err
		}
		balance, err := d.TokenBalance(lpToken, owner)
		if err != nil {
			return err
		}
		if err := d.state.KVPut(balanceKey(lpToken, owner), balance.Add(balance, amount)); err != nil {
			return err
		}
		d.emitter.Emit(events.DelegatorDeposit{LPToken: lpToken, Owner: owner, Amount: nativecommon.CloneInt(amount)})
		return nil
	})
}

// WithdrawToken unstakes amount of owner's delegated lpToken and returns it.
// A max-uint256 amount withdraws the whole balance.
func (d *Delegator) WithdrawToken(caller, lpToken, owner common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	var withdrawn *big.Int
	err := d.state.Atomic(func() error {
		if err := d.requireManager(caller); err != nil {
			return err
		}
		g, err := d.gaugeFor(lpToken)
		if err != nil {
			return err
		}
		balance, err := d.TokenBalance(lpToken, owner)
		if err != nil {
			return err
		}
		withdrawn = amount
		if nativecommon.IsMaxUint256(amount) {
			withdrawn = new(big.Int).Set(balance)
		}
		if balance.Cmp(withdrawn) < 0 {
			return fmt.Errorf("%w: delegated %s, requested %s", errInsufficient, balance, withdrawn)
		}
		if withdrawn.Sign() == 0 {
			return nil
		}
		if err := d.state.KVPut(balanceKey(lpToken, owner), balance.Sub(balance, withdrawn)); err != nil {
			return err
		}
		if err := g.Withdraw(d.address, withdrawn); err != nil {
			return err
		}
		if err := d.bank.Transfer(lpToken, d.address, owner, withdrawn); err != nil {
			return err
		}
		d.emitter.Emit(events.DelegatorWithdraw{LPToken: lpToken, Owner: owner, Amount: nativecommon.CloneInt(withdrawn)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// ClaimGaugeTokens collects the extra rewards of lpToken's gauge to the
// delegator.
func (d *Delegator) ClaimGaugeTokens(lpToken common.Address) ([]gauge.Reward, error) {
	var rewards []gauge.Reward
	err := d.state.Atomic(func() error {
		g, err := d.gaugeFor(lpToken)
		if err != nil {
			return err
		}
		rewards, err = g.ClaimRewards(d.address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

// ClaimPrimary collects the primary reward of lpToken's gauge to the
// delegator.
func (d *Delegator) ClaimPrimary(lpToken common.Address) (*big.Int, error) {
	var minted *big.Int
	err := d.state.Atomic(func() error {
		g, err := d.gaugeFor(lpToken)
		if err != nil {
			return err
		}
		minted, err = g.MintPrimary(d.address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}
