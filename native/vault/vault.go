package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/gauge"
)

const moduleName = "vault"

// State is the journaled store vault ledgers live in.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
}

// Bank moves pool tokens between holders and the vault.
type Bank interface {
	BalanceOf(token, account common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// Pool is the two-token pool whose tokens the vault holds.
type Pool interface {
	Address() common.Address
	Tokens() ([2]common.Address, error)
	Reserves() ([2]common.Address, [2]*big.Int, error)
	Join(sender, recipient common.Address, amountsIn [2]*big.Int, minPoolTokensOut *big.Int) (*big.Int, error)
}

// Gauges resolves the gauge the vault stakes into.
type Gauges interface {
	Gauge(addr common.Address) *gauge.Gauge
}

var (
	errNotInitialised = errors.New("vault: not initialised")
	errAlreadyInit    = errors.New("vault: already initialised")
	errInvalidAmount  = errors.New("vault: amount must be positive")
	errInvalidParam   = errors.New("vault: invalid parameter")
	errInsufficient   = errors.New("vault: insufficient shares")
	errNoBacking      = errors.New("vault: shares outstanding without pool tokens")
	errUnknownVault   = errors.New("vault: unknown vault")
)

var basisPoints = big.NewInt(10_000)

// Config describes a strategy vault. Reinvestor is the only account allowed
// to harvest rewards and add reinvested pool tokens; FeeBps of every
// reinvestment accrues to FeeReceiver as shares.
type Config struct {
	Address     common.Address
	Owner       common.Address
	Gauge       common.Address
	Reinvestor  common.Address
	FeeReceiver common.Address
	FeeBps      uint32
}

// Params is the stored vault configuration.
type Params struct {
	Owner       common.Address
	Gauge       common.Address
	Reinvestor  common.Address
	FeeReceiver common.Address
	FeeBps      uint32
}

// Vault issues strategy shares over pool tokens staked in a gauge.
type Vault struct {
	address common.Address
	state   State
	bank    Bank
	pool    Pool
	gauges  Gauges
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// New binds a vault handle to its collaborators.
func New(address common.Address, state State, b Bank, pool Pool, gauges Gauges) *Vault {
	return &Vault{
		address: address,
		state:   state,
		bank:    b,
		pool:    pool,
		gauges:  gauges,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event sink.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

func (v *Vault) SetPauses(p nativecommon.PauseView) { v.pauses = p }

// Address returns the vault account.
func (v *Vault) Address() common.Address { return v.address }

// Pool returns the pool whose tokens back the shares.
func (v *Vault) Pool() Pool { return v.pool }

// Initialize stores the configuration. The gauge must stake the vault's pool
// token.
func (v *Vault) Initialize(cfg Config) error {
	if cfg.Address != v.address {
		return fmt.Errorf("%w: config address %s does not match vault %s", errInvalidParam, cfg.Address.Hex(), v.address.Hex())
	}
	if nativecommon.IsZeroAddress(cfg.Owner) || nativecommon.IsZeroAddress(cfg.Gauge) {
		return fmt.Errorf("%w: owner and gauge required", errInvalidParam)
	}
	if cfg.FeeBps > 10_000 {
		return fmt.Errorf("%w: fee above 100%%", errInvalidParam)
	}
	return v.state.Atomic(func() error {
		if ok, err := v.state.KVGet(configKey(v.address), nil); err != nil {
			return err
		} else if ok {
			return errAlreadyInit
		}
		lp, err := v.gauges.Gauge(cfg.Gauge).LPToken()
		if err != nil {
			return err
		}
		if lp != v.pool.Address() {
			return fmt.Errorf("%w: gauge %s stakes %s", errInvalidParam, cfg.Gauge.Hex(), lp.Hex())
		}
		params := Params{
			Owner:       cfg.Owner,
			Gauge:       cfg.Gauge,
			Reinvestor:  cfg.Reinvestor,
			FeeReceiver: cfg.FeeReceiver,
			FeeBps:      cfg.FeeBps,
		}
		return v.state.KVPut(configKey(v.address), &params)
	})
}

// Params returns the stored configuration.
func (v *Vault) Params() (Params, error) {
	var params Params
	ok, err := v.state.KVGet(configKey(v.address), &params)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return Params{}, errNotInitialised
	}
	return params, nil
}

func (v *Vault) loadInt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	if _, err := v.state.KVGet(key, value); err != nil {
		return nil, err
	}
	return value, nil
}

// TotalSupply returns the outstanding shares.
func (v *Vault) TotalSupply() (*big.Int, error) { return v.loadInt(supplyKey(v.address)) }

// BalanceOf returns the shares held by account.
func (v *Vault) BalanceOf(account common.Address) (*big.Int, error) {
	return v.loadInt(sharesKey(v.address, account))
}

// TotalPoolTokens returns the pool tokens staked by the vault.
func (v *Vault) TotalPoolTokens() (*big.Int, error) {
	params, err := v.Params()
	if err != nil {
		return nil, err
	}
	return v.gauges.Gauge(params.Gauge).BalanceOf(v.address)
}

// PoolTokensOf converts shares into the pool tokens they claim.
func (v *Vault) PoolTokensOf(shares *big.Int) (*big.Int, error) {
	supply, err := v.TotalSupply()
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	total, err := v.TotalPoolTokens()
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(shares, total, supply), nil
}

func (v *Vault) mint(to common.Address, shares *big.Int) error {
	supply, err := v.TotalSupply()
	if err != nil {
		return err
	}
	balance, err := v.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := v.state.KVPut(supplyKey(v.address), supply.Add(supply, shares)); err != nil {
		return err
	}
	return v.state.KVPut(sharesKey(v.address, to), balance.Add(balance, shares))
}

// Deposit stakes poolTokens from caller and mints shares: one per pool token
// for the first deposit, pro rata afterwards.
func (v *Vault) Deposit(caller common.Address, poolTokens *big.Int) (*big.Int, error) {
	if poolTokens == nil || poolTokens.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	var shares *big.Int
	err := v.state.Atomic(func() error {
		if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
			return err
		}
		params, err := v.Params()
		if err != nil {
			return err
		}
		supply, err := v.TotalSupply()
		if err != nil {
			return err
		}
		total, err := v.TotalPoolTokens()
		if err != nil {
			return err
		}
		switch {
		case supply.Sign() == 0:
			shares = new(big.Int).Set(poolTokens)
		case total.Sign() == 0:
			return errNoBacking
		default:
			shares = nativecommon.MulDiv(poolTokens, supply, total)
		}
		if shares.Sign() == 0 {
			return errInvalidAmount
		}
		if err := v.bank.Transfer(v.pool.Address(), caller, v.address, poolTokens); err != nil {
			return err
		}
		if err := v.gauges.Gauge(params.Gauge).Deposit(v.address, poolTokens); err != nil {
			return err
		}
		if err := v.mint(caller, shares); err != nil {
			return err
		}
		v.emitter.Emit(events.VaultDeposit{
			Vault:      v.address,
			Account:    caller,
			PoolTokens: nativecommon.CloneInt(poolTokens),
			Shares:     nativecommon.CloneInt(shares),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// Withdraw burns shares and returns the pool tokens they claim.
func (v *Vault) Withdraw(caller common.Address, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	var poolTokens *big.Int
	err := v.state.Atomic(func() error {
		if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
			return err
		}
		params, err := v.Params()
		if err != nil {
			return err
		}
		balance, err := v.BalanceOf(caller)
		if err != nil {
			return err
		}
		if balance.Cmp(shares) < 0 {
			return errInsufficient
		}
		poolTokens, err = v.PoolTokensOf(shares)
		if err != nil {
			return err
		}
		supply, err := v.TotalSupply()
		if err != nil {
			return err
		}
		if err := v.state.KVPut(supplyKey(v.address), supply.Sub(supply, shares)); err != nil {
			return err
		}
		if err := v.state.KVPut(sharesKey(v.address, caller), balance.Sub(balance, shares)); err != nil {
			return err
		}
		if poolTokens.Sign() > 0 {
			if err := v.gauges.Gauge(params.Gauge).Withdraw(v.address, poolTokens); err != nil {
				return err
			}
			if err := v.bank.Transfer(v.pool.Address(), v.address, caller, poolTokens); err != nil {
				return err
			}
		}
		v.emitter.Emit(events.VaultWithdraw{
			Vault:      v.address,
			Account:    caller,
			PoolTokens: nativecommon.CloneInt(poolTokens),
			Shares:     nativecommon.CloneInt(shares),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return poolTokens, nil
}

// ClaimRewardTokens harvests every reward accrued by the vault's stake and
// pays it to the reinvestor.
func (v *Vault) ClaimRewardTokens(caller common.Address) ([]gauge.Reward, error) {
	var rewards []gauge.Reward
	err := v.state.Atomic(func() error {
		params, err := v.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireManager(moduleName, params.Reinvestor, caller); err != nil {
			return err
		}
		g := v.gauges.Gauge(params.Gauge)
		tokens, err := g.RewardTokens()
		if err != nil {
			return err
		}
		if len(tokens) > 0 {
			primary, err := g.MintPrimary(v.address)
			if err != nil {
				return err
			}
			if primary.Sign() > 0 {
				rewards = append(rewards, gauge.Reward{Token: tokens[0], Amount: primary})
			}
		}
		extras, err := g.ClaimRewards(v.address)
		if err != nil {
			return err
		}
		rewards = append(rewards, extras...)
		for _, r := range rewards {
			if err := v.bank.Transfer(r.Token, v.address, caller, r.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

// AddPoolTokens stakes reinvested pool tokens supplied by the reinvestor. No
// shares are minted to the caller, so every holder's claim grows; the fee
// receiver is minted shares worth FeeBps of the added amount.
func (v *Vault) AddPoolTokens(caller common.Address, poolTokens *big.Int) (*big.Int, error) {
	if poolTokens == nil || poolTokens.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	feeShares := big.NewInt(0)
	err := v.state.Atomic(func() error {
		params, err := v.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireManager(moduleName, params.Reinvestor, caller); err != nil {
			return err
		}
		supply, err := v.TotalSupply()
		if err != nil {
			return err
		}
		total, err := v.TotalPoolTokens()
		if err != nil {
			return err
		}
		if err := v.bank.Transfer(v.pool.Address(), caller, v.address, poolTokens); err != nil {
			return err
		}
		if err := v.gauges.Gauge(params.Gauge).Deposit(v.address, poolTokens); err != nil {
			return err
		}
		feeValue := nativecommon.MulDiv(poolTokens, big.NewInt(int64(params.FeeBps)), basisPoints)
		if feeValue.Sign() > 0 && supply.Sign() > 0 && !nativecommon.IsZeroAddress(params.FeeReceiver) {
			// feeShares / (supply + feeShares) == feeValue / totalAfter
			remainder := new(big.Int).Add(total, poolTokens)
			remainder.Sub(remainder, feeValue)
			feeShares = nativecommon.MulDiv(feeValue, supply, remainder)
			if err := v.mint(params.FeeReceiver, feeShares); err != nil {
				return err
			}
		}
		v.emitter.Emit(events.VaultReinvested{
			Vault:       v.address,
			Reinvestor:  caller,
			PoolTokens:  nativecommon.CloneInt(poolTokens),
			FeeShares:   nativecommon.CloneInt(feeShares),
			FeeReceiver: params.FeeReceiver,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return feeShares, nil
}

// SetReinvestor changes the account allowed to harvest and reinvest.
func (v *Vault) SetReinvestor(caller, reinvestor common.Address) error {
	return v.state.Atomic(func() error {
		params, err := v.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		params.Reinvestor = reinvestor
		return v.state.KVPut(configKey(v.address), &params)
	})
}

// SetFee changes the reinvestment fee and its receiver.
func (v *Vault) SetFee(caller, receiver common.Address, feeBps uint32) error {
	if feeBps > 10_000 {
		return fmt.Errorf("%w: fee above 100%%", errInvalidParam)
	}
	return v.state.Atomic(func() error {
		params, err := v.Params()
		if err != nil {
			return err
		}
		if err := nativecommon.RequireOwner(moduleName, params.Owner, caller); err != nil {
			return err
		}
		params.FeeReceiver = receiver
		params.FeeBps = feeBps
		return v.state.KVPut(configKey(v.address), &params)
	})
}

// Registry resolves vaults by address.
type Registry struct {
	mu     sync.RWMutex
	vaults map[common.Address]*Vault
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{vaults: make(map[common.Address]*Vault)}
}

// Register adds v, replacing any vault at the same address.
func (r *Registry) Register(v *Vault) {
	r.mu.Lock()
	r.vaults[v.Address()] = v
	r.mu.Unlock()
}

// Vault returns the vault at addr.
func (r *Registry) Vault(addr common.Address) (*Vault, error) {
	r.mu.RLock()
	v, ok := r.vaults[addr]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownVault, addr.Hex())
	}
	return v, nil
}
