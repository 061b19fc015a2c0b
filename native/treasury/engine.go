package treasury

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	"stakingcore/native/bank"
	"stakingcore/native/balancer"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/exchange"
	"stakingcore/native/gauge"
	"stakingcore/native/oracle"
	"stakingcore/native/staking"
	"stakingcore/native/vault"
)

const moduleName = "treasury"

const defaultPriceWindow = time.Hour

var (
	errNotInitialised     = errors.New("treasury: not initialised")
	errAlreadyInit        = errors.New("treasury: already initialised")
	errInvalidParam       = errors.New("treasury: invalid parameter")
	errInvalidAmount      = errors.New("treasury: amount must be positive")
	errInvalidSignature   = errors.New("treasury: order not signed by manager")
	errInvalidOrder       = errors.New("treasury: order rejected")
	errPurchaseLimitUnset = errors.New("treasury: NOTE purchase limit not defined")
	errNoReward           = errors.New("treasury: vault paid no reward in token")
)

var basisPoints = big.NewInt(10_000)

// State is the journaled store the engine runs against.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
}

// Bank reads token metadata and grants venue allowances.
type Bank interface {
	Token(addr common.Address) (*bank.Token, error)
	BalanceOf(token, account common.Address) (*big.Int, error)
	Approve(token, owner, spender common.Address, amount *big.Int) error
}

// Oracles resolves the named price oracles configured per token.
type Oracles interface {
	Resolve(name string) (oracle.PriceOracle, error)
}

// Venue is the signed-order venue treasury orders are filled on.
type Venue interface {
	Address() common.Address
	CancelOrder(caller common.Address, order exchange.Order) error
}

// Trader executes DEX-routed trades.
type Trader interface {
	ExecuteTrade(from common.Address, dex exchange.DexID, trade exchange.Trade) (*big.Int, *big.Int, error)
	Simulate(from common.Address, dex exchange.DexID, trade exchange.Trade) (*big.Int, *big.Int, error)
}

// Pool is the NOTE/WETH pool backing the staking core.
type Pool interface {
	Address() common.Address
	Tokens() ([2]common.Address, error)
	Weights() ([2]*big.Int, error)
	Swap(req balancer.SwapRequest) (*big.Int, *big.Int, error)
	Join(sender, recipient common.Address, amountsIn [2]*big.Int, minPoolTokensOut *big.Int) (*big.Int, error)
	TimeWeightedAverage(base common.Address, window time.Duration) (*big.Rat, error)
}

// StakingCore is the receipt ledger investments are donated to.
type StakingCore interface {
	Address() common.Address
	Params() (staking.Params, error)
}

// Gauges resolves reward gauges by address.
type Gauges interface {
	Gauge(addr common.Address) *gauge.Gauge
}

// Vaults resolves reinvestment targets by address.
type Vaults interface {
	Vault(addr common.Address) (*vault.Vault, error)
}

// Deps groups the collaborators an engine trades and invests through.
type Deps struct {
	Oracles Oracles
	Venue   Venue
	Trader  Trader
	Pool    Pool
	Core    StakingCore
	Gauges  Gauges
	Vaults  Vaults
}

// Engine is the treasury trade engine: it validates manager-signed orders
// against oracle corridors, routes permissioned trades and reinvests rewards.
type Engine struct {
	address common.Address
	note    common.Address
	weth    common.Address
	state   State
	bank    Bank
	deps    Deps
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine constructs an engine. Initialize must run once before use.
func NewEngine(cfg Config, state State, b Bank, deps Deps) *Engine {
	return &Engine{
		address: cfg.Address,
		note:    cfg.NOTE,
		weth:    cfg.WETH,
		state:   state,
		bank:    b,
		deps:    deps,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Address returns the treasury account.
func (e *Engine) Address() common.Address { return e.address }

// Initialize persists the roles and the price window.
func (e *Engine) Initialize(cfg Config) error {
	if cfg.Address != e.address {
		return fmt.Errorf("%w: config address does not match engine", errInvalidParam)
	}
	if nativecommon.IsZeroAddress(cfg.Owner) {
		return fmt.Errorf("%w: owner required", errInvalidParam)
	}
	window := cfg.PriceWindow
	if window <= 0 {
		window = defaultPriceWindow
	}
	return e.state.Atomic(func() error {
		if ok, err := e.state.KVGet(paramsKey, nil); err != nil {
			return err
		} else if ok {
			return errAlreadyInit
		}
		return e.state.KVPut(paramsKey, &Params{
			Owner:           cfg.Owner,
			Manager:         cfg.Manager,
			PriceWindowSecs: uint64(window / time.Second),
		})
	})
}

// Params returns the stored configuration.
func (e *Engine) Params() (Params, error) {
	var params Params
	ok, err := e.state.KVGet(paramsKey, &params)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return Params{}, errNotInitialised
	}
	return params, nil
}

func (e *Engine) requireOwner(caller common.Address) (Params, error) {
	params, err := e.Params()
	if err != nil {
		return Params{}, err
	}
	return params, nativecommon.RequireOwner(moduleName, params.Owner, caller)
}

func (e *Engine) requireManager(caller common.Address) (Params, error) {
	params, err := e.Params()
	if err != nil {
		return Params{}, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return Params{}, err
	}
	return params, nativecommon.RequireManager(moduleName, params.Manager, caller)
}

// ownerUpdate runs an owner-only mutation and records it as a parameter
// update keyed by key.
func (e *Engine) ownerUpdate(caller common.Address, name string, key common.Address, fn func(*Params) (string, error)) error {
	return e.state.Atomic(func() error {
		params, err := e.requireOwner(caller)
		if err != nil {
			return err
		}
		value, err := fn(&params)
		if err != nil {
			return err
		}
		if err := e.state.KVPut(paramsKey, &params); err != nil {
			return err
		}
		e.emitter.Emit(events.TreasuryParamUpdated{Param: name, Key: key, Value: value})
		return nil
	})
}

// SetManager replaces the account allowed to sign orders and trade.
func (e *Engine) SetManager(caller, manager common.Address) error {
	return e.ownerUpdate(caller, "manager", common.Address{}, func(p *Params) (string, error) {
		p.Manager = manager
		return manager.Hex(), nil
	})
}

// TransferOwnership hands the owner role to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	if nativecommon.IsZeroAddress(newOwner) {
		return fmt.Errorf("%w: zero owner", errInvalidParam)
	}
	return e.ownerUpdate(caller, "owner", common.Address{}, func(p *Params) (string, error) {
		p.Owner = newOwner
		return newOwner.Hex(), nil
	})
}

// SetPriceOracle names the oracle pricing token in WETH.
func (e *Engine) SetPriceOracle(caller, token common.Address, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: oracle name required", errInvalidParam)
	}
	return e.ownerUpdate(caller, "priceOracle", token, func(*Params) (string, error) {
		if token == e.weth {
			return "", fmt.Errorf("%w: WETH is the numeraire", errInvalidParam)
		}
		if _, err := e.deps.Oracles.Resolve(name); err != nil {
			return "", fmt.Errorf("%w: %v", errInvalidParam, err)
		}
		return name, e.state.KVPut(oracleKey(token), name)
	})
}

// SetSlippageLimit sets the share of oracle value, in basis points, a sale of
// token may give up.
func (e *Engine) SetSlippageLimit(caller, token common.Address, bps uint32) error {
	if bps > 10_000 {
		return fmt.Errorf("%w: slippage above 100%%", errInvalidParam)
	}
	return e.ownerUpdate(caller, "slippageLimit", token, func(*Params) (string, error) {
		return strconv.FormatUint(uint64(bps), 10), e.state.KVPut(slippageKey(token), uint64(bps))
	})
}

// SetNOTEPurchaseLimit bounds the premium over the pool TWAP an investment
// may pay for NOTE.
func (e *Engine) SetNOTEPurchaseLimit(caller common.Address, bps uint32) error {
	if bps > 10_000 {
		return fmt.Errorf("%w: purchase limit above 100%%", errInvalidParam)
	}
	return e.ownerUpdate(caller, "notePurchaseLimit", common.Address{}, func(p *Params) (string, error) {
		p.NOTEPurchaseLimitSet = true
		p.NOTEPurchaseLimitBps = bps
		return strconv.FormatUint(uint64(bps), 10), nil
	})
}

// SetTradingPermissions stores the DEX-routed trade permission for selling
// token on behalf of target.
func (e *Engine) SetTradingPermissions(caller, target, token common.Address, perm Permission) error {
	return e.ownerUpdate(caller, "tradingPermission", token, func(*Params) (string, error) {
		rec := perm.record()
		value := fmt.Sprintf("%s allowed=%t dexes=%d tradeTypes=%d", target.Hex(), rec.Allowed, len(rec.Dexes), len(rec.TradeTypes))
		return value, e.state.KVPut(permissionKey(target, token), &rec)
	})
}

// TradingPermission returns the stored permission; an unset record denies
// every trade.
func (e *Engine) TradingPermission(target, token common.Address) (Permission, error) {
	var rec permissionRecord
	if _, err := e.state.KVGet(permissionKey(target, token), &rec); err != nil {
		return Permission{}, err
	}
	return rec.permission(), nil
}

// PriceOracle returns the oracle name configured for token.
func (e *Engine) PriceOracle(token common.Address) (string, bool, error) {
	var name string
	ok, err := e.state.KVGet(oracleKey(token), &name)
	return name, ok, err
}

// SlippageLimit returns the slippage limit configured for token.
func (e *Engine) SlippageLimit(token common.Address) (uint32, bool, error) {
	var bps uint64
	ok, err := e.state.KVGet(slippageKey(token), &bps)
	return uint32(bps), ok, err
}

// ApproveToken grants the order venue an allowance over treasury-held token.
func (e *Engine) ApproveToken(caller, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	return e.state.Atomic(func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		return e.bank.Approve(token, e.address, e.deps.Venue.Address(), amount)
	})
}
