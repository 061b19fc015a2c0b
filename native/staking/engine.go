package staking

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/gauge"
)

const moduleName = "staking"

// ImplementationVersion is the ledger schema written by Initialize. Every
// gauge migration bumps the stored version by one.
const ImplementationVersion uint32 = 1

var (
	errNotInitialised    = errors.New("staking: engine not initialised")
	errAlreadyInit       = errors.New("staking: engine already initialised")
	errInvalidAmount     = errors.New("staking: amount must be positive")
	errInsufficientFunds = errors.New("staking: insufficient receipt balance")
	errInsufficientAllow = errors.New("staking: insufficient allowance")
	errNoCoolDown        = errors.New("staking: no cooldown in progress")
	errNoBacking         = errors.New("staking: receipts outstanding without pool tokens")
	errInvalidParam      = errors.New("staking: invalid parameter")
	errGaugeMismatch     = errors.New("staking: gauge does not stake the pool token")
	errFutureLookup      = errors.New("staking: votes not yet determined")
)

var basisPoints = big.NewInt(10_000)

// State is the journaled store the engine runs against. Atomic must revert
// every write made by fn when fn fails.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
	ModuleVersion(module string) (uint32, bool, error)
	SetModuleVersion(module string, version uint32) error
}

// Bank moves the reserve assets and pool tokens held by the engine.
type Bank interface {
	BalanceOf(token, account common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	Wrap(account common.Address, amount *big.Int) error
	Unwrap(account common.Address, amount *big.Int) error
}

// Pool is the two-token liquidity pool backing the receipts.
type Pool interface {
	Address() common.Address
	Tokens() ([2]common.Address, error)
	TotalSupply() (*big.Int, error)
	Join(sender, recipient common.Address, amountsIn [2]*big.Int, minPoolTokensOut *big.Int) (*big.Int, error)
	QueryExit(poolTokensIn *big.Int) ([2]*big.Int, error)
	Exit(sender, recipient common.Address, poolTokensIn *big.Int, minAmountsOut [2]*big.Int) ([2]*big.Int, error)
	SetSwapFeePercentage(caller common.Address, fee *big.Int) error
	TimeWeightedAverage(base common.Address, window time.Duration) (*big.Rat, error)
}

// Gauges resolves reward gauges by address.
type Gauges interface {
	Gauge(addr common.Address) *gauge.Gauge
}

// Engine is the staking accounting core: it converts between receipts and
// pool-token claims, runs the cooldown state machine and gates transfers.
type Engine struct {
	address common.Address
	note    common.Address
	weth    common.Address
	state   State
	bank    Bank
	pool    Pool
	gauges  Gauges
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() time.Time
}

// NewEngine constructs an engine bound to its collaborators. Initialize must
// run once before use.
func NewEngine(cfg Config, state State, b Bank, pool Pool, gauges Gauges) *Engine {
	return &Engine{
		address: cfg.Address,
		note:    cfg.NOTE,
		weth:    cfg.WETH,
		state:   state,
		bank:    b,
		pool:    pool,
		gauges:  gauges,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for cooldowns and checkpoints.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Address returns the engine's account.
func (e *Engine) Address() common.Address { return e.address }

func (e *Engine) now() uint64 { return uint64(e.nowFn().Unix()) }

// Initialize persists the initial parameters and the ledger version. It fails
// when the engine was already initialised.
func (e *Engine) Initialize(cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	return e.state.Atomic(func() error {
		if ok, err := e.state.KVGet(paramsKey, nil); err != nil {
			return err
		} else if ok {
			return errAlreadyInit
		}
		if err := e.checkGauge(cfg.Gauge); err != nil {
			return err
		}
		params := Params{
			Owner:                cfg.Owner,
			Treasury:             cfg.Treasury,
			Gauge:                cfg.Gauge,
			CoolDownSeconds:      uint64(cfg.CoolDown / time.Second),
			RedemptionWindowSecs: uint64(cfg.RedemptionWindow / time.Second),
			ShortfallCapBps:      cfg.ShortfallCapBps,
			ShortfallCoolDownSec: uint64(cfg.ShortfallCoolDown / time.Second),
			VotingOracleWindow:   uint64(cfg.VotingOracleWindow / time.Second),
			RedemptionPolicy:     cfg.RedemptionPolicy,
			ShortfallPolicy:      cfg.ShortfallPolicy,
		}
		if err := e.state.KVPut(paramsKey, &params); err != nil {
			return err
		}
		return e.state.SetModuleVersion(moduleName, ImplementationVersion)
	})
}

func validateConfig(cfg Config) error {
	switch {
	case nativecommon.IsZeroAddress(cfg.Address):
		return fmt.Errorf("%w: engine address required", errInvalidParam)
	case nativecommon.IsZeroAddress(cfg.Owner):
		return fmt.Errorf("%w: owner required", errInvalidParam)
	case nativecommon.IsZeroAddress(cfg.NOTE) || nativecommon.IsZeroAddress(cfg.WETH):
		return fmt.Errorf("%w: NOTE and WETH addresses required", errInvalidParam)
	case nativecommon.IsZeroAddress(cfg.Gauge):
		return fmt.Errorf("%w: gauge required", errInvalidParam)
	case cfg.CoolDown <= 0:
		return fmt.Errorf("%w: cooldown must be positive", errInvalidParam)
	case cfg.RedemptionWindow <= 0:
		return fmt.Errorf("%w: redemption window must be positive", errInvalidParam)
	case cfg.ShortfallCapBps > 10_000:
		return fmt.Errorf("%w: shortfall cap above 100%%", errInvalidParam)
	}
	return nil
}

func (e *Engine) checkGauge(addr common.Address) error {
	lp, err := e.gauges.Gauge(addr).LPToken()
	if err != nil {
		return err
	}
	if lp != e.pool.Address() {
		return fmt.Errorf("%w: %s stakes %s", errGaugeMismatch, addr.Hex(), lp.Hex())
	}
	return nil
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

func (e *Engine) putParams(params *Params) error {
	return e.state.KVPut(paramsKey, params)
}

func (e *Engine) gauge(params Params) *gauge.Gauge {
	return e.gauges.Gauge(params.Gauge)
}

func (e *Engine) loadInt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	if _, err := e.state.KVGet(key, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (e *Engine) loadAccount(addr common.Address) (*Account, error) {
	account := newAccount()
	if _, err := e.state.KVGet(accountKey(addr), account); err != nil {
		return nil, err
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	if account.MaxRedeemable == nil {
		account.MaxRedeemable = big.NewInt(0)
	}
	return account, nil
}

func (e *Engine) putAccount(addr common.Address, account *Account) error {
	return e.state.KVPut(accountKey(addr), account)
}

// TotalSupply returns the outstanding receipt supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	return e.loadInt(supplyKey)
}

// BalanceOf returns the receipt balance of account.
func (e *Engine) BalanceOf(account common.Address) (*big.Int, error) {
	acct, err := e.loadAccount(account)
	if err != nil {
		return nil, err
	}
	return acct.Balance, nil
}

// TotalPoolTokens returns the pool tokens held directly by the engine plus
// those staked in the current gauge.
func (e *Engine) TotalPoolTokens() (*big.Int, error) {
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	return e.totalPoolTokens(params)
}

func (e *Engine) totalPoolTokens(params Params) (*big.Int, error) {
	held, err := e.bank.BalanceOf(e.pool.Address(), e.address)
	if err != nil {
		return nil, err
	}
	staked, err := e.gauge(params).BalanceOf(e.address)
	if err != nil {
		return nil, err
	}
	return held.Add(held, staked), nil
}

// poolShare converts a receipt amount into pool tokens, rounding down.
func (e *Engine) poolShare(params Params, receipts *big.Int) (*big.Int, error) {
	supply, err := e.TotalSupply()
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return big.NewInt(0), nil
	}
	total, err := e.totalPoolTokens(params)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(receipts, total, supply), nil
}

// PoolTokenShareOf returns the pool tokens claimable by account's receipts.
func (e *Engine) PoolTokenShareOf(account common.Address) (*big.Int, error) {
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	balance, err := e.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	return e.poolShare(params, balance)
}

// GetTokenClaim projects the reserve assets a pool exit would return for
// receipts. It does not mutate state.
func (e *Engine) GetTokenClaim(receipts *big.Int) (TokenClaim, error) {
	if receipts == nil || receipts.Sign() < 0 {
		return TokenClaim{}, errInvalidAmount
	}
	params, err := e.Params()
	if err != nil {
		return TokenClaim{}, err
	}
	share, err := e.poolShare(params, receipts)
	if err != nil {
		return TokenClaim{}, err
	}
	amounts, err := e.pool.QueryExit(share)
	if err != nil {
		return TokenClaim{}, err
	}
	noteOut, wethOut, err := e.split(amounts)
	if err != nil {
		return TokenClaim{}, err
	}
	return TokenClaim{PoolTokens: share, NOTE: noteOut, WETH: wethOut}, nil
}

// split maps pool-ordered amounts to (NOTE, WETH).
func (e *Engine) split(amounts [2]*big.Int) (*big.Int, *big.Int, error) {
	tokens, err := e.pool.Tokens()
	if err != nil {
		return nil, nil, err
	}
	if tokens[0] == e.note && tokens[1] == e.weth {
		return amounts[0], amounts[1], nil
	}
	if tokens[0] == e.weth && tokens[1] == e.note {
		return amounts[1], amounts[0], nil
	}
	return nil, nil, fmt.Errorf("staking: pool %s does not pair NOTE/WETH", e.pool.Address().Hex())
}

// order maps (NOTE, WETH) amounts to pool order.
func (e *Engine) order(noteAmount, wethAmount *big.Int) ([2]*big.Int, error) {
	tokens, err := e.pool.Tokens()
	if err != nil {
		return [2]*big.Int{}, err
	}
	if tokens[0] == e.note {
		return [2]*big.Int{noteAmount, wethAmount}, nil
	}
	return [2]*big.Int{wethAmount, noteAmount}, nil
}

func coolDownState(params Params, account *Account, now uint64) CoolDownState {
	if account.CoolDownStart == 0 {
		return StateActive
	}
	opens := account.CoolDownStart + params.CoolDownSeconds
	closes := opens + params.RedemptionWindowSecs
	switch {
	case now < opens:
		return StateCoolingDown
	case now < closes:
		return StateRedemptionWindow
	default:
		return StateWindowExpired
	}
}

// Account returns the ledger entry of addr with its derived cooldown state.
func (e *Engine) Account(addr common.Address) (AccountView, error) {
	params, err := e.Params()
	if err != nil {
		return AccountView{}, err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return AccountView{}, err
	}
	share, err := e.poolShare(params, account.Balance)
	if err != nil {
		return AccountView{}, err
	}
	votes, err := e.GetVotes(addr)
	if err != nil {
		return AccountView{}, err
	}
	view := AccountView{
		Address:        addr,
		Balance:        account.Balance,
		PoolTokenShare: share,
		State:          coolDownState(params, account, e.now()),
		CoolDownStart:  account.CoolDownStart,
		MaxRedeemable:  account.MaxRedeemable,
		Delegate:       account.Delegate,
		Votes:          votes,
	}
	if account.CoolDownStart != 0 {
		view.WindowOpens = account.CoolDownStart + params.CoolDownSeconds
		view.WindowCloses = view.WindowOpens + params.RedemptionWindowSecs
	}
	return view, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := nativecommon.CheckU256(amount); err != nil {
		return fmt.Errorf("%w: %v", errInvalidAmount, err)
	}
	return nil
}
