package gauge

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	nativecommon "stakingcore/native/common"
)

// State is the subset of the state manager used by gauges.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Bank moves staked pool tokens and reward tokens. Staked tokens and undistributed
// rewards are held at the gauge address.
type Bank interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
}

var (
	errUnknownGauge      = errors.New("gauge: unknown gauge")
	errGaugeExists       = errors.New("gauge: already registered")
	errInvalidAmount     = errors.New("gauge: invalid amount")
	errInsufficientStake = errors.New("gauge: withdraw exceeds stake")
	errUnknownReward     = errors.New("gauge: reward token not registered")
	errInvalidDuration   = errors.New("gauge: reward duration must be positive")
)

var precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Config registers a gauge staking LPToken. PrimaryReward is paid through
// MintPrimary; ExtraRewards through ClaimRewards.
type Config struct {
	Address       common.Address
	LPToken       common.Address
	PrimaryReward common.Address
	ExtraRewards  []common.Address
}

type rewardState struct {
	Token          common.Address
	Rate           *big.Int
	PeriodFinish   uint64
	LastUpdate     uint64
	PerTokenStored *big.Int
}

type gaugeRecord struct {
	LPToken common.Address
	Total   *big.Int
	Rewards []rewardState
}

type userReward struct {
	Paid    *big.Int
	Accrued *big.Int
}

// Reward is an amount of a reward token paid out by a claim.
type Reward struct {
	Token  common.Address
	Amount *big.Int
}

// Registry owns every gauge's accounting.
type Registry struct {
	state   State
	bank    Bank
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewRegistry constructs a registry bound to the state and token ledger.
func NewRegistry(state State, b Bank) *Registry {
	return &Registry{state: state, bank: b, emitter: events.NoopEmitter{}, nowFn: time.Now}
}

// SetEmitter configures the event sink.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the accrual clock.
func (r *Registry) SetNowFunc(now func() time.Time) {
	if now != nil {
		r.nowFn = now
	}
}

// Create registers a gauge.
func (r *Registry) Create(cfg Config) error {
	if ok, err := r.state.KVGet(gaugeKey(cfg.Address), nil); err != nil {
		return err
	} else if ok {
		return errGaugeExists
	}
	record := gaugeRecord{LPToken: cfg.LPToken, Total: big.NewInt(0)}
	tokens := append([]common.Address{cfg.PrimaryReward}, cfg.ExtraRewards...)
	for _, token := range tokens {
		record.Rewards = append(record.Rewards, rewardState{Token: token, Rate: big.NewInt(0), PerTokenStored: big.NewInt(0)})
	}
	return r.state.KVPut(gaugeKey(cfg.Address), &record)
}

// Gauge returns a handle for the gauge at addr.
func (r *Registry) Gauge(addr common.Address) *Gauge {
	return &Gauge{registry: r, address: addr}
}

// Gauge is a handle to a single registered gauge.
type Gauge struct {
	registry *Registry
	address  common.Address
}

// Address returns the gauge address.
func (g *Gauge) Address() common.Address { return g.address }

func (g *Gauge) load() (*gaugeRecord, error) {
	var record gaugeRecord
	ok, err := g.registry.state.KVGet(gaugeKey(g.address), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownGauge, g.address.Hex())
	}
	return &record, nil
}

func (g *Gauge) save(record *gaugeRecord) error {
	return g.registry.state.KVPut(gaugeKey(g.address), record)
}

func (g *Gauge) now() uint64 { return uint64(g.registry.nowFn().Unix()) }

// LPToken returns the staked pool token.
func (g *Gauge) LPToken() (common.Address, error) {
	record, err := g.load()
	if err != nil {
		return common.Address{}, err
	}
	return record.LPToken, nil
}

// BalanceOf returns the pool tokens staked for account.
func (g *Gauge) BalanceOf(account common.Address) (*big.Int, error) {
	value := new(big.Int)
	if _, err := g.registry.state.KVGet(stakeKey(g.address, account), value); err != nil {
		return nil, err
	}
	return value, nil
}

// TotalStaked returns the pool tokens staked across all accounts.
func (g *Gauge) TotalStaked() (*big.Int, error) {
	record, err := g.load()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.Total), nil
}

func rewardPerToken(rs *rewardState, total *big.Int, now uint64) *big.Int {
	out := new(big.Int).Set(rs.PerTokenStored)
	if total.Sign() == 0 {
		return out
	}
	applicable := now
	if rs.PeriodFinish < applicable {
		applicable = rs.PeriodFinish
	}
	if applicable <= rs.LastUpdate {
		return out
	}
	delta := new(big.Int).Mul(rs.Rate, new(big.Int).SetUint64(applicable-rs.LastUpdate))
	delta.Mul(delta, precision)
	delta.Quo(delta, total)
	return out.Add(out, delta)
}

func (g *Gauge) loadUser(account, token common.Address) (*userReward, error) {
	var ur userReward
	ok, err := g.registry.state.KVGet(userRewardKey(g.address, account, token), &ur)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &userReward{Paid: big.NewInt(0), Accrued: big.NewInt(0)}, nil
	}
	return &ur, nil
}

func earned(stake *big.Int, perToken *big.Int, ur *userReward) *big.Int {
	pending := new(big.Int).Sub(perToken, ur.Paid)
	pending.Mul(pending, stake)
	pending.Quo(pending, precision)
	return pending.Add(pending, ur.Accrued)
}

// checkpoint settles accrued rewards for account (when non-zero) before its
// stake changes.
func (g *Gauge) checkpoint(record *gaugeRecord, account common.Address) error {
	now := g.now()
	var stake *big.Int
	if account != (common.Address{}) {
		var err error
		if stake, err = g.BalanceOf(account); err != nil {
			return err
		}
	}
	for i := range record.Rewards {
		rs := &record.Rewards[i]
		rs.PerTokenStored = rewardPerToken(rs, record.Total, now)
		if now < rs.PeriodFinish {
			rs.LastUpdate = now
		} else {
			rs.LastUpdate = rs.PeriodFinish
		}
		if stake == nil {
			continue
		}
		ur, err := g.loadUser(account, rs.Token)
		if err != nil {
			return err
		}
		ur.Accrued = earned(stake, rs.PerTokenStored, ur)
		ur.Paid = new(big.Int).Set(rs.PerTokenStored)
		if err := g.registry.state.KVPut(userRewardKey(g.address, account, rs.Token), ur); err != nil {
			return err
		}
	}
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 || nativecommon.CheckU256(amount) != nil {
		return errInvalidAmount
	}
	return nil
}

// Deposit stakes the caller's own pool tokens.
func (g *Gauge) Deposit(account common.Address, amount *big.Int) error {
	return g.DepositFor(account, account, amount)
}

// DepositFor stakes pool tokens taken from payer on behalf of account.
func (g *Gauge) DepositFor(payer, account common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	record, err := g.load()
	if err != nil {
		return err
	}
	if err := g.checkpoint(record, account); err != nil {
		return err
	}
	if err := g.registry.bank.Transfer(record.LPToken, payer, g.address, amount); err != nil {
		return err
	}
	stake, err := g.BalanceOf(account)
	if err != nil {
		return err
	}
	stake.Add(stake, amount)
	if err := g.registry.state.KVPut(stakeKey(g.address, account), stake); err != nil {
		return err
	}
	record.Total.Add(record.Total, amount)
	if err := g.save(record); err != nil {
		return err
	}
	g.registry.emitter.Emit(events.GaugeDeposit{Gauge: g.address, Account: account, Payer: payer, Amount: new(big.Int).Set(amount)})
	return nil
}

// Withdraw unstakes amount for account and returns the pool tokens to it.
func (g *Gauge) Withdraw(account common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	record, err := g.load()
	if err != nil {
		return err
	}
	if err := g.checkpoint(record, account); err != nil {
		return err
	}
	stake, err := g.BalanceOf(account)
	if err != nil {
		return err
	}
	if stake.Cmp(amount) < 0 {
		return fmt.Errorf("%w: staked %s, requested %s", errInsufficientStake, stake, amount)
	}
	stake.Sub(stake, amount)
	if err := g.registry.state.KVPut(stakeKey(g.address, account), stake); err != nil {
		return err
	}
	record.Total.Sub(record.Total, amount)
	if err := g.save(record); err != nil {
		return err
	}
	if err := g.registry.bank.Transfer(record.LPToken, g.address, account, amount); err != nil {
		return err
	}
	g.registry.emitter.Emit(events.GaugeWithdraw{Gauge: g.address, Account: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// NotifyReward funds token rewards streamed linearly over duration. Any
// undistributed remainder of the current period rolls into the new rate.
func (g *Gauge) NotifyReward(funder, token common.Address, amount *big.Int, duration time.Duration) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	secs := uint64(duration / time.Second)
	if secs == 0 {
		return errInvalidDuration
	}
	record, err := g.load()
	if err != nil {
		return err
	}
	if err := g.checkpoint(record, common.Address{}); err != nil {
		return err
	}
	var rs *rewardState
	for i := range record.Rewards {
		if record.Rewards[i].Token == token {
			rs = &record.Rewards[i]
		}
	}
	if rs == nil {
		return fmt.Errorf("%w: %s", errUnknownReward, token.Hex())
	}
	if err := g.registry.bank.Transfer(token, funder, g.address, amount); err != nil {
		return err
	}
	now := g.now()
	total := new(big.Int).Set(amount)
	if now < rs.PeriodFinish {
		leftover := new(big.Int).Mul(rs.Rate, new(big.Int).SetUint64(rs.PeriodFinish-now))
		total.Add(total, leftover)
	}
	rs.Rate = total.Quo(total, new(big.Int).SetUint64(secs))
	rs.LastUpdate = now
	rs.PeriodFinish = now + secs
	if err := g.save(record); err != nil {
		return err
	}
	g.registry.emitter.Emit(events.GaugeRewardNotified{Gauge: g.address, Token: token, Amount: new(big.Int).Set(amount), Duration: secs})
	return nil
}

// Earned returns the rewards of token claimable by account right now.
func (g *Gauge) Earned(account, token common.Address) (*big.Int, error) {
	record, err := g.load()
	if err != nil {
		return nil, err
	}
	stake, err := g.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	for i := range record.Rewards {
		rs := &record.Rewards[i]
		if rs.Token != token {
			continue
		}
		ur, err := g.loadUser(account, token)
		if err != nil {
			return nil, err
		}
		return earned(stake, rewardPerToken(rs, record.Total, g.now()), ur), nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknownReward, token.Hex())
}

func (g *Gauge) pay(account common.Address, primary bool) ([]Reward, error) {
	record, err := g.load()
	if err != nil {
		return nil, err
	}
	if err := g.checkpoint(record, account); err != nil {
		return nil, err
	}
	if err := g.save(record); err != nil {
		return nil, err
	}
	var paid []Reward
	for i, rs := range record.Rewards {
		if (i == 0) != primary {
			continue
		}
		ur, err := g.loadUser(account, rs.Token)
		if err != nil {
			return nil, err
		}
		if ur.Accrued.Sign() == 0 {
			continue
		}
		amount := ur.Accrued
		ur.Accrued = big.NewInt(0)
		if err := g.registry.state.KVPut(userRewardKey(g.address, account, rs.Token), ur); err != nil {
			return nil, err
		}
		if err := g.registry.bank.Transfer(rs.Token, g.address, account, amount); err != nil {
			return nil, err
		}
		g.registry.emitter.Emit(events.GaugeRewardPaid{Gauge: g.address, Account: account, Token: rs.Token, Amount: new(big.Int).Set(amount)})
		paid = append(paid, Reward{Token: rs.Token, Amount: amount})
	}
	return paid, nil
}

// ClaimRewards pays every accrued extra reward token to account.
func (g *Gauge) ClaimRewards(account common.Address) ([]Reward, error) {
	return g.pay(account, false)
}

// MintPrimary pays the accrued primary reward token to account.
func (g *Gauge) MintPrimary(account common.Address) (*big.Int, error) {
	paid, err := g.pay(account, true)
	if err != nil {
		return nil, err
	}
	if len(paid) == 0 {
		return big.NewInt(0), nil
	}
	return paid[0].Amount, nil
}

// RewardTokens lists the primary reward token followed by extra rewards.
func (g *Gauge) RewardTokens() ([]common.Address, error) {
	record, err := g.load()
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(record.Rewards))
	for _, rs := range record.Rewards {
		out = append(out, rs.Token)
	}
	return out, nil
}
