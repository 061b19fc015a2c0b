package balancer

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	coreerrors "stakingcore/core/errors"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
)

// State is the subset of the state manager used by pools.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Bank is the token ledger the pool settles against. Pool tokens are a bank
// token whose address is the pool address; reserves are held at the same
// address.
type Bank interface {
	Token(addr common.Address) (*bank.Token, error)
	RegisterToken(tok bank.Token) error
	BalanceOf(token, account common.Address) (*big.Int, error)
	TotalSupply(token common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	Mint(token, to common.Address, amount *big.Int) error
	Burn(token, from common.Address, amount *big.Int) error
}

var (
	errNotInitialised   = errors.New("balancer: pool not initialised")
	errAlreadyCreated   = errors.New("balancer: pool already created")
	errInvalidWeights   = errors.New("balancer: weights must be positive and sum to 1e18")
	errInvalidSwapFee   = errors.New("balancer: swap fee outside bounds")
	errInvalidToken     = errors.New("balancer: token not in pool")
	errInvalidAmount    = errors.New("balancer: invalid amount")
	errZeroPoolTokens   = errors.New("balancer: zero pool tokens out")
	errInsufficientPool = errors.New("balancer: exit exceeds pool token supply")
)

// SwapKind selects which side of a swap is exact.
type SwapKind uint8

const (
	GivenIn SwapKind = iota
	GivenOut
)

// Config describes a two-token weighted pool.
type Config struct {
	Address common.Address
	Owner   common.Address
	Symbol  string
	Tokens  [2]common.Address
	Weights [2]*big.Int
	SwapFee *big.Int
}

type poolRecord struct {
	Owner    common.Address
	Tokens   [2]common.Address
	Weights  [2]*big.Int
	Scaling  [2]*big.Int
	SwapFee  *big.Int
	Balances [2]*big.Int
}

// SwapRequest is a single-hop swap against the pool.
type SwapRequest struct {
	Kind      SwapKind
	Sender    common.Address
	Recipient common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	Amount    *big.Int
	// Limit is the minimum output for GivenIn and the maximum input for
	// GivenOut.
	Limit    *big.Int
	Deadline uint64
}

// Pool is a two-token weighted AMM pool.
type Pool struct {
	state   State
	bank    Bank
	emitter events.Emitter
	nowFn   func() time.Time
	address common.Address
}

// Open binds a pool handle to its address. Create must have been called once
// for the address.
func Open(state State, b Bank, address common.Address) *Pool {
	return &Pool{state: state, bank: b, emitter: events.NoopEmitter{}, nowFn: time.Now, address: address}
}

// SetEmitter configures the event sink.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetNowFunc overrides the clock used for deadlines and price samples.
func (p *Pool) SetNowFunc(now func() time.Time) {
	if now != nil {
		p.nowFn = now
	}
}

// Address returns the pool address, which is also the pool token.
func (p *Pool) Address() common.Address { return p.address }

// ID returns the pool identifier used by venues and events.
func (p *Pool) ID() common.Hash { return poolID(p.address) }

// Create persists the pool configuration and registers its pool token.
func (p *Pool) Create(cfg Config) error {
	if cfg.Address != p.address {
		return fmt.Errorf("balancer: config address %s does not match pool %s", cfg.Address.Hex(), p.address.Hex())
	}
	if ok, err := p.state.KVGet(poolKey(p.address), nil); err != nil {
		return err
	} else if ok {
		return errAlreadyCreated
	}
	if cfg.Tokens[0] == cfg.Tokens[1] {
		return fmt.Errorf("balancer: pool tokens must differ")
	}
	sum := new(big.Int)
	for _, w := range cfg.Weights {
		if w == nil || w.Sign() <= 0 {
			return errInvalidWeights
		}
		sum.Add(sum, w)
	}
	if sum.Cmp(One) != 0 {
		return errInvalidWeights
	}
	if err := validateSwapFee(cfg.SwapFee); err != nil {
		return err
	}
	record := poolRecord{Owner: cfg.Owner, SwapFee: new(big.Int).Set(cfg.SwapFee)}
	// Tokens are stored sorted by address.
	order := [2]int{0, 1}
	if cfg.Tokens[1].Big().Cmp(cfg.Tokens[0].Big()) < 0 {
		order = [2]int{1, 0}
	}
	for i, idx := range order {
		tok, err := p.bank.Token(cfg.Tokens[idx])
		if err != nil {
			return err
		}
		if tok.Decimals > 18 {
			return fmt.Errorf("balancer: token %s has more than 18 decimals", tok.Symbol)
		}
		record.Tokens[i] = cfg.Tokens[idx]
		record.Weights[i] = new(big.Int).Set(cfg.Weights[idx])
		record.Scaling[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-tok.Decimals)), nil)
		record.Balances[i] = big.NewInt(0)
	}
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = "BPT"
	}
	if err := p.bank.RegisterToken(bank.Token{Address: p.address, Symbol: symbol, Decimals: 18}); err != nil {
		return err
	}
	return p.save(&record)
}

func validateSwapFee(fee *big.Int) error {
	if fee == nil || fee.Cmp(minSwapFee) < 0 || fee.Cmp(maxSwapFee) > 0 {
		return errInvalidSwapFee
	}
	return nil
}

func (p *Pool) load() (*poolRecord, error) {
	var record poolRecord
	ok, err := p.state.KVGet(poolKey(p.address), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("balancer: unknown pool %s", p.address.Hex())
	}
	return &record, nil
}

func (p *Pool) save(record *poolRecord) error {
	return p.state.KVPut(poolKey(p.address), record)
}

func (r *poolRecord) index(token common.Address) (int, error) {
	for i, t := range r.Tokens {
		if t == token {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", errInvalidToken, token.Hex())
}

// Tokens returns the pool tokens in pool order (sorted by address).
func (p *Pool) Tokens() ([2]common.Address, error) {
	record, err := p.load()
	if err != nil {
		return [2]common.Address{}, err
	}
	return record.Tokens, nil
}

// Weights returns the normalised weights in pool order.
func (p *Pool) Weights() ([2]*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return [2]*big.Int{}, err
	}
	return [2]*big.Int{new(big.Int).Set(record.Weights[0]), new(big.Int).Set(record.Weights[1])}, nil
}

// Reserves returns the pool tokens and their balances.
func (p *Pool) Reserves() ([2]common.Address, [2]*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return [2]common.Address{}, [2]*big.Int{}, err
	}
	return record.Tokens, [2]*big.Int{new(big.Int).Set(record.Balances[0]), new(big.Int).Set(record.Balances[1])}, nil
}

// TotalSupply returns the outstanding pool tokens.
func (p *Pool) TotalSupply() (*big.Int, error) {
	return p.bank.TotalSupply(p.address)
}

// SwapFee returns the current swap fee as an 18-decimal fraction.
func (p *Pool) SwapFee() (*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.SwapFee), nil
}

// SetSwapFeePercentage updates the swap fee. Only the pool owner may call it.
func (p *Pool) SetSwapFeePercentage(caller common.Address, fee *big.Int) error {
	record, err := p.load()
	if err != nil {
		return err
	}
	if err := nativecommon.RequireOwner("balancer", record.Owner, caller); err != nil {
		return err
	}
	if err := validateSwapFee(fee); err != nil {
		return err
	}
	record.SwapFee = new(big.Int).Set(fee)
	if err := p.save(record); err != nil {
		return err
	}
	p.emitter.Emit(events.PoolSwapFeeUpdated{Pool: p.address, Fee: new(big.Int).Set(fee)})
	return nil
}

func normaliseAmounts(amounts [2]*big.Int) ([2]*big.Int, error) {
	var out [2]*big.Int
	for i, a := range amounts {
		if a == nil {
			out[i] = big.NewInt(0)
			continue
		}
		if a.Sign() < 0 || nativecommon.CheckU256(a) != nil {
			return out, errInvalidAmount
		}
		out[i] = new(big.Int).Set(a)
	}
	return out, nil
}

// Join deposits exact token amounts (in pool order) and mints pool tokens to
// the recipient. The first join initialises the pool.
func (p *Pool) Join(sender, recipient common.Address, amountsIn [2]*big.Int, minPoolTokensOut *big.Int) (*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return nil, err
	}
	amounts, err := normaliseAmounts(amountsIn)
	if err != nil {
		return nil, err
	}
	supply, err := p.TotalSupply()
	if err != nil {
		return nil, err
	}
	var out *big.Int
	if supply.Sign() == 0 {
		out, err = p.initialise(record, amounts)
		if err != nil {
			return nil, err
		}
	} else {
		if amounts[0].Sign() == 0 && amounts[1].Sign() == 0 {
			return nil, errInvalidAmount
		}
		out = poolTokensOutGivenExactTokensIn(record.Balances, record.Weights, amounts, supply, record.SwapFee)
	}
	if out.Sign() == 0 {
		return nil, errZeroPoolTokens
	}
	if minPoolTokensOut != nil && out.Cmp(minPoolTokensOut) < 0 {
		return nil, fmt.Errorf("balancer: join returns %s pool tokens, minimum %s: %w", out, minPoolTokensOut, coreerrors.ErrInsufficientOutput)
	}
	for i, tok := range record.Tokens {
		if err := p.bank.Transfer(tok, sender, p.address, amounts[i]); err != nil {
			return nil, err
		}
		record.Balances[i].Add(record.Balances[i], amounts[i])
	}
	if err := p.bank.Mint(p.address, recipient, out); err != nil {
		return nil, err
	}
	if err := p.save(record); err != nil {
		return nil, err
	}
	if err := p.recordSample(record); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.PoolJoined{
		Pool:          p.address,
		Sender:        sender,
		Recipient:     recipient,
		AmountsIn:     amounts,
		PoolTokensOut: new(big.Int).Set(out),
	})
	return out, nil
}

// initialise mints invariant*2 pool tokens, locking the minimum to the zero
// address, and returns the recipient's share.
func (p *Pool) initialise(record *poolRecord, amounts [2]*big.Int) (*big.Int, error) {
	var scaled [2]*big.Int
	for i := range amounts {
		if amounts[i].Sign() == 0 {
			return nil, fmt.Errorf("balancer: initial join requires both tokens")
		}
		scaled[i] = new(big.Int).Mul(amounts[i], record.Scaling[i])
	}
	total := mulDown(big.NewInt(2), invariant(scaled, record.Weights))
	if total.Cmp(minimumPoolTokens) <= 0 {
		return nil, errZeroPoolTokens
	}
	if err := p.bank.Mint(p.address, common.Address{}, minimumPoolTokens); err != nil {
		return nil, err
	}
	return total.Sub(total, minimumPoolTokens), nil
}

// QueryExit projects the proportional exit for poolTokensIn without mutating
// state.
func (p *Pool) QueryExit(poolTokensIn *big.Int) ([2]*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return [2]*big.Int{}, err
	}
	return p.exitAmounts(record, poolTokensIn)
}

func (p *Pool) exitAmounts(record *poolRecord, poolTokensIn *big.Int) ([2]*big.Int, error) {
	if poolTokensIn == nil || poolTokensIn.Sign() < 0 {
		return [2]*big.Int{}, errInvalidAmount
	}
	supply, err := p.TotalSupply()
	if err != nil {
		return [2]*big.Int{}, err
	}
	if supply.Sign() == 0 {
		if poolTokensIn.Sign() == 0 {
			return [2]*big.Int{big.NewInt(0), big.NewInt(0)}, nil
		}
		return [2]*big.Int{}, errNotInitialised
	}
	if poolTokensIn.Cmp(supply) > 0 {
		return [2]*big.Int{}, errInsufficientPool
	}
	var out [2]*big.Int
	for i := range record.Balances {
		out[i] = nativecommon.MulDiv(record.Balances[i], poolTokensIn, supply)
	}
	return out, nil
}

// Exit burns poolTokensIn from the sender and returns the proportional
// reserves (in pool order) to the recipient.
func (p *Pool) Exit(sender, recipient common.Address, poolTokensIn *big.Int, minAmountsOut [2]*big.Int) ([2]*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return [2]*big.Int{}, err
	}
	out, err := p.exitAmounts(record, poolTokensIn)
	if err != nil {
		return [2]*big.Int{}, err
	}
	for i := range out {
		if minAmountsOut[i] != nil && out[i].Cmp(minAmountsOut[i]) < 0 {
			return [2]*big.Int{}, fmt.Errorf("balancer: exit returns %s of %s, minimum %s: %w",
				out[i], record.Tokens[i].Hex(), minAmountsOut[i], coreerrors.ErrInsufficientOutput)
		}
	}
	if err := p.bank.Burn(p.address, sender, poolTokensIn); err != nil {
		return [2]*big.Int{}, err
	}
	for i, tok := range record.Tokens {
		if err := p.bank.Transfer(tok, p.address, recipient, out[i]); err != nil {
			return [2]*big.Int{}, err
		}
		record.Balances[i].Sub(record.Balances[i], out[i])
	}
	if err := p.save(record); err != nil {
		return [2]*big.Int{}, err
	}
	if err := p.recordSample(record); err != nil {
		return [2]*big.Int{}, err
	}
	p.emitter.Emit(events.PoolExited{
		Pool:         p.address,
		Sender:       sender,
		Recipient:    recipient,
		PoolTokensIn: new(big.Int).Set(poolTokensIn),
		AmountsOut:   [2]*big.Int{new(big.Int).Set(out[0]), new(big.Int).Set(out[1])},
	})
	return out, nil
}

// QuerySwap prices a swap without executing it. It returns (amountIn,
// amountOut).
func (p *Pool) QuerySwap(kind SwapKind, tokenIn, tokenOut common.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	record, err := p.load()
	if err != nil {
		return nil, nil, err
	}
	return quoteSwap(record, kind, tokenIn, tokenOut, amount)
}

func quoteSwap(record *poolRecord, kind SwapKind, tokenIn, tokenOut common.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	if amount == nil || amount.Sign() <= 0 || nativecommon.CheckU256(amount) != nil {
		return nil, nil, errInvalidAmount
	}
	in, err := record.index(tokenIn)
	if err != nil {
		return nil, nil, err
	}
	out, err := record.index(tokenOut)
	if err != nil {
		return nil, nil, err
	}
	if in == out {
		return nil, nil, fmt.Errorf("balancer: cannot swap token for itself")
	}
	if record.Balances[in].Sign() == 0 || record.Balances[out].Sign() == 0 {
		return nil, nil, errNotInitialised
	}
	switch kind {
	case GivenIn:
		amountOut := outGivenIn(record.Balances[in], record.Weights[in], record.Balances[out], record.Weights[out], subFee(amount, record.SwapFee))
		return new(big.Int).Set(amount), amountOut, nil
	case GivenOut:
		if amount.Cmp(record.Balances[out]) >= 0 {
			return nil, nil, fmt.Errorf("balancer: amount out exceeds reserves")
		}
		amountIn := inGivenOut(record.Balances[in], record.Weights[in], record.Balances[out], record.Weights[out], amount)
		return addFee(amountIn, record.SwapFee), new(big.Int).Set(amount), nil
	default:
		return nil, nil, fmt.Errorf("balancer: unknown swap kind %d", kind)
	}
}

// Swap executes a single-hop swap. It returns (amountIn, amountOut).
func (p *Pool) Swap(req SwapRequest) (*big.Int, *big.Int, error) {
	if req.Deadline != 0 && uint64(p.nowFn().Unix()) > req.Deadline {
		return nil, nil, fmt.Errorf("balancer: swap: %w", coreerrors.ErrDeadlineExpired)
	}
	record, err := p.load()
	if err != nil {
		return nil, nil, err
	}
	amountIn, amountOut, err := quoteSwap(record, req.Kind, req.TokenIn, req.TokenOut, req.Amount)
	if err != nil {
		return nil, nil, err
	}
	if req.Limit != nil {
		switch req.Kind {
		case GivenIn:
			if amountOut.Cmp(req.Limit) < 0 {
				return nil, nil, fmt.Errorf("balancer: swap returns %s, minimum %s: %w", amountOut, req.Limit, coreerrors.ErrInsufficientOutput)
			}
		case GivenOut:
			if amountIn.Cmp(req.Limit) > 0 {
				return nil, nil, fmt.Errorf("balancer: swap costs %s, maximum %s: %w", amountIn, req.Limit, coreerrors.ErrInsufficientOutput)
			}
		}
	}
	if amountOut.Sign() == 0 {
		return nil, nil, errZeroPoolTokens
	}
	in, _ := record.index(req.TokenIn)
	out, _ := record.index(req.TokenOut)
	if err := p.bank.Transfer(req.TokenIn, req.Sender, p.address, amountIn); err != nil {
		return nil, nil, err
	}
	if err := p.bank.Transfer(req.TokenOut, p.address, req.Recipient, amountOut); err != nil {
		return nil, nil, err
	}
	record.Balances[in].Add(record.Balances[in], amountIn)
	record.Balances[out].Sub(record.Balances[out], amountOut)
	if err := p.save(record); err != nil {
		return nil, nil, err
	}
	if err := p.recordSample(record); err != nil {
		return nil, nil, err
	}
	p.emitter.Emit(events.PoolSwap{
		Pool:      p.address,
		Account:   req.Sender,
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(amountOut),
	})
	return amountIn, amountOut, nil
}
