package exchange

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	nativecommon "stakingcore/native/common"
)

var (
	pairPrefix = []byte("exchange/univ2/")

	errPairExists     = errors.New("exchange: pair already created")
	errPairLiquidity  = errors.New("exchange: insufficient pair liquidity")
	errPairToken      = errors.New("exchange: token not in pair")
	errPairZeroAmount = errors.New("exchange: zero amount")
)

// uniswapFeeBps is the constant-product pair fee in basis points.
const uniswapFeeBps = 30

type pairRecord struct {
	Tokens   [2]common.Address
	Reserves [2]*big.Int
}

// UniswapV2Pair is a constant-product pair holding its reserves at its own
// address.
type UniswapV2Pair struct {
	address common.Address
	state   State
	bank    Bank
	nowFn   func() time.Time
}

// OpenUniswapV2Pair binds a handle to the pair at address.
func OpenUniswapV2Pair(address common.Address, state State, b Bank) *UniswapV2Pair {
	return &UniswapV2Pair{address: address, state: state, bank: b, nowFn: time.Now}
}

// SetNowFunc overrides the deadline clock.
func (p *UniswapV2Pair) SetNowFunc(now func() time.Time) {
	if now != nil {
		p.nowFn = now
	}
}

func (p *UniswapV2Pair) key() []byte {
	return append(append([]byte{}, pairPrefix...), p.address.Bytes()...)
}

// Create registers the pair tokens (sorted by address).
func (p *UniswapV2Pair) Create(tokenA, tokenB common.Address) error {
	if ok, err := p.state.KVGet(p.key(), nil); err != nil {
		return err
	} else if ok {
		return errPairExists
	}
	if tokenA == tokenB {
		return fmt.Errorf("exchange: pair tokens must differ")
	}
	if tokenB.Big().Cmp(tokenA.Big()) < 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return p.state.KVPut(p.key(), &pairRecord{
		Tokens:   [2]common.Address{tokenA, tokenB},
		Reserves: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
	})
}

func (p *UniswapV2Pair) load() (*pairRecord, error) {
	var record pairRecord
	ok, err := p.state.KVGet(p.key(), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("exchange: unknown pair %s", p.address.Hex())
	}
	return &record, nil
}

// Tokens implements Pair.
func (p *UniswapV2Pair) Tokens() ([2]common.Address, error) {
	record, err := p.load()
	if err != nil {
		return [2]common.Address{}, err
	}
	return record.Tokens, nil
}

// Reserves returns the pair reserves in token order.
func (p *UniswapV2Pair) Reserves() ([2]*big.Int, error) {
	record, err := p.load()
	if err != nil {
		return [2]*big.Int{}, err
	}
	return [2]*big.Int{new(big.Int).Set(record.Reserves[0]), new(big.Int).Set(record.Reserves[1])}, nil
}

// AddLiquidity deposits amounts (in token order) from provider.
func (p *UniswapV2Pair) AddLiquidity(provider common.Address, amounts [2]*big.Int) error {
	record, err := p.load()
	if err != nil {
		return err
	}
	for i, tok := range record.Tokens {
		if amounts[i] == nil || amounts[i].Sign() <= 0 || nativecommon.CheckU256(amounts[i]) != nil {
			return errPairZeroAmount
		}
		if err := p.bank.Transfer(tok, provider, p.address, amounts[i]); err != nil {
			return err
		}
		record.Reserves[i].Add(record.Reserves[i], amounts[i])
	}
	return p.state.KVPut(p.key(), record)
}

func (r *pairRecord) indices(tokenIn, tokenOut common.Address) (int, int, error) {
	switch {
	case tokenIn == r.Tokens[0] && tokenOut == r.Tokens[1]:
		return 0, 1, nil
	case tokenIn == r.Tokens[1] && tokenOut == r.Tokens[0]:
		return 1, 0, nil
	default:
		return 0, 0, errPairToken
	}
}

// amountOut = in*997*rOut / (rIn*1000 + in*997)
func getAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(10_000-uniswapFeeBps))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(10_000))
	den.Add(den, inWithFee)
	return num.Quo(num, den)
}

// amountIn = rIn*out*1000 / ((rOut-out)*997) + 1
func getAmountIn(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, big.NewInt(10_000))
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(10_000-uniswapFeeBps))
	out := num.Quo(num, den)
	return out.Add(out, big.NewInt(1))
}

func quoteHop(record *pairRecord, exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int) (*big.Int, *big.Int, int, int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, 0, 0, errPairZeroAmount
	}
	in, out, err := record.indices(tokenIn, tokenOut)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	rIn, rOut := record.Reserves[in], record.Reserves[out]
	if rIn.Sign() == 0 || rOut.Sign() == 0 {
		return nil, nil, 0, 0, errPairLiquidity
	}
	if exactIn {
		amountOut := getAmountOut(amount, rIn, rOut)
		if amountOut.Sign() == 0 {
			return nil, nil, 0, 0, errPairLiquidity
		}
		return new(big.Int).Set(amount), amountOut, in, out, nil
	}
	if amount.Cmp(rOut) >= 0 {
		return nil, nil, 0, 0, errPairLiquidity
	}
	return getAmountIn(amount, rIn, rOut), new(big.Int).Set(amount), in, out, nil
}

// QueryHop implements Pair.
func (p *UniswapV2Pair) QueryHop(exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	record, err := p.load()
	if err != nil {
		return nil, nil, err
	}
	amountIn, amountOut, _, _, err := quoteHop(record, exactIn, tokenIn, tokenOut, amount)
	return amountIn, amountOut, err
}

// Hop implements Pair.
func (p *UniswapV2Pair) Hop(from common.Address, exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int, deadline uint64) (*big.Int, *big.Int, error) {
	if deadline != 0 && uint64(p.nowFn().Unix()) > deadline {
		return nil, nil, fmt.Errorf("exchange: pair swap: %w", coreerrors.ErrDeadlineExpired)
	}
	record, err := p.load()
	if err != nil {
		return nil, nil, err
	}
	amountIn, amountOut, in, out, err := quoteHop(record, exactIn, tokenIn, tokenOut, amount)
	if err != nil {
		return nil, nil, err
	}
	if err := p.bank.Transfer(tokenIn, from, p.address, amountIn); err != nil {
		return nil, nil, err
	}
	if err := p.bank.Transfer(tokenOut, p.address, from, amountOut); err != nil {
		return nil, nil, err
	}
	record.Reserves[in].Add(record.Reserves[in], amountIn)
	record.Reserves[out].Sub(record.Reserves[out], amountOut)
	if err := p.state.KVPut(p.key(), record); err != nil {
		return nil, nil, err
	}
	return amountIn, amountOut, nil
}
