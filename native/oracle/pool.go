package oracle

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/native/bank"
)

// PoolPricer is the price surface of a two-token pool. Rates are in smallest
// units.
type PoolPricer interface {
	Tokens() ([2]common.Address, error)
	TimeWeightedAverage(base common.Address, window time.Duration) (*big.Rat, error)
}

// TokenInfo resolves token metadata.
type TokenInfo interface {
	Token(addr common.Address) (*bank.Token, error)
}

// PoolTWAPOracle quotes the time-weighted pool price of one pool token in the
// other.
type PoolTWAPOracle struct {
	pool   PoolPricer
	tokens TokenInfo
	window time.Duration
	nowFn  func() time.Time
}

// NewPoolTWAPOracle constructs an oracle over the supplied pool.
func NewPoolTWAPOracle(pool PoolPricer, tokens TokenInfo, window time.Duration) *PoolTWAPOracle {
	return &PoolTWAPOracle{pool: pool, tokens: tokens, window: window, nowFn: time.Now}
}

// SetNowFunc overrides the timestamp attached to quotes.
func (o *PoolTWAPOracle) SetNowFunc(now func() time.Time) {
	if now != nil {
		o.nowFn = now
	}
}

func (o *PoolTWAPOracle) resolve(symbol string) (*bank.Token, error) {
	tokens, err := o.pool.Tokens()
	if err != nil {
		return nil, err
	}
	for _, addr := range tokens {
		tok, err := o.tokens.Token(addr)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(tok.Symbol, strings.TrimSpace(symbol)) {
			return tok, nil
		}
	}
	return nil, fmt.Errorf("pool oracle: %s not in pool", symbol)
}

// GetRate returns the whole-unit TWAP of base quoted in quote.
func (o *PoolTWAPOracle) GetRate(base, quote string) (PriceQuote, error) {
	baseTok, err := o.resolve(base)
	if err != nil {
		return PriceQuote{}, err
	}
	quoteTok, err := o.resolve(quote)
	if err != nil {
		return PriceQuote{}, err
	}
	if baseTok.Address == quoteTok.Address {
		return PriceQuote{}, fmt.Errorf("pool oracle: base and quote must differ")
	}
	raw, err := o.pool.TimeWeightedAverage(baseTok.Address, o.window)
	if err != nil {
		return PriceQuote{}, err
	}
	rate, err := WholeRate(raw, baseTok.Decimals, quoteTok.Decimals)
	if err != nil {
		return PriceQuote{}, err
	}
	return PriceQuote{Rate: rate, Timestamp: o.nowFn(), Source: "pool-twap"}, nil
}
