package exchange

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/native/balancer"
)

// Pair is a two-token pool that can quote and execute single hops.
type Pair interface {
	Tokens() ([2]common.Address, error)
	QueryHop(exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int) (amountIn, amountOut *big.Int, err error)
	Hop(from common.Address, exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int, deadline uint64) (amountIn, amountOut *big.Int, err error)
}

// RouterAdapter executes single and batch trades across a set of pairs.
type RouterAdapter struct {
	pairs []Pair
}

// NewRouterAdapter constructs an adapter routing over pairs.
func NewRouterAdapter(pairs ...Pair) *RouterAdapter {
	return &RouterAdapter{pairs: append([]Pair{}, pairs...)}
}

func (r *RouterAdapter) pairFor(a, b common.Address) (Pair, error) {
	for _, p := range r.pairs {
		tokens, err := p.Tokens()
		if err != nil {
			return nil, err
		}
		if (tokens[0] == a && tokens[1] == b) || (tokens[0] == b && tokens[1] == a) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("exchange: no pool for %s/%s", a.Hex(), b.Hex())
}

// Execute implements Adapter.
func (r *RouterAdapter) Execute(from common.Address, trade Trade) (*big.Int, *big.Int, error) {
	route := trade.Route()
	hops := make([]Pair, len(route)-1)
	for i := range hops {
		p, err := r.pairFor(route[i], route[i+1])
		if err != nil {
			return nil, nil, err
		}
		hops[i] = p
	}
	if trade.TradeType.ExactIn() {
		amount := new(big.Int).Set(trade.Amount)
		var sold *big.Int
		for i, p := range hops {
			in, out, err := p.Hop(from, true, route[i], route[i+1], amount, trade.Deadline)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				sold = in
			}
			amount = out
		}
		return sold, amount, nil
	}
	// Exact out: size every hop backwards from the final output, then execute
	// forwards.
	required := make([]*big.Int, len(route))
	required[len(route)-1] = new(big.Int).Set(trade.Amount)
	for i := len(hops) - 1; i >= 0; i-- {
		in, _, err := hops[i].QueryHop(false, route[i], route[i+1], required[i+1])
		if err != nil {
			return nil, nil, err
		}
		required[i] = in
	}
	var sold, bought *big.Int
	for i, p := range hops {
		in, out, err := p.Hop(from, false, route[i], route[i+1], required[i+1], trade.Deadline)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			sold = in
		}
		bought = out
	}
	return sold, bought, nil
}

// BalancerPair adapts a weighted pool to the Pair interface.
type BalancerPair struct {
	Pool *balancer.Pool
}

func (b BalancerPair) Tokens() ([2]common.Address, error) { return b.Pool.Tokens() }

func kind(exactIn bool) balancer.SwapKind {
	if exactIn {
		return balancer.GivenIn
	}
	return balancer.GivenOut
}

func (b BalancerPair) QueryHop(exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	return b.Pool.QuerySwap(kind(exactIn), tokenIn, tokenOut, amount)
}

func (b BalancerPair) Hop(from common.Address, exactIn bool, tokenIn, tokenOut common.Address, amount *big.Int, deadline uint64) (*big.Int, *big.Int, error) {
	return b.Pool.Swap(balancer.SwapRequest{
		Kind:      kind(exactIn),
		Sender:    from,
		Recipient: from,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		Amount:    amount,
		Deadline:  deadline,
	})
}

// NewBalancerAdapter routes trades over weighted pools.
func NewBalancerAdapter(pools ...*balancer.Pool) *RouterAdapter {
	pairs := make([]Pair, 0, len(pools))
	for _, p := range pools {
		pairs = append(pairs, BalancerPair{Pool: p})
	}
	return NewRouterAdapter(pairs...)
}

// NewUniswapV2Adapter routes trades over constant-product pairs.
func NewUniswapV2Adapter(pairs ...*UniswapV2Pair) *RouterAdapter {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p)
	}
	return NewRouterAdapter(out...)
}

// ZeroExAdapter fills the signed order carried by the trade.
type ZeroExAdapter struct {
	venue *Venue
}

// NewZeroExAdapter constructs an adapter filling orders on venue.
func NewZeroExAdapter(venue *Venue) *ZeroExAdapter {
	return &ZeroExAdapter{venue: venue}
}

// Execute implements Adapter. Only exact-in single trades are supported: the
// trade sells the order's taker token and buys its maker token.
func (z *ZeroExAdapter) Execute(from common.Address, trade Trade) (*big.Int, *big.Int, error) {
	if trade.TradeType != ExactInSingle {
		return nil, nil, fmt.Errorf("%w: %s on ZERO_EX", errUnsupportedHop, trade.TradeType)
	}
	if trade.Order == nil {
		return nil, nil, fmt.Errorf("%w: signed order required", errInvalidTrade)
	}
	order := trade.Order.Order
	if order.TakerToken != trade.SellToken || order.MakerToken != trade.BuyToken {
		return nil, nil, fmt.Errorf("%w: order tokens do not match trade", errInvalidTrade)
	}
	results, err := z.venue.FillOrder(from, order, trade.Amount, trade.Order.Signature)
	if err != nil {
		return nil, nil, err
	}
	return results.TakerAmountFilled, results.MakerAmountFilled, nil
}
