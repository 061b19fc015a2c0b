package exchange

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/events"
	coreerrors "stakingcore/core/errors"
	nativecommon "stakingcore/native/common"
)

// DexID identifies a trading venue.
type DexID uint8

const (
	DexUnused DexID = iota
	DexUniswapV2
	DexUniswapV3
	DexZeroEx
	DexBalancerV2
	DexCurve
	DexNotionalVault
)

var dexNames = map[DexID]string{
	DexUnused:        "UNUSED",
	DexUniswapV2:     "UNISWAP_V2",
	DexUniswapV3:     "UNISWAP_V3",
	DexZeroEx:        "ZERO_EX",
	DexBalancerV2:    "BALANCER_V2",
	DexCurve:         "CURVE",
	DexNotionalVault: "NOTIONAL_VAULT",
}

func (d DexID) String() string {
	if name, ok := dexNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DEX(%d)", uint8(d))
}

// ParseDexID resolves a venue name such as "BALANCER_V2".
func ParseDexID(name string) (DexID, error) {
	needle := strings.ToUpper(strings.TrimSpace(name))
	for id, n := range dexNames {
		if n == needle {
			return id, nil
		}
	}
	return DexUnused, fmt.Errorf("exchange: unknown dex %q", name)
}

// TradeType is the shape of a routed trade.
type TradeType uint8

const (
	ExactInSingle TradeType = iota
	ExactOutSingle
	ExactInBatch
	ExactOutBatch
)

var tradeTypeNames = map[TradeType]string{
	ExactInSingle:  "EXACT_IN_SINGLE",
	ExactOutSingle: "EXACT_OUT_SINGLE",
	ExactInBatch:   "EXACT_IN_BATCH",
	ExactOutBatch:  "EXACT_OUT_BATCH",
}

func (t TradeType) String() string {
	if name, ok := tradeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TRADE_TYPE(%d)", uint8(t))
}

// ParseTradeType resolves a trade type name such as "EXACT_IN_SINGLE".
func ParseTradeType(name string) (TradeType, error) {
	needle := strings.ToUpper(strings.TrimSpace(name))
	for tt, n := range tradeTypeNames {
		if n == needle {
			return tt, nil
		}
	}
	return 0, fmt.Errorf("exchange: unknown trade type %q", name)
}

// ExactIn reports whether the sell amount is fixed.
func (t TradeType) ExactIn() bool { return t == ExactInSingle || t == ExactInBatch }

// Batch reports whether the trade routes through intermediate tokens.
func (t TradeType) Batch() bool { return t == ExactInBatch || t == ExactOutBatch }

// Trade is a routed trade request. Amount is the sell amount for exact-in
// trades and the buy amount for exact-out trades; Limit is respectively the
// minimum bought and the maximum sold.
type Trade struct {
	TradeType TradeType
	SellToken common.Address
	BuyToken  common.Address
	Amount    *big.Int
	Limit     *big.Int
	Deadline  uint64
	// Path lists intermediate tokens for batch trades.
	Path []common.Address
	// Order carries the signed order filled by the ZERO_EX venue.
	Order *SignedOrder
}

// SignedOrder pairs an order with its signature.
type SignedOrder struct {
	Order     Order
	Signature []byte
}

// Route returns the full token route of the trade.
func (t Trade) Route() []common.Address {
	route := make([]common.Address, 0, len(t.Path)+2)
	route = append(route, t.SellToken)
	route = append(route, t.Path...)
	return append(route, t.BuyToken)
}

// Adapter executes trades against one venue on behalf of from.
type Adapter interface {
	Execute(from common.Address, trade Trade) (amountSold, amountBought *big.Int, err error)
}

// Snapshotter is the journal surface used for dry runs.
type Snapshotter interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

var (
	errNoAdapter      = errors.New("exchange: no adapter for dex")
	errInvalidTrade   = errors.New("exchange: invalid trade")
	errUnsupportedHop = errors.New("exchange: trade type not supported by venue")
)

// TradingModule dispatches routed trades to per-venue adapters.
type TradingModule struct {
	journal  Snapshotter
	adapters map[DexID]Adapter
	emitter  events.Emitter
	nowFn    func() time.Time
}

// NewTradingModule constructs a module whose dry runs revert through journal.
func NewTradingModule(journal Snapshotter) *TradingModule {
	return &TradingModule{
		journal:  journal,
		adapters: make(map[DexID]Adapter),
		emitter:  events.NoopEmitter{},
		nowFn:    time.Now,
	}
}

// SetEmitter configures the event sink.
func (m *TradingModule) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// SetNowFunc overrides the deadline clock.
func (m *TradingModule) SetNowFunc(now func() time.Time) {
	if now != nil {
		m.nowFn = now
	}
}

// RegisterAdapter installs the adapter for dex.
func (m *TradingModule) RegisterAdapter(dex DexID, adapter Adapter) {
	if adapter == nil {
		delete(m.adapters, dex)
		return
	}
	m.adapters[dex] = adapter
}

func (m *TradingModule) validate(dex DexID, trade Trade) (Adapter, error) {
	adapter, ok := m.adapters[dex]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoAdapter, dex)
	}
	if _, ok := tradeTypeNames[trade.TradeType]; !ok {
		return nil, fmt.Errorf("%w: unknown trade type %d", errInvalidTrade, trade.TradeType)
	}
	if trade.Amount == nil || trade.Amount.Sign() <= 0 || nativecommon.CheckU256(trade.Amount) != nil {
		return nil, fmt.Errorf("%w: amount must be positive", errInvalidTrade)
	}
	if trade.SellToken == trade.BuyToken {
		return nil, fmt.Errorf("%w: sell and buy token are equal", errInvalidTrade)
	}
	if !trade.TradeType.Batch() && len(trade.Path) > 0 {
		return nil, fmt.Errorf("%w: single trades take no path", errInvalidTrade)
	}
	if trade.Deadline != 0 && uint64(m.nowFn().Unix()) > trade.Deadline {
		return nil, fmt.Errorf("exchange: trade: %w", coreerrors.ErrDeadlineExpired)
	}
	return adapter, nil
}

func (m *TradingModule) execute(from common.Address, dex DexID, trade Trade) (*big.Int, *big.Int, error) {
	adapter, err := m.validate(dex, trade)
	if err != nil {
		return nil, nil, err
	}
	sold, bought, err := adapter.Execute(from, trade)
	if err != nil {
		return nil, nil, err
	}
	if trade.Limit != nil {
		if trade.TradeType.ExactIn() && bought.Cmp(trade.Limit) < 0 {
			return nil, nil, fmt.Errorf("exchange: bought %s, minimum %s: %w", bought, trade.Limit, coreerrors.ErrInsufficientOutput)
		}
		if !trade.TradeType.ExactIn() && sold.Cmp(trade.Limit) > 0 {
			return nil, nil, fmt.Errorf("exchange: sold %s, maximum %s: %w", sold, trade.Limit, coreerrors.ErrInsufficientOutput)
		}
	}
	m.emitter.Emit(events.TradeExecuted{
		Caller:       from,
		Dex:          dex.String(),
		TradeType:    trade.TradeType.String(),
		SellToken:    trade.SellToken,
		BuyToken:     trade.BuyToken,
		AmountSold:   new(big.Int).Set(sold),
		AmountBought: new(big.Int).Set(bought),
	})
	return sold, bought, nil
}

// ExecuteTrade runs trade on dex for from and returns (amountSold,
// amountBought).
func (m *TradingModule) ExecuteTrade(from common.Address, dex DexID, trade Trade) (*big.Int, *big.Int, error) {
	return m.execute(from, dex, trade)
}

// Simulate executes trade and reverts every effect, returning the amounts the
// same call would produce against unchanged state.
func (m *TradingModule) Simulate(from common.Address, dex DexID, trade Trade) (*big.Int, *big.Int, error) {
	if m.journal == nil {
		return nil, nil, fmt.Errorf("exchange: simulation requires a journal")
	}
	id := m.journal.Snapshot()
	defer m.journal.RevertToSnapshot(id)
	return m.execute(from, dex, trade)
}
