package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	// TypeOrderFilled is emitted when a signed order is (partially) filled.
	TypeOrderFilled = "exchange.orderFilled"
	// TypeOrderCancelled is emitted the first time an order is cancelled.
	TypeOrderCancelled = "exchange.orderCancelled"
	// TypeTradeExecuted is emitted by the trading module for DEX-routed trades.
	TypeTradeExecuted = "trading.executed"
)

type OrderFilled struct {
	OrderHash   common.Hash
	Maker       common.Address
	Taker       common.Address
	MakerToken  common.Address
	TakerToken  common.Address
	MakerFilled *big.Int
	TakerFilled *big.Int
}

func (OrderFilled) EventType() string { return TypeOrderFilled }

func (e OrderFilled) Event() *types.Event {
	return types.NewEvent(TypeOrderFilled).
		Set("orderHash", e.OrderHash.Hex()).
		Set("maker", formatAddress(e.Maker)).
		Set("taker", formatAddress(e.Taker)).
		Set("makerToken", formatAddress(e.MakerToken)).
		Set("takerToken", formatAddress(e.TakerToken)).
		Set("makerFilled", formatAmount(e.MakerFilled)).
		Set("takerFilled", formatAmount(e.TakerFilled))
}

type OrderCancelled struct {
	OrderHash common.Hash
	Maker     common.Address
	Canceller common.Address
}

func (OrderCancelled) EventType() string { return TypeOrderCancelled }

func (e OrderCancelled) Event() *types.Event {
	return types.NewEvent(TypeOrderCancelled).
		Set("orderHash", e.OrderHash.Hex()).
		Set("maker", formatAddress(e.Maker)).
		Set("canceller", formatAddress(e.Canceller))
}

// TradeExecuted carries the (amountSold, amountBought) pair of a routed trade.
type TradeExecuted struct {
	Caller       common.Address
	Dex          string
	TradeType    string
	SellToken    common.Address
	BuyToken     common.Address
	AmountSold   *big.Int
	AmountBought *big.Int
}

func (TradeExecuted) EventType() string { return TypeTradeExecuted }

func (e TradeExecuted) Event() *types.Event {
	return types.NewEvent(TypeTradeExecuted).
		Set("caller", formatAddress(e.Caller)).
		Set("dex", e.Dex).
		Set("tradeType", e.TradeType).
		Set("sellToken", formatAddress(e.SellToken)).
		Set("buyToken", formatAddress(e.BuyToken)).
		Set("amountSold", formatAmount(e.AmountSold)).
		Set("amountBought", formatAmount(e.AmountBought))
}
