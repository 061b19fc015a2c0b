package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	// TypePoolJoined is emitted when reserves are added to a weighted pool.
	TypePoolJoined = "pool.joined"
	// TypePoolExited is emitted when pool tokens are burned for reserves.
	TypePoolExited = "pool.exited"
	// TypePoolSwap is emitted for every pool swap.
	TypePoolSwap = "pool.swap"
	// TypePoolSwapFeeUpdated records a swap fee change.
	TypePoolSwapFeeUpdated = "pool.swapFeeUpdated"
)

// PoolJoined captures the reserves supplied and the pool tokens minted.
type PoolJoined struct {
	Pool          common.Address
	Sender        common.Address
	Recipient     common.Address
	AmountsIn     [2]*big.Int
	PoolTokensOut *big.Int
}

func (PoolJoined) EventType() string { return TypePoolJoined }

func (e PoolJoined) Event() *types.Event {
	return types.NewEvent(TypePoolJoined).
		Set("pool", e.Pool.Hex()).
		Set("sender", formatAddress(e.Sender)).
		Set("recipient", formatAddress(e.Recipient)).
		Set("amount0", formatAmount(e.AmountsIn[0])).
		Set("amount1", formatAmount(e.AmountsIn[1])).
		Set("poolTokensOut", formatAmount(e.PoolTokensOut))
}

// PoolExited captures the pool tokens burned and the reserves returned.
type PoolExited struct {
	Pool         common.Address
	Sender       common.Address
	Recipient    common.Address
	PoolTokensIn *big.Int
	AmountsOut   [2]*big.Int
}

func (PoolExited) EventType() string { return TypePoolExited }

func (e PoolExited) Event() *types.Event {
	return types.NewEvent(TypePoolExited).
		Set("pool", e.Pool.Hex()).
		Set("sender", formatAddress(e.Sender)).
		Set("recipient", formatAddress(e.Recipient)).
		Set("poolTokensIn", formatAmount(e.PoolTokensIn)).
		Set("amount0", formatAmount(e.AmountsOut[0])).
		Set("amount1", formatAmount(e.AmountsOut[1]))
}

type PoolSwap struct {
	Pool      common.Address
	Account   common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (PoolSwap) EventType() string { return TypePoolSwap }

func (e PoolSwap) Event() *types.Event {
	return types.NewEvent(TypePoolSwap).
		Set("pool", e.Pool.Hex()).
		Set("account", formatAddress(e.Account)).
		Set("tokenIn", formatAddress(e.TokenIn)).
		Set("tokenOut", formatAddress(e.TokenOut)).
		Set("amountIn", formatAmount(e.AmountIn)).
		Set("amountOut", formatAmount(e.AmountOut))
}

type PoolSwapFeeUpdated struct {
	Pool common.Address
	Fee  *big.Int
}

func (PoolSwapFeeUpdated) EventType() string { return TypePoolSwapFeeUpdated }

func (e PoolSwapFeeUpdated) Event() *types.Event {
	return types.NewEvent(TypePoolSwapFeeUpdated).
		Set("pool", e.Pool.Hex()).
		Set("fee", formatAmount(e.Fee))
}
