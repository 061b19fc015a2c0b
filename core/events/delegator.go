package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	TypeDelegatorDeposit  = "delegator.deposit"
	TypeDelegatorWithdraw = "delegator.withdraw"
)

type DelegatorDeposit struct {
	LPToken common.Address
	Owner   common.Address
	Amount  *big.Int
}

func (DelegatorDeposit) EventType() string { return TypeDelegatorDeposit }

func (e DelegatorDeposit) Event() *types.Event {
	return types.NewEvent(TypeDelegatorDeposit).
		Set("lpToken", formatAddress(e.LPToken)).
		Set("owner", formatAddress(e.Owner)).
		Set("amount", formatAmount(e.Amount))
}

type DelegatorWithdraw struct {
	LPToken common.Address
	Owner   common.Address
	Amount  *big.Int
}

func (DelegatorWithdraw) EventType() string { return TypeDelegatorWithdraw }

func (e DelegatorWithdraw) Event() *types.Event {
	return types.NewEvent(TypeDelegatorWithdraw).
		Set("lpToken", formatAddress(e.LPToken)).
		Set("owner", formatAddress(e.Owner)).
		Set("amount", formatAmount(e.Amount))
}
