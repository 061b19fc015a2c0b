package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	// TypeTokenTransfer is emitted for every token ledger balance movement,
	// including mints (zero sender) and burns (zero receiver).
	TypeTokenTransfer = "bank.transfer"
	// TypeTokenApproval records allowance updates.
	TypeTokenApproval = "bank.approval"
)

type TokenTransfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return types.NewEvent(TypeTokenTransfer).
		Set("token", e.Token.Hex()).
		Set("from", formatAddress(e.From)).
		Set("to", formatAddress(e.To)).
		Set("amount", formatAmount(e.Amount))
}

type TokenApproval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return types.NewEvent(TypeTokenApproval).
		Set("token", e.Token.Hex()).
		Set("owner", formatAddress(e.Owner)).
		Set("spender", formatAddress(e.Spender)).
		Set("amount", formatAmount(e.Amount))
}
