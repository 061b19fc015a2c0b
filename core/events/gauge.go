package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	TypeGaugeDeposit        = "gauge.deposit"
	TypeGaugeWithdraw       = "gauge.withdraw"
	TypeGaugeRewardNotified = "gauge.rewardNotified"
	TypeGaugeRewardPaid     = "gauge.rewardPaid"
)

// GaugeDeposit records pool tokens staked on behalf of Account. Payer differs
// from Account for deposit-for donations.
type GaugeDeposit struct {
	Gauge   common.Address
	Account common.Address
	Payer   common.Address
	Amount  *big.Int
}

func (GaugeDeposit) EventType() string { return TypeGaugeDeposit }

func (e GaugeDeposit) Event() *types.Event {
	return types.NewEvent(TypeGaugeDeposit).
		Set("gauge", e.Gauge.Hex()).
		Set("account", formatAddress(e.Account)).
		Set("payer", formatAddress(e.Payer)).
		Set("amount", formatAmount(e.Amount))
}

type GaugeWithdraw struct {
	Gauge   common.Address
	Account common.Address
	Amount  *big.Int
}

func (GaugeWithdraw) EventType() string { return TypeGaugeWithdraw }

func (e GaugeWithdraw) Event() *types.Event {
	return types.NewEvent(TypeGaugeWithdraw).
		Set("gauge", e.Gauge.Hex()).
		Set("account", formatAddress(e.Account)).
		Set("amount", formatAmount(e.Amount))
}

type GaugeRewardNotified struct {
	Gauge    common.Address
	Token    common.Address
	Amount   *big.Int
	Duration uint64
}

func (GaugeRewardNotified) EventType() string { return TypeGaugeRewardNotified }

func (e GaugeRewardNotified) Event() *types.Event {
	return types.NewEvent(TypeGaugeRewardNotified).
		Set("gauge", e.Gauge.Hex()).
		Set("token", formatAddress(e.Token)).
		Set("amount", formatAmount(e.Amount)).
		Set("duration", formatUint(e.Duration))
}

type GaugeRewardPaid struct {
	Gauge   common.Address
	Account common.Address
	Token   common.Address
	Amount  *big.Int
}

func (GaugeRewardPaid) EventType() string { return TypeGaugeRewardPaid }

func (e GaugeRewardPaid) Event() *types.Event {
	return types.NewEvent(TypeGaugeRewardPaid).
		Set("gauge", e.Gauge.Hex()).
		Set("account", formatAddress(e.Account)).
		Set("token", formatAddress(e.Token)).
		Set("amount", formatAmount(e.Amount))
}
