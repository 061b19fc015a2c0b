package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	TypeVaultDeposit    = "vault.deposit"
	TypeVaultWithdraw   = "vault.withdraw"
	TypeVaultReinvested = "vault.reinvested"
)

type VaultDeposit struct {
	Vault      common.Address
	Account    common.Address
	PoolTokens *big.Int
	Shares     *big.Int
}

func (VaultDeposit) EventType() string { return TypeVaultDeposit }

func (e VaultDeposit) Event() *types.Event {
	return types.NewEvent(TypeVaultDeposit).
		Set("vault", e.Vault.Hex()).
		Set("account", formatAddress(e.Account)).
		Set("poolTokens", formatAmount(e.PoolTokens)).
		Set("shares", formatAmount(e.Shares))
}

type VaultWithdraw struct {
	Vault      common.Address
	Account    common.Address
	PoolTokens *big.Int
	Shares     *big.Int
}

func (VaultWithdraw) EventType() string { return TypeVaultWithdraw }

func (e VaultWithdraw) Event() *types.Event {
	return types.NewEvent(TypeVaultWithdraw).
		Set("vault", e.Vault.Hex()).
		Set("account", formatAddress(e.Account)).
		Set("poolTokens", formatAmount(e.PoolTokens)).
		Set("shares", formatAmount(e.Shares))
}

type VaultReinvested struct {
	Vault       common.Address
	Reinvestor  common.Address
	PoolTokens  *big.Int
	FeeShares   *big.Int
	FeeReceiver common.Address
}

func (VaultReinvested) EventType() string { return TypeVaultReinvested }

func (e VaultReinvested) Event() *types.Event {
	return types.NewEvent(TypeVaultReinvested).
		Set("vault", e.Vault.Hex()).
		Set("reinvestor", formatAddress(e.Reinvestor)).
		Set("poolTokens", formatAmount(e.PoolTokens)).
		Set("feeShares", formatAmount(e.FeeShares)).
		Set("feeReceiver", formatAddress(e.FeeReceiver))
}
