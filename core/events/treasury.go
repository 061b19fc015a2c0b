package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	// TypeTreasuryParamUpdated records an owner-only treasury configuration
	// change.
	TypeTreasuryParamUpdated = "treasury.paramUpdated"
	// TypeTreasuryInvested is emitted when idle WETH is swapped and joined
	// into the staking core's pool position.
	TypeTreasuryInvested = "treasury.invested"
	// TypeTreasuryVaultRewardReinvested reconciles a vault reward
	// reinvestment.
	TypeTreasuryVaultRewardReinvested = "treasury.vaultRewardReinvested"
)

// TreasuryParamUpdated names the parameter, the token or target it applies to
// (when any) and the rendered value.
type TreasuryParamUpdated struct {
	Param string
	Key   common.Address
	Value string
}

func (TreasuryParamUpdated) EventType() string { return TypeTreasuryParamUpdated }

func (e TreasuryParamUpdated) Event() *types.Event {
	return types.NewEvent(TypeTreasuryParamUpdated).
		Set("param", e.Param).
		Set("key", formatAddress(e.Key)).
		Set("value", e.Value)
}

type TreasuryInvested struct {
	WETHAmount  *big.Int
	WETHSwapped *big.Int
	NOTEBought  *big.Int
	NOTEJoined  *big.Int
	PoolTokens  *big.Int
	StakingCore common.Address
}

func (TreasuryInvested) EventType() string { return TypeTreasuryInvested }

func (e TreasuryInvested) Event() *types.Event {
	return types.NewEvent(TypeTreasuryInvested).
		Set("wethAmount", formatAmount(e.WETHAmount)).
		Set("wethSwapped", formatAmount(e.WETHSwapped)).
		Set("noteBought", formatAmount(e.NOTEBought)).
		Set("noteJoined", formatAmount(e.NOTEJoined)).
		Set("poolTokens", formatAmount(e.PoolTokens)).
		Set("stakingCore", formatAddress(e.StakingCore))
}

// TreasuryVaultRewardReinvested carries the five values returned by a vault
// reinvestment.
type TreasuryVaultRewardReinvested struct {
	Vault                common.Address
	RewardToken          common.Address
	PrimaryAmount        *big.Int
	SecondaryAmount      *big.Int
	PoolTokensReceived   *big.Int
	StrategySharesMinted *big.Int
}

func (TreasuryVaultRewardReinvested) EventType() string {
	return TypeTreasuryVaultRewardReinvested
}

func (e TreasuryVaultRewardReinvested) Event() *types.Event {
	return types.NewEvent(TypeTreasuryVaultRewardReinvested).
		Set("vault", formatAddress(e.Vault)).
		Set("rewardToken", formatAddress(e.RewardToken)).
		Set("primaryAmount", formatAmount(e.PrimaryAmount)).
		Set("secondaryAmount", formatAmount(e.SecondaryAmount)).
		Set("poolTokensReceived", formatAmount(e.PoolTokensReceived)).
		Set("strategySharesMinted", formatAmount(e.StrategySharesMinted))
}
