package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/core/types"
)

const (
	// TypeStakingMinted is emitted when receipt tokens are minted against a
	// pool-token deposit.
	TypeStakingMinted = "staking.minted"
	// TypeStakingRedeemed is emitted when receipts are burned for the
	// underlying reserve assets.
	TypeStakingRedeemed = "staking.redeemed"
	// TypeStakingCoolDownStarted marks the start of an account cooldown.
	TypeStakingCoolDownStarted = "staking.coolDownStarted"
	// TypeStakingCoolDownEnded marks an explicit stop or a redemption reset.
	TypeStakingCoolDownEnded = "staking.coolDownEnded"
	// TypeStakingTransfer is emitted for every receipt balance movement,
	// including mint (zero sender) and burn (zero receiver).
	TypeStakingTransfer = "staking.transfer"
	// TypeStakingApproval records receipt allowance updates.
	TypeStakingApproval = "staking.approval"
	// TypeStakingDelegateChanged records a new delegation target.
	TypeStakingDelegateChanged = "staking.delegateChanged"
	// TypeStakingDelegateVotesChanged records a checkpointed vote change.
	TypeStakingDelegateVotesChanged = "staking.delegateVotesChanged"
	// TypeStakingShortfallExtracted is emitted on governance extraction.
	TypeStakingShortfallExtracted = "staking.shortfallExtracted"
	// TypeStakingGaugeMigrated is emitted when staked pool tokens move to a
	// new reward gauge.
	TypeStakingGaugeMigrated = "staking.gaugeMigrated"
	// TypeStakingRewardsClaimed is emitted when gauge rewards are forwarded to
	// the treasury.
	TypeStakingRewardsClaimed = "staking.rewardsClaimed"
	// TypeStakingParamUpdated records an owner-only configuration change.
	TypeStakingParamUpdated = "staking.paramUpdated"
)

// StakingMinted captures the asset deltas of a successful mint.
type StakingMinted struct {
	Account        common.Address
	WETHChange     *big.Int
	NOTEChange     *big.Int
	PoolTokenDelta *big.Int
	ReceiptMinted  *big.Int
}

// EventType satisfies the Event interface.
func (StakingMinted) EventType() string { return TypeStakingMinted }

// Event converts the structured payload into a broadcastable event.
func (e StakingMinted) Event() *types.Event {
	return types.NewEvent(TypeStakingMinted).
		Set("account", formatAddress(e.Account)).
		Set("wethChange", formatAmount(e.WETHChange)).
		Set("noteChange", formatAmount(e.NOTEChange)).
		Set("poolTokenChange", formatAmount(e.PoolTokenDelta)).
		Set("receiptMinted", formatAmount(e.ReceiptMinted))
}

// StakingRedeemed captures the amounts released by a redemption.
type StakingRedeemed struct {
	Account          common.Address
	ReceiptBurned    *big.Int
	PoolTokensExited *big.Int
	WETHOut          *big.Int
	NOTEOut          *big.Int
	RedeemedToETH    bool
}

// EventType satisfies the Event interface.
func (StakingRedeemed) EventType() string { return TypeStakingRedeemed }

// Event converts the structured payload into a broadcastable event.
func (e StakingRedeemed) Event() *types.Event {
	return types.NewEvent(TypeStakingRedeemed).
		Set("account", formatAddress(e.Account)).
		Set("receiptBurned", formatAmount(e.ReceiptBurned)).
		Set("poolTokens", formatAmount(e.PoolTokensExited)).
		Set("wethOut", formatAmount(e.WETHOut)).
		Set("noteOut", formatAmount(e.NOTEOut)).
		Set("toETH", formatBool(e.RedeemedToETH))
}

// StakingCoolDownStarted records the cooldown snapshot.
type StakingCoolDownStarted struct {
	Account         common.Address
	Start           uint64
	RedeemWindowEnd uint64
	MaxRedeemable   *big.Int
}

// EventType satisfies the Event interface.
func (StakingCoolDownStarted) EventType() string { return TypeStakingCoolDownStarted }

// Event converts the structured payload into a broadcastable event.
func (e StakingCoolDownStarted) Event() *types.Event {
	return types.NewEvent(TypeStakingCoolDownStarted).
		Set("account", formatAddress(e.Account)).
		Set("start", formatUint(e.Start)).
		Set("redeemWindowEnd", formatUint(e.RedeemWindowEnd)).
		Set("maxRedeemable", formatAmount(e.MaxRedeemable))
}

// StakingCoolDownEnded records the end of a cooldown.
type StakingCoolDownEnded struct {
	Account common.Address
	Reason  string
}

// EventType satisfies the Event interface.
func (StakingCoolDownEnded) EventType() string { return TypeStakingCoolDownEnded }

// Event converts the structured payload into a broadcastable event.
func (e StakingCoolDownEnded) Event() *types.Event {
	return types.NewEvent(TypeStakingCoolDownEnded).
		Set("account", formatAddress(e.Account)).
		Set("reason", e.Reason)
}

// StakingTransfer mirrors an ERC-20 Transfer log for receipt tokens.
type StakingTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (StakingTransfer) EventType() string { return TypeStakingTransfer }

// Event converts the structured payload into a broadcastable event.
func (e StakingTransfer) Event() *types.Event {
	return types.NewEvent(TypeStakingTransfer).
		Set("from", formatAddress(e.From)).
		Set("to", formatAddress(e.To)).
		Set("amount", formatAmount(e.Amount))
}

// StakingApproval mirrors an ERC-20 Approval log for receipt tokens.
type StakingApproval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (StakingApproval) EventType() string { return TypeStakingApproval }

// Event converts the structured payload into a broadcastable event.
func (e StakingApproval) Event() *types.Event {
	return types.NewEvent(TypeStakingApproval).
		Set("owner", formatAddress(e.Owner)).
		Set("spender", formatAddress(e.Spender)).
		Set("amount", formatAmount(e.Amount))
}

// StakingDelegateChanged records a delegation target change.
type StakingDelegateChanged struct {
	Delegator    common.Address
	FromDelegate common.Address
	ToDelegate   common.Address
}

// EventType satisfies the Event interface.
func (StakingDelegateChanged) EventType() string { return TypeStakingDelegateChanged }

// Event converts the structured payload into a broadcastable event.
func (e StakingDelegateChanged) Event() *types.Event {
	return types.NewEvent(TypeStakingDelegateChanged).
		Set("delegator", formatAddress(e.Delegator)).
		Set("fromDelegate", formatAddress(e.FromDelegate)).
		Set("toDelegate", formatAddress(e.ToDelegate))
}

// StakingDelegateVotesChanged records a delegate's checkpointed vote balance.
type StakingDelegateVotesChanged struct {
	Delegate      common.Address
	PreviousVotes *big.Int
	NewVotes      *big.Int
}

// EventType satisfies the Event interface.
func (StakingDelegateVotesChanged) EventType() string { return TypeStakingDelegateVotesChanged }

// Event converts the structured payload into a broadcastable event.
func (e StakingDelegateVotesChanged) Event() *types.Event {
	return types.NewEvent(TypeStakingDelegateVotesChanged).
		Set("delegate", formatAddress(e.Delegate)).
		Set("previousVotes", formatAmount(e.PreviousVotes)).
		Set("newVotes", formatAmount(e.NewVotes))
}

// StakingShortfallExtracted records a governance extraction.
type StakingShortfallExtracted struct {
	Recipient        common.Address
	Requested        *big.Int
	PoolTokensExited *big.Int
	WETHOut          *big.Int
	NOTEOut          *big.Int
}

// EventType satisfies the Event interface.
func (StakingShortfallExtracted) EventType() string { return TypeStakingShortfallExtracted }

// Event converts the structured payload into a broadcastable event.
func (e StakingShortfallExtracted) Event() *types.Event {
	return types.NewEvent(TypeStakingShortfallExtracted).
		Set("recipient", formatAddress(e.Recipient)).
		Set("requested", formatAmount(e.Requested)).
		Set("poolTokens", formatAmount(e.PoolTokensExited)).
		Set("wethOut", formatAmount(e.WETHOut)).
		Set("noteOut", formatAmount(e.NOTEOut))
}

// StakingGaugeMigrated records the movement of staked pool tokens between
// gauges.
type StakingGaugeMigrated struct {
	OldGauge common.Address
	NewGauge common.Address
	Amount   *big.Int
	Version  uint64
}

// EventType satisfies the Event interface.
func (StakingGaugeMigrated) EventType() string { return TypeStakingGaugeMigrated }

// Event converts the structured payload into a broadcastable event.
func (e StakingGaugeMigrated) Event() *types.Event {
	return types.NewEvent(TypeStakingGaugeMigrated).
		Set("oldGauge", formatAddress(e.OldGauge)).
		Set("newGauge", formatAddress(e.NewGauge)).
		Set("amount", formatAmount(e.Amount)).
		Set("version", formatUint(e.Version))
}

// StakingRewardsClaimed records gauge rewards forwarded to the treasury.
type StakingRewardsClaimed struct {
	Recipient common.Address
	Token     common.Address
	Amount    *big.Int
}

// EventType satisfies the Event interface.
func (StakingRewardsClaimed) EventType() string { return TypeStakingRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e StakingRewardsClaimed) Event() *types.Event {
	return types.NewEvent(TypeStakingRewardsClaimed).
		Set("recipient", formatAddress(e.Recipient)).
		Set("token", formatAddress(e.Token)).
		Set("amount", formatAmount(e.Amount))
}

// StakingParamUpdated records an owner-only configuration change.
type StakingParamUpdated struct {
	Param string
	Value string
}

// EventType satisfies the Event interface.
func (StakingParamUpdated) EventType() string { return TypeStakingParamUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StakingParamUpdated) Event() *types.Event {
	return types.NewEvent(TypeStakingParamUpdated).
		Set("param", e.Param).
		Set("value", e.Value)
}
