package staking

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RedemptionPolicy decides what a successful redemption does to the
// redeemer's cooldown.
type RedemptionPolicy uint8

const (
	// RedemptionResetsCoolDown clears the cooldown after every redemption. A
	// holder must start a new cooldown before redeeming again.
	RedemptionResetsCoolDown RedemptionPolicy = iota
	// RedemptionKeepsWindowOpen keeps the window open and lowers the
	// remaining redeemable cap by the pool tokens released.
	RedemptionKeepsWindowOpen
)

func (p RedemptionPolicy) String() string {
	switch p {
	case RedemptionResetsCoolDown:
		return "reset"
	case RedemptionKeepsWindowOpen:
		return "keep-open"
	default:
		return fmt.Sprintf("RedemptionPolicy(%d)", uint8(p))
	}
}

// ParseRedemptionPolicy parses the names produced by String.
func ParseRedemptionPolicy(name string) (RedemptionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "reset":
		return RedemptionResetsCoolDown, nil
	case "keep-open", "keep_open":
		return RedemptionKeepsWindowOpen, nil
	default:
		return 0, fmt.Errorf("staking: unknown redemption policy %q", name)
	}
}

// ShortfallPolicy decides how an extraction above the per-window cap is
// handled.
type ShortfallPolicy uint8

const (
	// ShortfallClamp extracts the cap when more is requested.
	ShortfallClamp ShortfallPolicy = iota
	// ShortfallReject fails requests above the cap.
	ShortfallReject
)

func (p ShortfallPolicy) String() string {
	switch p {
	case ShortfallClamp:
		return "clamp"
	case ShortfallReject:
		return "reject"
	default:
		return fmt.Sprintf("ShortfallPolicy(%d)", uint8(p))
	}
}

// ParseShortfallPolicy parses the names produced by String.
func ParseShortfallPolicy(name string) (ShortfallPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "clamp":
		return ShortfallClamp, nil
	case "reject":
		return ShortfallReject, nil
	default:
		return 0, fmt.Errorf("staking: unknown shortfall policy %q", name)
	}
}

// CoolDownState is the position of an account in the redemption state
// machine.
type CoolDownState uint8

const (
	// StateActive accounts have no cooldown and may transfer freely.
	StateActive CoolDownState = iota
	// StateCoolingDown accounts wait for the redemption window to open.
	StateCoolingDown
	// StateRedemptionWindow accounts may redeem.
	StateRedemptionWindow
	// StateWindowExpired accounts missed their window. Transfers stay blocked
	// until the cooldown is stopped or restarted.
	StateWindowExpired
)

func (s CoolDownState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCoolingDown:
		return "cooling-down"
	case StateRedemptionWindow:
		return "redemption-window"
	case StateWindowExpired:
		return "window-expired"
	default:
		return "unknown"
	}
}

// Config wires an engine to its collaborators and initial parameters.
type Config struct {
	// Address is the account holding the engine's pool tokens and gauge stake.
	Address  common.Address
	Owner    common.Address
	Treasury common.Address
	NOTE     common.Address
	WETH     common.Address
	Gauge    common.Address

	CoolDown           time.Duration
	RedemptionWindow   time.Duration
	ShortfallCapBps    uint32
	ShortfallCoolDown  time.Duration
	VotingOracleWindow time.Duration
	RedemptionPolicy   RedemptionPolicy
	ShortfallPolicy    ShortfallPolicy
}

// Params is the owner-mutable configuration persisted in state.
type Params struct {
	Owner                common.Address
	Treasury             common.Address
	Gauge                common.Address
	CoolDownSeconds      uint64
	RedemptionWindowSecs uint64
	ShortfallCapBps      uint32
	ShortfallCoolDownSec uint64
	VotingOracleWindow   uint64
	RedemptionPolicy     RedemptionPolicy
	ShortfallPolicy      ShortfallPolicy
}

func (p Params) coolDown() time.Duration {
	return time.Duration(p.CoolDownSeconds) * time.Second
}

// Account is the stored receipt ledger entry of one holder. CoolDownStart is
// zero when no cooldown is running.
type Account struct {
	Balance       *big.Int
	CoolDownStart uint64
	MaxRedeemable *big.Int
	Delegate      common.Address
}

func newAccount() *Account {
	return &Account{Balance: big.NewInt(0), MaxRedeemable: big.NewInt(0)}
}

// AccountView reports an account together with its derived cooldown state.
type AccountView struct {
	Address        common.Address
	Balance        *big.Int
	PoolTokenShare *big.Int
	State          CoolDownState
	CoolDownStart  uint64
	WindowOpens    uint64
	WindowCloses   uint64
	MaxRedeemable  *big.Int
	Delegate       common.Address
	Votes          *big.Int
}

// TokenClaim is the projected underlying value of a receipt amount.
type TokenClaim struct {
	PoolTokens *big.Int
	NOTE       *big.Int
	WETH       *big.Int
}

// RedeemRequest describes a redemption. ToETH releases the WETH leg as the
// native asset.
type RedeemRequest struct {
	Amount     *big.Int
	MinNOTEOut *big.Int
	MinWETHOut *big.Int
	ToETH      bool
}

// RedeemResult reports the assets released by a redemption.
type RedeemResult struct {
	PoolTokens *big.Int
	NOTEOut    *big.Int
	WETHOut    *big.Int
}

// ShortfallResult reports a governance extraction.
type ShortfallResult struct {
	PoolTokens *big.Int
	NOTEOut    *big.Int
	WETHOut    *big.Int
}

type checkpoint struct {
	Timestamp uint64
	Votes     *big.Int
}
