package treasury

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "stakingcore/native/common"
	"stakingcore/native/exchange"
)

// Config wires a treasury engine to its addresses and initial roles.
type Config struct {
	// Address is the account holding treasury assets. It is the maker of
	// every order the treasury signs.
	Address common.Address
	Owner   common.Address
	Manager common.Address
	NOTE    common.Address
	WETH    common.Address
	// PriceWindow is the pool TWAP window NOTE purchases are bounded by.
	PriceWindow time.Duration
}

// Params is the owner-mutable configuration persisted in state.
type Params struct {
	Owner                common.Address
	Manager              common.Address
	PriceWindowSecs      uint64
	NOTEPurchaseLimitSet bool
	NOTEPurchaseLimitBps uint32
}

// Permission gates DEX-routed trades of one token on behalf of one target.
type Permission struct {
	Allowed    bool
	Dexes      nativecommon.Set[exchange.DexID]
	TradeTypes nativecommon.Set[exchange.TradeType]
}

// Permits reports whether a trade of kind on dex is allowed.
func (p Permission) Permits(dex exchange.DexID, kind exchange.TradeType) bool {
	return p.Allowed && p.Dexes.Has(dex) && p.TradeTypes.Has(kind)
}

type permissionRecord struct {
	Allowed    bool
	Dexes      []byte
	TradeTypes []byte
}

func (p Permission) record() permissionRecord {
	rec := permissionRecord{Allowed: p.Allowed}
	for _, d := range p.Dexes.Sorted() {
		rec.Dexes = append(rec.Dexes, byte(d))
	}
	for _, tt := range p.TradeTypes.Sorted() {
		rec.TradeTypes = append(rec.TradeTypes, byte(tt))
	}
	return rec
}

func (r permissionRecord) permission() Permission {
	p := Permission{
		Allowed:    r.Allowed,
		Dexes:      nativecommon.NewSet[exchange.DexID](),
		TradeTypes: nativecommon.NewSet[exchange.TradeType](),
	}
	for _, d := range r.Dexes {
		p.Dexes.Add(exchange.DexID(d))
	}
	for _, tt := range r.TradeTypes {
		p.TradeTypes.Add(exchange.TradeType(tt))
	}
	return p
}

// InvestRequest invests idle WETH (plus optional NOTE) held by the treasury
// into the staking core's pool position. The NOTE-weighted portion of
// WETHAmount is swapped for NOTE first.
type InvestRequest struct {
	WETHAmount       *big.Int
	NOTEAmount       *big.Int
	MinNOTEOut       *big.Int
	MinPoolTokensOut *big.Int
	Deadline         uint64
}

// InvestResult reports the amounts moved by an investment.
type InvestResult struct {
	WETHSwapped *big.Int
	NOTEBought  *big.Int
	NOTEJoined  *big.Int
	WETHJoined  *big.Int
	PoolTokens  *big.Int
}

// ReinvestTrade describes how one slice of a harvested reward is sold for a
// pool asset. The sell token, buy token and amount are filled in by the
// engine.
type ReinvestTrade struct {
	Dex       exchange.DexID
	TradeType exchange.TradeType
	Limit     *big.Int
	Deadline  uint64
	Path      []common.Address
	Order     *exchange.SignedOrder
}

// ReinvestParams selects the reward to reinvest into a vault and the trades
// converting it into the vault pool's two assets.
type ReinvestParams struct {
	RewardToken      common.Address
	Primary          ReinvestTrade
	Secondary        ReinvestTrade
	MinPoolTokensOut *big.Int
}

// ReinvestResult carries the values reconciled by a vault reinvestment.
// PrimaryAmount and SecondaryAmount are the pool assets joined, in pool token
// order.
type ReinvestResult struct {
	RewardToken          common.Address
	PrimaryAmount        *big.Int
	SecondaryAmount      *big.Int
	PoolTokensReceived   *big.Int
	StrategySharesMinted *big.Int
}
