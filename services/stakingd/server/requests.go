package server

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gmath "github.com/ethereum/go-ethereum/common/math"

	"stakingcore/native/exchange"
	"stakingcore/native/treasury"
)

// Amount fields accept decimal or 0x-prefixed strings.
type amount = gmath.HexOrDecimal256

func toBig(v *amount) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(v))
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type mintRequest struct {
	Source        string  `json:"source"`
	PoolTokens    *amount `json:"poolTokens,omitempty"`
	NOTEAmount    *amount `json:"noteAmount,omitempty"`
	WETHAmount    *amount `json:"wethAmount,omitempty"`
	ETHAmount     *amount `json:"ethAmount,omitempty"`
	MinPoolTokens *amount `json:"minPoolTokens,omitempty"`
}

type redeemRequest struct {
	Amount     *amount `json:"amount"`
	MinNOTEOut *amount `json:"minNoteOut,omitempty"`
	MinWETHOut *amount `json:"minWethOut,omitempty"`
	ToETH      bool    `json:"toEth,omitempty"`
}

type transferRequest struct {
	To     common.Address `json:"to"`
	Amount *amount        `json:"amount"`
}

type delegateRequest struct {
	Delegatee common.Address `json:"delegatee"`
}

type orderRequest struct {
	Maker        common.Address `json:"maker"`
	Taker        common.Address `json:"taker"`
	FeeRecipient common.Address `json:"feeRecipient"`
	Sender       common.Address `json:"sender"`
	MakerToken   common.Address `json:"makerToken"`
	TakerToken   common.Address `json:"takerToken"`
	MakerAmount  *amount        `json:"makerAmount"`
	TakerAmount  *amount        `json:"takerAmount"`
	MakerFee     *amount        `json:"makerFee,omitempty"`
	TakerFee     *amount        `json:"takerFee,omitempty"`
	Expiration   uint64         `json:"expiration"`
	Salt         *amount        `json:"salt"`
}

func (o orderRequest) order() exchange.Order {
	return exchange.Order{
		Maker:        o.Maker,
		Taker:        o.Taker,
		FeeRecipient: o.FeeRecipient,
		Sender:       o.Sender,
		MakerToken:   o.MakerToken,
		TakerToken:   o.TakerToken,
		MakerAmount:  toBig(o.MakerAmount),
		TakerAmount:  toBig(o.TakerAmount),
		MakerFee:     toBig(o.MakerFee),
		TakerFee:     toBig(o.TakerFee),
		Expiration:   o.Expiration,
		Salt:         toBig(o.Salt),
	}
}

type signedOrderRequest struct {
	Order     orderRequest  `json:"order"`
	Signature hexutil.Bytes `json:"signature"`
}

type tradeRequest struct {
	Dex       string              `json:"dex"`
	TradeType string              `json:"tradeType"`
	SellToken common.Address      `json:"sellToken"`
	BuyToken  common.Address      `json:"buyToken"`
	Amount    *amount             `json:"amount"`
	Limit     *amount             `json:"limit,omitempty"`
	Deadline  uint64              `json:"deadline,omitempty"`
	Path      []common.Address    `json:"path,omitempty"`
	Order     *signedOrderRequest `json:"order,omitempty"`
}

func (t tradeRequest) parse() (exchange.DexID, exchange.Trade, error) {
	dex, err := exchange.ParseDexID(t.Dex)
	if err != nil {
		return 0, exchange.Trade{}, err
	}
	kind, err := exchange.ParseTradeType(t.TradeType)
	if err != nil {
		return 0, exchange.Trade{}, err
	}
	if t.Amount == nil {
		return 0, exchange.Trade{}, fmt.Errorf("amount required")
	}
	trade := exchange.Trade{
		TradeType: kind,
		SellToken: t.SellToken,
		BuyToken:  t.BuyToken,
		Amount:    toBig(t.Amount),
		Limit:     toBig(t.Limit),
		Deadline:  t.Deadline,
		Path:      t.Path,
	}
	if t.Order != nil {
		trade.Order = &exchange.SignedOrder{Order: t.Order.Order.order(), Signature: t.Order.Signature}
	}
	return dex, trade, nil
}

type investRequest struct {
	WETHAmount       *amount `json:"wethAmount,omitempty"`
	NOTEAmount       *amount `json:"noteAmount,omitempty"`
	MinNOTEOut       *amount `json:"minNoteOut,omitempty"`
	MinPoolTokensOut *amount `json:"minPoolTokensOut,omitempty"`
	Deadline         uint64  `json:"deadline,omitempty"`
}

type reinvestLeg struct {
	Dex       string              `json:"dex"`
	TradeType string              `json:"tradeType"`
	Limit     *amount             `json:"limit,omitempty"`
	Deadline  uint64              `json:"deadline,omitempty"`
	Path      []common.Address    `json:"path,omitempty"`
	Order     *signedOrderRequest `json:"order,omitempty"`
}

func (l reinvestLeg) parse() (treasury.ReinvestTrade, error) {
	dex, err := exchange.ParseDexID(l.Dex)
	if err != nil {
		return treasury.ReinvestTrade{}, err
	}
	kind, err := exchange.ParseTradeType(l.TradeType)
	if err != nil {
		return treasury.ReinvestTrade{}, err
	}
	leg := treasury.ReinvestTrade{
		Dex:       dex,
		TradeType: kind,
		Limit:     toBig(l.Limit),
		Deadline:  l.Deadline,
		Path:      l.Path,
	}
	if l.Order != nil {
		leg.Order = &exchange.SignedOrder{Order: l.Order.Order.order(), Signature: l.Order.Signature}
	}
	return leg, nil
}

type reinvestRequest struct {
	Vault            common.Address `json:"vault"`
	RewardToken      common.Address `json:"rewardToken"`
	Primary          reinvestLeg    `json:"primary"`
	Secondary        reinvestLeg    `json:"secondary"`
	MinPoolTokensOut *amount        `json:"minPoolTokensOut,omitempty"`
}

type coolDownRequest struct {
	CoolDown         string `json:"coolDown,omitempty"`
	RedemptionWindow string `json:"redemptionWindow,omitempty"`
}

type swapFeeRequest struct {
	Fee string `json:"fee"`
}

type shortfallRequest struct {
	Amount *amount `json:"amount"`
}

type managerRequest struct {
	Manager common.Address `json:"manager"`
}

type oracleRequest struct {
	Token  common.Address `json:"token"`
	Oracle string         `json:"oracle"`
}

type slippageRequest struct {
	Token common.Address `json:"token"`
	Bps   uint32         `json:"bps"`
}
