package treasury

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/native/exchange"
	"stakingcore/native/oracle"
)

// ValidateOrderSignature implements exchange.WalletValidator. The venue calls
// it for every fill of an order made by the treasury; signature is the
// manager's 65-byte EthSign signature over hash. An order is accepted only
// when it is open, fee free, sells a non-WETH treasury asset for WETH and
// prices that asset inside the configured oracle corridor.
func (e *Engine) ValidateOrderSignature(order exchange.Order, hash common.Hash, signature []byte) error {
	params, err := e.Params()
	if err != nil {
		return err
	}
	signer, err := exchange.RecoverEthSigner(hash, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidSignature, err)
	}
	if signer != params.Manager || params.Manager == (common.Address{}) {
		return errInvalidSignature
	}
	order = order.Normalised()
	switch {
	case order.Maker != e.address:
		return fmt.Errorf("%w: maker is not the treasury", errInvalidOrder)
	case order.Taker != (common.Address{}):
		return fmt.Errorf("%w: taker must be open", errInvalidOrder)
	case order.Sender != (common.Address{}):
		return fmt.Errorf("%w: sender must be open", errInvalidOrder)
	case order.FeeRecipient != (common.Address{}):
		return fmt.Errorf("%w: fee recipient must be empty", errInvalidOrder)
	case order.MakerFee.Sign() != 0 || order.TakerFee.Sign() != 0:
		return fmt.Errorf("%w: fees must be zero", errInvalidOrder)
	case order.MakerToken == e.weth:
		return fmt.Errorf("%w: WETH cannot be sold", errInvalidOrder)
	case order.TakerToken != e.weth:
		return fmt.Errorf("%w: taker token must be WETH", errInvalidOrder)
	case order.MakerAmount.Sign() == 0 || order.TakerAmount.Sign() == 0:
		return fmt.Errorf("%w: empty order", errInvalidOrder)
	}
	return e.checkCorridor(order.MakerToken, order.MakerAmount, order.TakerAmount)
}

// checkCorridor requires wethAmount to be worth at least the oracle value of
// sellAmount less the token's slippage limit.
func (e *Engine) checkCorridor(token common.Address, sellAmount, wethAmount *big.Int) error {
	name, ok, err := e.PriceOracle(token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("treasury: %s: %w", token.Hex(), coreerrors.ErrOracleNotDefined)
	}
	slippage, ok, err := e.SlippageLimit(token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("treasury: %s: %w", token.Hex(), coreerrors.ErrSlippageLimitNotDefined)
	}
	feed, err := e.deps.Oracles.Resolve(name)
	if err != nil {
		return fmt.Errorf("treasury: %s: %w", token.Hex(), coreerrors.ErrOracleNotDefined)
	}
	sellMeta, err := e.bank.Token(token)
	if err != nil {
		return err
	}
	wethMeta, err := e.bank.Token(e.weth)
	if err != nil {
		return err
	}
	quote, err := feed.GetRate(sellMeta.Symbol, wethMeta.Symbol)
	if err != nil {
		return fmt.Errorf("treasury: price %s: %w", sellMeta.Symbol, err)
	}
	rate, err := oracle.UnitRate(quote.Rate, sellMeta.Decimals, wethMeta.Decimals)
	if err != nil {
		return err
	}
	// wethAmount * 10000 >= sellAmount * rate * (10000 - slippage)
	floor := new(big.Rat).SetInt(sellAmount)
	floor.Mul(floor, rate)
	floor.Mul(floor, new(big.Rat).SetInt64(int64(10_000-slippage)))
	received := new(big.Rat).SetInt(new(big.Int).Mul(wethAmount, basisPoints))
	if received.Cmp(floor) < 0 {
		return fmt.Errorf("treasury: %s sold for %s WETH: %w", sellAmount, wethAmount, coreerrors.ErrPriceOutsideBounds)
	}
	return nil
}

// CancelOrder cancels an open treasury order. Only the manager may cancel.
func (e *Engine) CancelOrder(caller common.Address, order exchange.Order) error {
	return e.state.Atomic(func() error {
		if _, err := e.requireManager(caller); err != nil {
			return err
		}
		return e.deps.Venue.CancelOrder(e.address, order)
	})
}
