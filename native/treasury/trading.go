package treasury

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	coreerrors "stakingcore/core/errors"
	"stakingcore/native/exchange"
)

func (e *Engine) checkPermission(target common.Address, dex exchange.DexID, trade exchange.Trade) error {
	perm, err := e.TradingPermission(target, trade.SellToken)
	if err != nil {
		return err
	}
	if !perm.Permits(dex, trade.TradeType) {
		return fmt.Errorf("treasury: %s %s of %s for %s: %w", dex, trade.TradeType, trade.SellToken.Hex(), target.Hex(), coreerrors.ErrPermissionDenied)
	}
	return nil
}

// ExecuteTrade sells treasury assets through dex. The manager must hold a
// permission for the sell token, the venue and the trade type.
func (e *Engine) ExecuteTrade(caller common.Address, dex exchange.DexID, trade exchange.Trade) (*big.Int, *big.Int, error) {
	var sold, bought *big.Int
	err := e.state.Atomic(func() error {
		if _, err := e.requireManager(caller); err != nil {
			return err
		}
		if err := e.checkPermission(e.address, dex, trade); err != nil {
			return err
		}
		var err error
		sold, bought, err = e.deps.Trader.ExecuteTrade(e.address, dex, trade)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sold, bought, nil
}

// SimulateTrade returns what ExecuteTrade would return against the current
// state without changing it.
func (e *Engine) SimulateTrade(caller common.Address, dex exchange.DexID, trade exchange.Trade) (*big.Int, *big.Int, error) {
	if _, err := e.requireManager(caller); err != nil {
		return nil, nil, err
	}
	if err := e.checkPermission(e.address, dex, trade); err != nil {
		return nil, nil, err
	}
	return e.deps.Trader.Simulate(e.address, dex, trade)
}
