package oracle

import (
	"fmt"
	"math/big"
)

// UnitRate converts a whole-unit rate into a smallest-unit rate: the amount of
// quote base units per base unit of the base asset.
func UnitRate(rate *big.Rat, baseDecimals, quoteDecimals uint8) (*big.Rat, error) {
	if rate == nil || rate.Sign() <= 0 {
		return nil, fmt.Errorf("oracle: rate must be positive")
	}
	out := new(big.Rat).Set(rate)
	out.Mul(out, new(big.Rat).SetInt(pow10(quoteDecimals)))
	return out.Quo(out, new(big.Rat).SetInt(pow10(baseDecimals))), nil
}

// WholeRate is the inverse of UnitRate.
func WholeRate(rate *big.Rat, baseDecimals, quoteDecimals uint8) (*big.Rat, error) {
	return UnitRate(rate, quoteDecimals, baseDecimals)
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
