package balancer

import (
	"math"
	"math/big"
)

var (
	// One is the 18-decimal fixed point unit used for weights and fees.
	One = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	minSwapFee = big.NewInt(1e12)
	maxSwapFee = big.NewInt(1e17)

	// minimumPoolTokens are locked to the zero address on initialisation.
	minimumPoolTokens = big.NewInt(1e6)
)

const floatPrec = 256

func toFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}

func fixedToFloat(x *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(x, One).Float64()
	return f
}

func ratio(num, den *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(num, den).Float64()
	return f
}

// mulDown returns floor(x * f).
func mulDown(x *big.Int, f float64) *big.Int {
	if f <= 0 || x.Sign() == 0 {
		return big.NewInt(0)
	}
	bf := new(big.Float).SetPrec(floatPrec).SetInt(x)
	bf.Mul(bf, new(big.Float).SetPrec(floatPrec).SetFloat64(f))
	out, _ := bf.Int(nil)
	return out
}

// mulUp returns ceil(x * f) plus one unit of slack for float error.
func mulUp(x *big.Int, f float64) *big.Int {
	out := mulDown(x, f)
	return out.Add(out, big.NewInt(1))
}

// invariant is prod(balance_i ^ weight_i) over upscaled balances.
func invariant(balances, weights [2]*big.Int) float64 {
	out := 1.0
	for i := range balances {
		out *= math.Pow(toFloat(balances[i]), fixedToFloat(weights[i]))
	}
	return out
}

// poolTokensOutGivenExactTokensIn follows the weighted-pool exact-tokens-in
// join: the portion of each deposit above the proportional ratio pays the swap
// fee.
func poolTokensOutGivenExactTokensIn(balances, weights, amountsIn [2]*big.Int, supply, swapFee *big.Int) *big.Int {
	var ratiosWithFee [2]float64
	invariantRatioWithFees := 0.0
	for i := range balances {
		ratiosWithFee[i] = 1 + ratio(amountsIn[i], balances[i])
		invariantRatioWithFees += ratiosWithFee[i] * fixedToFloat(weights[i])
	}
	fee := fixedToFloat(swapFee)
	invariantRatio := 1.0
	for i := range balances {
		amount := ratio(amountsIn[i], balances[i])
		if ratiosWithFee[i] > invariantRatioWithFees {
			nonTaxable := invariantRatioWithFees - 1
			taxable := amount - nonTaxable
			amount = nonTaxable + taxable*(1-fee)
		}
		invariantRatio *= math.Pow(1+amount, fixedToFloat(weights[i]))
	}
	if invariantRatio <= 1 {
		return big.NewInt(0)
	}
	return mulDown(supply, invariantRatio-1)
}

// outGivenIn is the weighted-pool swap formula for an exact input amount,
// with the fee already deducted from amountIn.
func outGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn *big.Int) *big.Int {
	base := ratio(balanceIn, new(big.Int).Add(balanceIn, amountIn))
	exponent := fixedToFloat(weightIn) / fixedToFloat(weightOut)
	return mulDown(balanceOut, 1-math.Pow(base, exponent))
}

// inGivenOut is the weighted-pool swap formula for an exact output amount,
// before fees.
func inGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut *big.Int) *big.Int {
	base := ratio(balanceOut, new(big.Int).Sub(balanceOut, amountOut))
	exponent := fixedToFloat(weightOut) / fixedToFloat(weightIn)
	return mulUp(balanceIn, math.Pow(base, exponent)-1)
}

func subFee(amount, swapFee *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, swapFee)
	fee.Add(fee, new(big.Int).Sub(One, big.NewInt(1)))
	fee.Quo(fee, One)
	return new(big.Int).Sub(amount, fee)
}

func addFee(amount, swapFee *big.Int) *big.Int {
	den := new(big.Int).Sub(One, swapFee)
	num := new(big.Int).Mul(amount, One)
	num.Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return num.Quo(num, den)
}
