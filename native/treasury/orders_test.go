package treasury

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	coreerrors "stakingcore/core/errors"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/exchange"
)

// configureToken sets the oracle and a 10% slippage limit for token, funds
// the treasury and approves the venue.
func configureToken(t *testing.T, f *fixture, token common.Address, funding *big.Int) {
	t.Helper()
	require.NoError(t, f.treasury.SetPriceOracle(deployer, token, oracleName))
	require.NoError(t, f.treasury.SetSlippageLimit(deployer, token, 1_000))
	require.NoError(t, f.treasury.ApproveToken(deployer, token, nativecommon.MaxUint256))
	f.fund(t, token, funding)
}

func (f *fixture) order(makerToken common.Address, makerAmount, takerAmount *big.Int) exchange.Order {
	return exchange.Order{
		Maker:       treasuryAddr,
		MakerToken:  makerToken,
		TakerToken:  weth,
		MakerAmount: makerAmount,
		TakerAmount: takerAmount,
		Expiration:  uint64(f.now.Add(time.Hour).Unix()),
		Salt:        big.NewInt(1),
	}
}

func signWith(t *testing.T, key *ecdsa.PrivateKey, order exchange.Order) []byte {
	t.Helper()
	sig, err := exchange.SignEthSign(order.Hash(), key)
	require.NoError(t, err)
	return sig[:65]
}

func (f *fixture) fill(t *testing.T, order exchange.Order, key *ecdsa.PrivateKey) error {
	t.Helper()
	signature := exchange.WalletSignature(signWith(t, key, order))
	return f.mgr.Atomic(func() error {
		_, err := f.venue.FillOrder(whale, order, order.TakerAmount, signature)
		return err
	})
}

func (f *fixture) validate(t *testing.T, order exchange.Order) error {
	t.Helper()
	return f.treasury.ValidateOrderSignature(order, order.Hash(), signWith(t, f.managerKey, order))
}

func TestDAIOrdersInsideCorridorFill(t *testing.T) {
	f := newFixture(t)
	configureToken(t, f, dai, units(10_000, 18))

	cases := []struct {
		name string
		dai  int64
	}{
		{"near oracle price", 2_700},
		{"below oracle price", 2_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := f.order(dai, units(tc.dai, 18), units(1, 18))
			wethBefore := f.balance(t, weth, treasuryAddr)
			daiBefore := f.balance(t, dai, whale)
			require.NoError(t, f.fill(t, order, f.managerKey))
			require.Equal(t, new(big.Int).Add(wethBefore, units(1, 18)), f.balance(t, weth, treasuryAddr))
			require.Equal(t, new(big.Int).Add(daiBefore, units(tc.dai, 18)), f.balance(t, dai, whale))
		})
	}
}

func TestDAIOrderOutsideCorridorFails(t *testing.T) {
	f := newFixture(t)
	configureToken(t, f, dai, units(10_000, 18))
	order := f.order(dai, units(5_000, 18), units(1, 18))
	before := f.balance(t, dai, treasuryAddr)

	require.ErrorIs(t, f.fill(t, order, f.managerKey), coreerrors.ErrPriceOutsideBounds)
	require.Equal(t, before, f.balance(t, dai, treasuryAddr))
	info, err := f.venue.GetOrderInfo(order)
	require.NoError(t, err)
	require.Equal(t, 0, info.TakerAmountFilled.Sign())
}

func TestWBTCCorridorUsesTokenDecimals(t *testing.T) {
	f := newFixture(t)
	configureToken(t, f, wbtc, units(10, 8))

	good := f.order(wbtc, units(1, 8), milli(14_300, 18))
	require.NoError(t, f.fill(t, good, f.managerKey))

	bad := f.order(wbtc, milli(1_300, 8), milli(12_300, 18))
	require.ErrorIs(t, f.fill(t, bad, f.managerKey), coreerrors.ErrPriceOutsideBounds)
}

func TestOrderSignedByOtherKeyFails(t *testing.T) {
	f := newFixture(t)
	configureToken(t, f, dai, units(10_000, 18))
	stranger, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	order := f.order(dai, units(2_700, 18), units(1, 18))
	require.ErrorIs(t, f.fill(t, order, stranger), errInvalidSignature)
}

func TestOrderShapeRejected(t *testing.T) {
	f := newFixture(t)
	configureToken(t, f, dai, units(10_000, 18))
	base := f.order(dai, units(2_700, 18), units(1, 18))

	cases := []struct {
		name   string
		mutate func(*exchange.Order)
	}{
		{"taker token not WETH", func(o *exchange.Order) { o.TakerToken = usdc }},
		{"fee recipient", func(o *exchange.Order) { o.FeeRecipient = whale }},
		{"sender", func(o *exchange.Order) { o.Sender = whale }},
		{"taker", func(o *exchange.Order) { o.Taker = whale }},
		{"maker fee", func(o *exchange.Order) { o.MakerFee = big.NewInt(1) }},
		{"taker fee", func(o *exchange.Order) { o.TakerFee = big.NewInt(1) }},
		{"foreign maker", func(o *exchange.Order) { o.Maker = whale }},
		{"WETH maker token", func(o *exchange.Order) { o.MakerToken = weth }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := base
			tc.mutate(&order)
			require.ErrorIs(t, f.validate(t, order), errInvalidOrder)
		})
	}
	require.NoError(t, f.validate(t, base))
}

func TestOrderRequiresOracleAndSlippage(t *testing.T) {
	f := newFixture(t)
	order := f.order(wbtc, units(1, 8), milli(14_300, 18))
	require.ErrorIs(t, f.validate(t, order), coreerrors.ErrOracleNotDefined)

	require.NoError(t, f.treasury.SetPriceOracle(deployer, wbtc, oracleName))
	require.ErrorIs(t, f.validate(t, order), coreerrors.ErrSlippageLimitNotDefined)

	require.NoError(t, f.treasury.SetSlippageLimit(deployer, wbtc, 1_000))
	require.NoError(t, f.validate(t, order))
}

func TestOnlyManagerCancels(t *testing.T) {
	f := newFixture(t)
	configureToken(t, f, dai, units(10_000, 18))
	order := f.order(dai, units(4_000, 18), units(1, 18))
	info, err := f.venue.GetOrderInfo(order)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderFillable, info.Status)

	require.ErrorIs(t, f.treasury.CancelOrder(deployer, order), coreerrors.ErrNotManager)
	info, err = f.venue.GetOrderInfo(order)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderFillable, info.Status)

	require.NoError(t, f.treasury.CancelOrder(f.manager, order))
	info, err = f.venue.GetOrderInfo(order)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderCancelled, info.Status)
}
