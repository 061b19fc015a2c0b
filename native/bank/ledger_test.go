package bank

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakingcore/core/events"
	"stakingcore/core/state"
	nativecommon "stakingcore/native/common"
	"stakingcore/storage"
)

var (
	note  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	weth  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

func newTestLedger(t *testing.T) (*Ledger, *state.Manager, *events.Collector) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	collector := &events.Collector{}
	ledger := NewLedger(mgr)
	ledger.SetEmitter(collector)
	ledger.SetWrappedNative(weth)
	require.NoError(t, ledger.RegisterToken(Token{Address: note, Symbol: "NOTE", Decimals: 8}))
	require.NoError(t, ledger.RegisterToken(Token{Address: weth, Symbol: "WETH", Decimals: 18}))
	return ledger, mgr, collector
}

func balance(t *testing.T, l *Ledger, token, account common.Address) *big.Int {
	t.Helper()
	v, err := l.BalanceOf(token, account)
	require.NoError(t, err)
	return v
}

func TestRegisterTokenRejectsDuplicates(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	require.ErrorIs(t, ledger.RegisterToken(Token{Address: note, Symbol: "NOTE"}), errTokenExists)

	tok, err := ledger.Token(note)
	require.NoError(t, err)
	require.Equal(t, uint8(8), tok.Decimals)

	_, err = ledger.Token(common.HexToAddress("0xdead"))
	require.ErrorIs(t, err, errUnknownToken)
}

func TestMintTransferBurn(t *testing.T) {
	ledger, _, collector := newTestLedger(t)
	require.NoError(t, ledger.Mint(note, alice, big.NewInt(1_000)))
	require.NoError(t, ledger.Transfer(note, alice, bob, big.NewInt(400)))
	require.NoError(t, ledger.Burn(note, bob, big.NewInt(100)))

	require.Equal(t, big.NewInt(600), balance(t, ledger, note, alice))
	require.Equal(t, big.NewInt(300), balance(t, ledger, note, bob))
	supply, err := ledger.TotalSupply(note)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(900), supply)
	require.Len(t, collector.OfType(events.TypeTokenTransfer), 3)

	require.ErrorIs(t, ledger.Transfer(note, bob, alice, big.NewInt(301)), errInsufficientBalance)
	require.ErrorIs(t, ledger.Transfer(note, bob, alice, big.NewInt(-1)), errInvalidAmount)
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(note, alice, big.NewInt(1_000)))
	require.NoError(t, ledger.Approve(note, alice, bob, big.NewInt(250)))

	require.NoError(t, ledger.TransferFrom(note, bob, alice, bob, big.NewInt(200)))
	allowance, err := ledger.Allowance(note, alice, bob)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), allowance)
	require.ErrorIs(t, ledger.TransferFrom(note, bob, alice, bob, big.NewInt(51)), errInsufficientAllow)

	require.NoError(t, ledger.Approve(note, alice, bob, nativecommon.MaxUint256))
	require.NoError(t, ledger.TransferFrom(note, bob, alice, bob, big.NewInt(500)))
	allowance, err = ledger.Allowance(note, alice, bob)
	require.NoError(t, err)
	require.True(t, nativecommon.IsMaxUint256(allowance))
}

func TestWrapAndUnwrapNative(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(NativeAsset, alice, big.NewInt(5_000)))

	require.NoError(t, ledger.Wrap(alice, big.NewInt(2_000)))
	require.Equal(t, big.NewInt(3_000), balance(t, ledger, NativeAsset, alice))
	require.Equal(t, big.NewInt(2_000), balance(t, ledger, weth, alice))
	require.Equal(t, big.NewInt(2_000), balance(t, ledger, NativeAsset, weth))

	require.NoError(t, ledger.Unwrap(alice, big.NewInt(500)))
	require.Equal(t, big.NewInt(3_500), balance(t, ledger, NativeAsset, alice))
	require.Equal(t, big.NewInt(1_500), balance(t, ledger, weth, alice))
}

func TestFailedTransferRevertsInsideAtomic(t *testing.T) {
	ledger, mgr, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(note, alice, big.NewInt(100)))
	require.NoError(t, mgr.Commit())

	err := mgr.Atomic(func() error {
		if err := ledger.Transfer(note, alice, bob, big.NewInt(60)); err != nil {
			return err
		}
		return ledger.Transfer(note, alice, bob, big.NewInt(60))
	})
	require.ErrorIs(t, err, errInsufficientBalance)
	require.Equal(t, big.NewInt(100), balance(t, ledger, note, alice))
	require.Equal(t, 0, balance(t, ledger, note, bob).Sign())
}
