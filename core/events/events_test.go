package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestTokenTransferOmitsZeroParties(t *testing.T) {
	token := common.HexToAddress("0xa1")
	to := common.HexToAddress("0xe3")
	ev := TokenTransfer{Token: token, To: to, Amount: big.NewInt(42)}.Event()

	require.Equal(t, TypeTokenTransfer, ev.Type)
	require.Equal(t, token.Hex(), ev.Attributes["token"])
	require.Equal(t, to.Hex(), ev.Attributes["to"])
	require.Equal(t, "42", ev.Attributes["amount"])
	_, ok := ev.Attributes["from"]
	require.False(t, ok, "mint should not carry a sender")
}

func TestStakingMintedDefaultsNilAmounts(t *testing.T) {
	ev := StakingMinted{Account: common.HexToAddress("0xe3"), ReceiptMinted: big.NewInt(5)}.Event()
	require.Equal(t, "5", ev.Attributes["receiptMinted"])
	require.Equal(t, "0", ev.Attributes["wethChange"])
}

func TestCollectorFiltersAndResets(t *testing.T) {
	c := &Collector{}
	c.Emit(TokenTransfer{Amount: big.NewInt(1)})
	c.Emit(TokenApproval{Amount: big.NewInt(2)})
	c.Emit(TokenTransfer{Amount: big.NewInt(3)})

	require.Len(t, c.Events(), 3)
	require.Len(t, c.OfType(TypeTokenTransfer), 2)
	require.Len(t, c.OfType(TypeTokenApproval), 1)

	c.Reset()
	require.Empty(t, c.Events())
}

func TestFanOutSkipsNilEmitters(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	fan := FanOut{a, nil, b}
	fan.Emit(TokenTransfer{Amount: big.NewInt(1)})
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}
