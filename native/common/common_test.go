package common

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	coreerrors "stakingcore/core/errors"
)

type flag uint8

func TestSetSortedAndMembership(t *testing.T) {
	s := NewSet[flag](3, 1)
	s.Add(2, 1)
	require.True(t, s.Has(2))
	require.False(t, s.Has(4))
	require.Equal(t, []flag{1, 2, 3}, s.Sorted())
	require.Equal(t, s, SetFromSlice(s.Sorted()))

	var empty Set[flag]
	require.False(t, empty.Has(1))
}

func TestCheckU256Bounds(t *testing.T) {
	require.NoError(t, CheckU256(MaxUint256))
	require.Error(t, CheckU256(new(big.Int).Add(MaxUint256, big.NewInt(1))))
	require.Error(t, CheckU256(big.NewInt(-1)))
	require.True(t, IsMaxUint256(new(big.Int).Set(MaxUint256)))
	require.False(t, Positive(big.NewInt(0)))
	require.True(t, Positive(big.NewInt(1)))
}

func TestMulDivRoundsDown(t *testing.T) {
	require.Equal(t, big.NewInt(3), MulDiv(big.NewInt(10), big.NewInt(1), big.NewInt(3)))
	// Intermediate product wider than 256 bits.
	got := MulDiv(MaxUint256, MaxUint256, MaxUint256)
	require.Equal(t, 0, got.Cmp(MaxUint256))
}

func TestCapabilityChecksAreIndependent(t *testing.T) {
	owner := ethcommon.HexToAddress("0x01")
	manager := ethcommon.HexToAddress("0x02")

	require.NoError(t, RequireOwner("test", owner, owner))
	require.True(t, errors.Is(RequireOwner("test", owner, manager), coreerrors.ErrNotOwner))
	require.NoError(t, RequireManager("test", manager, manager))
	require.True(t, errors.Is(RequireManager("test", manager, owner), coreerrors.ErrNotManager))
	require.True(t, errors.Is(RequireManager("test", ethcommon.Address{}, ethcommon.Address{}), coreerrors.ErrNotManager))
}

func TestGuard(t *testing.T) {
	require.NoError(t, Guard(nil, "staking"))
	require.True(t, errors.Is(Guard(StaticPauses{"staking": true}, "staking"), ErrModulePaused))
	require.NoError(t, Guard(StaticPauses{"staking": true}, "treasury"))
}
