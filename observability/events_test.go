package observability

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"stakingcore/core/events"
)

func TestEventsCountsCommittedTypes(t *testing.T) {
	m := Events()
	token := common.HexToAddress("0xa1")
	label := token.Hex()
	before := testutil.ToFloat64(m.committed.WithLabelValues(events.TypeTokenTransfer))
	transfersBefore := testutil.ToFloat64(m.transfers.WithLabelValues(strings.ToLower(label)))

	m.Emit(events.TokenTransfer{Token: token, Amount: big.NewInt(1)})
	m.Emit(nil)

	require.Equal(t, before+1, testutil.ToFloat64(m.committed.WithLabelValues(events.TypeTokenTransfer)))
	require.Equal(t, transfersBefore+1, testutil.ToFloat64(m.transfers.WithLabelValues(strings.ToLower(label))))
}

func TestObserveSplitsErrors(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.errors.WithLabelValues("staking", "redeem", "409"))
	m.Observe("staking", "redeem", 409, time.Millisecond)
	m.Observe("staking", "redeem", 200, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.errors.WithLabelValues("staking", "redeem", "409")))
}
