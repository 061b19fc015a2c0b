package node

import (
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakingcore/config"
	"stakingcore/core/events"
	"stakingcore/native/exchange"
	"stakingcore/native/oracle"
	"stakingcore/native/staking"
	"stakingcore/storage"
)

var (
	note         = common.HexToAddress("0xa1")
	dai          = common.HexToAddress("0xa3")
	bal          = common.HexToAddress("0xa4")
	poolAddr     = common.HexToAddress("0xb1")
	treasuryAddr = common.HexToAddress("0xd2")
	owner        = common.HexToAddress("0xe1")
	manager      = common.HexToAddress("0xe2")
	whale        = common.HexToAddress("0xe3")
)

func loadConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("../config/testdata/stakingd.toml")
	require.NoError(t, err)
	return cfg
}

func clock() time.Time { return time.Unix(1_700_000_000, 0) }

func TestGenesisInitialisesModules(t *testing.T) {
	collector := &events.Collector{}
	n, err := New(loadConfig(t), storage.NewMemDB(), WithClock(clock), WithSink(collector))
	require.NoError(t, err)

	params, err := n.Staking().Params()
	require.NoError(t, err)
	require.Equal(t, owner, params.Owner)
	require.Equal(t, uint64((240 * time.Hour).Seconds()), params.CoolDownSeconds)
	require.Equal(t, uint32(5_000), params.ShortfallCapBps)
	require.Equal(t, staking.RedemptionKeepsWindowOpen, params.RedemptionPolicy)

	tokens, reserves, err := n.StakingPool().Reserves()
	require.NoError(t, err)
	require.Equal(t, note, tokens[0])
	require.Equal(t, "100000000000000", reserves[0].String())

	tp, err := n.Treasury().Params()
	require.NoError(t, err)
	require.Equal(t, manager, tp.Manager)
	require.Equal(t, uint32(500), tp.NOTEPurchaseLimitBps)
	name, ok, err := n.Treasury().PriceOracle(dai)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, OracleManual, name)
	perm, err := n.Treasury().TradingPermission(treasuryAddr, bal)
	require.NoError(t, err)
	require.True(t, perm.Permits(exchange.DexBalancerV2, exchange.ExactInBatch))
	require.False(t, perm.Permits(exchange.DexUniswapV2, exchange.ExactInSingle))

	require.ElementsMatch(t, []string{OracleManual, OraclePool, OracleAggregate}, n.Oracles().Names())
	require.Nil(t, n.Delegator())
	require.NotEmpty(t, collector.OfType(events.TypeTokenTransfer))
}

func TestRestartSkipsGenesis(t *testing.T) {
	db := storage.NewMemDB()
	_, err := New(loadConfig(t), db, WithClock(clock))
	require.NoError(t, err)

	collector := &events.Collector{}
	n, err := New(loadConfig(t), db, WithClock(clock), WithSink(collector))
	require.NoError(t, err)
	require.Empty(t, collector.Events())
	params, err := n.Staking().Params()
	require.NoError(t, err)
	require.Equal(t, owner, params.Owner)
}

func TestExecuteCommitsOrDiscards(t *testing.T) {
	collector := &events.Collector{}
	n, err := New(loadConfig(t), storage.NewMemDB(), WithClock(clock), WithSink(collector))
	require.NoError(t, err)
	collector.Reset()
	amount := big.NewInt(1_000_000_000_000)

	require.NoError(t, n.Execute(func() error {
		_, err := n.Staking().MintFromNOTE(whale, amount, nil)
		return err
	}))
	minted, err := n.Staking().BalanceOf(whale)
	require.NoError(t, err)
	require.Equal(t, 1, minted.Sign())
	require.Len(t, collector.OfType(events.TypeStakingMinted), 1)

	boom := errors.New("boom")
	err = n.Execute(func() error {
		if _, err := n.Staking().MintFromNOTE(whale, amount, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	after, err := n.Staking().BalanceOf(whale)
	require.NoError(t, err)
	require.Equal(t, minted, after)
	require.Len(t, collector.OfType(events.TypeStakingMinted), 1)
}

func TestViewDiscardsWrites(t *testing.T) {
	n, err := New(loadConfig(t), storage.NewMemDB(), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, n.View(func() error {
		_, err := n.Staking().MintFromNOTE(whale, big.NewInt(1_000_000), nil)
		return err
	}))
	supply, err := n.Staking().TotalSupply()
	require.NoError(t, err)
	require.Equal(t, 0, supply.Sign())
}

func TestFixedPoint(t *testing.T) {
	v, err := FixedPoint("0.005")
	require.NoError(t, err)
	require.Equal(t, "5000000000000000", v.String())
	v, err = FixedPoint(" 0.8 ")
	require.NoError(t, err)
	require.Equal(t, "800000000000000000", v.String())
	_, err = FixedPoint("eighty")
	require.Error(t, err)
}

func TestPermissionRejectsUnknownDex(t *testing.T) {
	_, err := Permission(config.PermissionConfig{Dexes: []string{"SUSHI"}})
	require.Error(t, err)
	perm, err := Permission(config.PermissionConfig{Dexes: []string{"ZERO_EX"}, TradeTypes: []string{"EXACT_OUT_SINGLE"}})
	require.NoError(t, err)
	require.True(t, perm.Permits(exchange.DexZeroEx, exchange.ExactOutSingle))
}

func TestFeedClientHasTimeout(t *testing.T) {
	n, err := New(loadConfig(t), storage.NewMemDB(), WithClock(clock))
	require.NoError(t, err)
	client, ok := n.httpClient.(*http.Client)
	require.True(t, ok)
	require.Equal(t, oracle.DefaultHTTPTimeout, client.Timeout)

	custom := &http.Client{Timeout: time.Second}
	n, err = New(loadConfig(t), storage.NewMemDB(), WithClock(clock), WithHTTPClient(custom))
	require.NoError(t, err)
	require.Same(t, custom, n.httpClient)
}
