package oracle

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stakingcore/native/bank"
)

type oracleFunc func(base, quote string) (PriceQuote, error)

func (f oracleFunc) GetRate(base, quote string) (PriceQuote, error) {
	return f(base, quote)
}

func TestManualOracleProvidesQuotes(t *testing.T) {
	manual := NewManualOracle()
	now := time.Now().UTC()
	if err := manual.SetDecimal("DAI", "WETH", "0.0005", now); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	quote, err := manual.GetRate("dai", "weth")
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if quote.RateString(4) != "0.0005" {
		t.Fatalf("unexpected rate: %v", quote.Rate)
	}
	if !quote.Timestamp.Equal(now) {
		t.Fatalf("unexpected timestamp: %v", quote.Timestamp)
	}
	if err := manual.SetDecimal("DAI", "WETH", "-1", now); err == nil {
		t.Fatalf("expected negative rate to be rejected")
	}
}

func TestOracleAggregatorStaleQuote(t *testing.T) {
	manual := NewManualOracle()
	agg := NewOracleAggregator([]string{"manual"}, time.Second)
	agg.Register("manual", manual)
	if err := manual.SetDecimal("DAI", "WETH", "0.0005", time.Now().Add(-2*time.Second)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if _, err := agg.GetRate("DAI", "WETH"); err != ErrNoFreshQuote {
		t.Fatalf("expected stale quote error, got %v", err)
	}
}

func TestOracleAggregatorPriorityFallback(t *testing.T) {
	manual := NewManualOracle()
	agg := NewOracleAggregator([]string{"primary", "manual"}, 5*time.Minute)
	agg.Register("primary", oracleFunc(func(string, string) (PriceQuote, error) {
		return PriceQuote{}, fmt.Errorf("primary down")
	}))
	agg.Register("manual", manual)
	if err := manual.SetDecimal("WBTC", "WETH", "15", time.Now()); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	quote, err := agg.GetRate("WBTC", "WETH")
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if quote.Source != "manual" {
		t.Fatalf("expected manual source, got %s", quote.Source)
	}
}

func TestOracleAggregatorTimeWeightedAverage(t *testing.T) {
	manual := NewManualOracle()
	agg := NewOracleAggregator([]string{"manual"}, 0)
	agg.Register("manual", manual)
	start := time.Unix(1_700_000_000, 0)

	manual.Set("DAI", "WETH", big.NewRat(1, 1000), start)
	_, err := agg.GetRate("DAI", "WETH")
	require.NoError(t, err)
	manual.Set("DAI", "WETH", big.NewRat(4, 1000), start.Add(30*time.Second))
	_, err = agg.GetRate("DAI", "WETH")
	require.NoError(t, err)

	result, err := agg.TWAP("dai", "weth", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)
	// 30s at 0.001 plus 1s at 0.004.
	expected := new(big.Rat).Quo(big.NewRat(34, 1000), big.NewRat(31, 1))
	require.Equal(t, 0, result.Average.Cmp(expected))
	require.Equal(t, []string{"manual"}, result.Feeders)

	_, err = agg.TWAP("WBTC", "WETH", time.Minute)
	require.ErrorIs(t, err, ErrNoFreshQuote)
}

func TestHTTPOracle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("from"); got != "DAI" {
			t.Errorf("expected from=DAI, got %s", got)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"rate": "0.00051", "timestamp": int64(1_700_000_000)})
	}))
	defer server.Close()

	feed, err := NewHTTPOracle("feed", server.Client(), server.URL, "secret")
	require.NoError(t, err)
	quote, err := feed.GetRate("dai", "weth")
	require.NoError(t, err)
	require.Equal(t, "0.00051", quote.RateString(5))
	require.Equal(t, "feed", quote.Source)
	require.Equal(t, int64(1_700_000_000), quote.Timestamp.Unix())

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	down, err := NewHTTPOracle("down", failing.Client(), failing.URL, "")
	require.NoError(t, err)
	_, err = down.GetRate("DAI", "WETH")
	require.ErrorContains(t, err, "status 503")
}

func TestHTTPOracleGivesUpOnSlowFeed(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	feed, err := NewHTTPOracle("slow", NewHTTPClient(50*time.Millisecond), slow.URL, "")
	require.NoError(t, err)
	start := time.Now()
	_, err = feed.GetRate("DAI", "WETH")
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)

	fallback, err := NewHTTPOracle("fallback", nil, slow.URL, "")
	require.NoError(t, err)
	client, ok := fallback.client.(*http.Client)
	require.True(t, ok)
	require.Equal(t, DefaultHTTPTimeout, client.Timeout)
}

func TestUnitRateNormalisesDecimals(t *testing.T) {
	// 0.0005 WETH per DAI; both 18 decimals.
	rate, err := UnitRate(big.NewRat(5, 10_000), 18, 18)
	require.NoError(t, err)
	require.Equal(t, 0, rate.Cmp(big.NewRat(5, 10_000)))

	// 15 WETH per WBTC (8 decimals): 15e18 wei per 1e8 sats.
	rate, err = UnitRate(big.NewRat(15, 1), 8, 18)
	require.NoError(t, err)
	require.Equal(t, 0, rate.Cmp(big.NewRat(15e10, 1)))

	whole, err := WholeRate(rate, 8, 18)
	require.NoError(t, err)
	require.Equal(t, 0, whole.Cmp(big.NewRat(15, 1)))
}

type stubPool struct {
	tokens [2]common.Address
	rate   *big.Rat
}

func (p stubPool) Tokens() ([2]common.Address, error) { return p.tokens, nil }

func (p stubPool) TimeWeightedAverage(base common.Address, _ time.Duration) (*big.Rat, error) {
	if base == p.tokens[0] {
		return new(big.Rat).Set(p.rate), nil
	}
	return new(big.Rat).Inv(p.rate), nil
}

type stubTokens map[common.Address]bank.Token

func (s stubTokens) Token(addr common.Address) (*bank.Token, error) {
	tok, ok := s[addr]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &tok, nil
}

func TestPoolTWAPOracleQuotesWholeUnits(t *testing.T) {
	note := common.HexToAddress("0xa1")
	weth := common.HexToAddress("0xa2")
	tokens := stubTokens{
		note: {Address: note, Symbol: "NOTE", Decimals: 8},
		weth: {Address: weth, Symbol: "WETH", Decimals: 18},
	}
	// 1e7 wei per NOTE base unit is 0.001 WETH per NOTE.
	pool := stubPool{tokens: [2]common.Address{note, weth}, rate: big.NewRat(10_000_000, 1)}
	o := NewPoolTWAPOracle(pool, tokens, time.Hour)

	quote, err := o.GetRate("NOTE", "WETH")
	require.NoError(t, err)
	require.Equal(t, 0, quote.Rate.Cmp(big.NewRat(1, 1000)))

	quote, err = o.GetRate("weth", "note")
	require.NoError(t, err)
	require.Equal(t, 0, quote.Rate.Cmp(big.NewRat(1000, 1)))

	_, err = o.GetRate("DAI", "WETH")
	require.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("Chainlink-DAI", NewManualOracle()))
	require.Error(t, reg.Register("", NewManualOracle()))
	_, err := reg.Resolve("chainlink-dai")
	require.NoError(t, err)
	_, err = reg.Resolve("missing")
	require.Error(t, err)
	require.Equal(t, []string{"chainlink-dai"}, reg.Names())
}
