package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics tracks receipt supply, pool-token backing and treasury
// activity.
type StakingMetrics struct {
	receiptSupply prometheus.Gauge
	poolTokens    prometheus.Gauge
	coolDowns     *prometheus.CounterVec
	shortfalls    prometheus.Counter
	trades        *prometheus.CounterVec
	investments   *prometheus.CounterVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = newStakingMetrics()
		prometheus.MustRegister(stakingRegistry.collectors()...)
	})
	return stakingRegistry
}

func newStakingMetrics() *StakingMetrics {
	return &StakingMetrics{
		receiptSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_receipt_supply",
			Help: "Outstanding staking receipts in whole units.",
		}),
		poolTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_pool_tokens",
			Help: "Pool tokens backing the receipts in whole units.",
		}),
		coolDowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_cooldown_transitions_total",
			Help: "Cooldown starts and stops.",
		}, []string{"transition"}),
		shortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staking_shortfall_extractions_total",
			Help: "Collateral shortfall extractions executed.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_trades_total",
			Help: "Treasury trades by venue and outcome.",
		}, []string{"dex", "outcome"}),
		investments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treasury_investments_total",
			Help: "Treasury investments by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}

func (m *StakingMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.receiptSupply,
		m.poolTokens,
		m.coolDowns,
		m.shortfalls,
		m.trades,
		m.investments,
	}
}

// wholeUnits converts an 18-decimal amount into a float for gauges.
func wholeUnits(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(v, big.NewInt(1_000_000_000_000_000_000)).Float64()
	return f
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// SetBacking records the receipt supply and the pool tokens backing it.
func (m *StakingMetrics) SetBacking(receipts, poolTokens *big.Int) {
	if m == nil {
		return
	}
	m.receiptSupply.Set(wholeUnits(receipts))
	m.poolTokens.Set(wholeUnits(poolTokens))
}

func (m *StakingMetrics) ObserveCoolDown(transition string) {
	if m == nil {
		return
	}
	if transition == "" {
		transition = "unknown"
	}
	m.coolDowns.WithLabelValues(transition).Inc()
}

func (m *StakingMetrics) ObserveShortfall() {
	if m == nil {
		return
	}
	m.shortfalls.Inc()
}

func (m *StakingMetrics) ObserveTrade(dex string, err error) {
	if m == nil {
		return
	}
	if dex == "" {
		dex = "unknown"
	}
	m.trades.WithLabelValues(dex, outcome(err)).Inc()
}

func (m *StakingMetrics) ObserveInvestment(kind string, err error) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.investments.WithLabelValues(kind, outcome(err)).Inc()
}
