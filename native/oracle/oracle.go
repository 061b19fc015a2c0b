package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"
)

// PriceQuote captures an exchange rate for a currency pair along with the
// timestamp reported by the upstream oracle and the oracle identifier. Rate is
// the amount of quote asset per whole unit of base asset.
type PriceQuote struct {
	Rate      *big.Rat
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q PriceQuote) Clone() PriceQuote {
	clone := PriceQuote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Rate != nil {
		clone.Rate = new(big.Rat).Set(q.Rate)
	}
	return clone
}

// RateString renders the rate using the supplied precision.
func (q PriceQuote) RateString(precision int) string {
	if q.Rate == nil {
		return ""
	}
	if precision < 0 {
		precision = 18
	}
	return q.Rate.FloatString(precision)
}

// PriceOracle resolves an exchange rate for the provided base/quote pair.
type PriceOracle interface {
	GetRate(base, quote string) (PriceQuote, error)
}

// TWAPResult summarises a time-weighted average over a window.
type TWAPResult struct {
	Average *big.Rat
	Start   time.Time
	End     time.Time
	Count   int
	Window  time.Duration
	Feeders []string
}

// TWAPOracle extends PriceOracle with time-weighted averages.
type TWAPOracle interface {
	PriceOracle
	TWAP(base, quote string, window time.Duration) (TWAPResult, error)
}

// ErrNoFreshQuote indicates that no quote could be retrieved within the
// configured freshness window.
var ErrNoFreshQuote = errors.New("oracle: no fresh quote available")

// OracleAggregator consults a list of registered oracles in priority order
// until a fresh quote is obtained.
type OracleAggregator struct {
	mu       sync.RWMutex
	priority []string
	oracles  map[string]PriceOracle
	maxAge   time.Duration
	history  map[string][]PriceQuote
	twapWin  time.Duration
	twapCap  int
	nowFn    func() time.Time
}

// NewOracleAggregator constructs an aggregator with the provided priority and
// freshness window.
func NewOracleAggregator(priority []string, maxAge time.Duration) *OracleAggregator {
	return &OracleAggregator{
		priority: append([]string{}, priority...),
		oracles:  make(map[string]PriceOracle),
		maxAge:   maxAge,
		history:  make(map[string][]PriceQuote),
		twapCap:  128,
		nowFn:    time.Now,
	}
}

// SetNowFunc overrides the clock used for freshness checks.
func (a *OracleAggregator) SetNowFunc(now func() time.Time) {
	if a == nil || now == nil {
		return
	}
	a.mu.Lock()
	a.nowFn = now
	a.mu.Unlock()
}

// SetTWAPWindow configures the rolling observation window. Negative durations
// are coerced to zero.
func (a *OracleAggregator) SetTWAPWindow(window time.Duration) {
	if a == nil {
		return
	}
	if window < 0 {
		window = 0
	}
	a.mu.Lock()
	a.twapWin = window
	a.mu.Unlock()
}

// Register adds or replaces an oracle under the supplied identifier.
func (a *OracleAggregator) Register(name string, oracle PriceOracle) {
	if a == nil {
		return
	}
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oracles[trimmed] = oracle
	for _, entry := range a.priority {
		if strings.EqualFold(entry, trimmed) {
			return
		}
	}
	a.priority = append(a.priority, trimmed)
}

// GetRate fetches a rate from the configured oracles respecting the priority
// ordering and the freshness window.
func (a *OracleAggregator) GetRate(base, quote string) (PriceQuote, error) {
	if a == nil {
		return PriceQuote{}, fmt.Errorf("oracle aggregator not configured")
	}
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAge
	now := a.nowFn()
	a.mu.RUnlock()

	baseSym := normaliseSymbol(base)
	quoteSym := normaliseSymbol(quote)
	if baseSym == "" || quoteSym == "" {
		return PriceQuote{}, fmt.Errorf("oracle: base and quote required")
	}

	var lastErr error
	cutoff := now.Add(-maxAge)
	for _, name := range priority {
		a.mu.RLock()
		source := a.oracles[strings.ToLower(name)]
		a.mu.RUnlock()
		if source == nil {
			continue
		}
		q, err := source.GetRate(baseSym, quoteSym)
		if err != nil {
			lastErr = err
			continue
		}
		if q.Rate == nil || q.Rate.Sign() <= 0 {
			lastErr = fmt.Errorf("oracle %s returned invalid rate", name)
			continue
		}
		if maxAge > 0 && q.Timestamp.Before(cutoff) {
			lastErr = ErrNoFreshQuote
			continue
		}
		result := q.Clone()
		if strings.TrimSpace(result.Source) == "" {
			result.Source = strings.ToLower(name)
		}
		a.recordSample(baseSym, quoteSym, result)
		return result, nil
	}
	if lastErr == nil {
		lastErr = ErrNoFreshQuote
	}
	return PriceQuote{}, lastErr
}

func pairKey(base, quote string) string {
	return normaliseSymbol(base) + ":" + normaliseSymbol(quote)
}

func (a *OracleAggregator) recordSample(base, quote string, q PriceQuote) {
	key := pairKey(base, quote)
	sample := q.Clone()
	a.mu.Lock()
	defer a.mu.Unlock()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = a.nowFn()
	}
	sample.Timestamp = sample.Timestamp.UTC()
	bucket := append([]PriceQuote{}, a.history[key]...)
	bucket = append(bucket, sample)
	if a.twapWin > 0 {
		cutoff := sample.Timestamp.Add(-a.twapWin)
		filtered := bucket[:0]
		for _, entry := range bucket {
			if entry.Timestamp.Before(cutoff) {
				continue
			}
			filtered = append(filtered, entry)
		}
		bucket = filtered
	}
	if a.twapCap > 0 && len(bucket) > a.twapCap {
		bucket = append([]PriceQuote{}, bucket[len(bucket)-a.twapCap:]...)
	}
	a.history[key] = bucket
}

// TWAP computes the time-weighted average of the recorded samples. Each sample
// is weighted by the time until the next sample; the most recent sample counts
// for one second so that a single observation still yields its own rate.
func (a *OracleAggregator) TWAP(base, quote string, window time.Duration) (TWAPResult, error) {
	if a == nil {
		return TWAPResult{}, fmt.Errorf("oracle aggregator not configured")
	}
	key := pairKey(base, quote)
	a.mu.RLock()
	bucket := append([]PriceQuote{}, a.history[key]...)
	if window <= 0 {
		window = a.twapWin
	}
	a.mu.RUnlock()
	if len(bucket) == 0 {
		return TWAPResult{}, ErrNoFreshQuote
	}
	end := bucket[len(bucket)-1].Timestamp
	start := time.Time{}
	if window > 0 {
		start = end.Add(-window)
	}
	sum := new(big.Rat)
	var weight int64
	used := 0
	feeders := make(map[string]struct{})
	var first time.Time
	for i, entry := range bucket {
		if entry.Rate == nil || entry.Timestamp.Before(start) {
			continue
		}
		dt := int64(1)
		if i+1 < len(bucket) {
			dt = int64(bucket[i+1].Timestamp.Sub(entry.Timestamp) / time.Second)
			if dt <= 0 {
				dt = 1
			}
		}
		sum.Add(sum, new(big.Rat).Mul(entry.Rate, big.NewRat(dt, 1)))
		weight += dt
		used++
		if first.IsZero() {
			first = entry.Timestamp
		}
		if src := strings.ToLower(strings.TrimSpace(entry.Source)); src != "" {
			feeders[src] = struct{}{}
		}
	}
	if used == 0 {
		return TWAPResult{}, ErrNoFreshQuote
	}
	list := make([]string, 0, len(feeders))
	for name := range feeders {
		list = append(list, name)
	}
	sort.Strings(list)
	return TWAPResult{
		Average: sum.Quo(sum, big.NewRat(weight, 1)),
		Start:   first,
		End:     end,
		Count:   used,
		Window:  window,
		Feeders: list,
	}, nil
}

// ManualOracle provides an in-memory oracle used for tests and operator
// overrides.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]PriceQuote
}

// NewManualOracle constructs an empty manual oracle.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{quotes: make(map[string]PriceQuote)}
}

// SetDecimal records the supplied decimal rate for the pair.
func (m *ManualOracle) SetDecimal(base, quote, rate string, ts time.Time) error {
	if m == nil {
		return fmt.Errorf("manual oracle not configured")
	}
	trimmed := strings.TrimSpace(rate)
	if trimmed == "" {
		return fmt.Errorf("manual oracle: rate required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return fmt.Errorf("manual oracle: invalid rate %q", rate)
	}
	if rat.Sign() <= 0 {
		return fmt.Errorf("manual oracle: rate must be positive")
	}
	m.Set(base, quote, rat, ts)
	return nil
}

// Set stores the rational rate for the pair.
func (m *ManualOracle) Set(base, quote string, rate *big.Rat, ts time.Time) {
	if m == nil || rate == nil {
		return
	}
	m.mu.Lock()
	m.quotes[pairKey(base, quote)] = PriceQuote{Rate: new(big.Rat).Set(rate), Timestamp: ts, Source: "manual"}
	m.mu.Unlock()
}

// GetRate retrieves the stored rate for the pair.
func (m *ManualOracle) GetRate(base, quote string) (PriceQuote, error) {
	if m == nil {
		return PriceQuote{}, fmt.Errorf("manual oracle not configured")
	}
	m.mu.RLock()
	stored, ok := m.quotes[pairKey(base, quote)]
	m.mu.RUnlock()
	if !ok {
		return PriceQuote{}, fmt.Errorf("manual oracle: quote for %s/%s not found", base, quote)
	}
	return stored.Clone(), nil
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
