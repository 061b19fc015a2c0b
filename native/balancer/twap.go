package balancer

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// maxSamples bounds the stored price history per pool.
const maxSamples = 256

// priceSample is the spot price of token0 quoted in token1 (smallest units),
// scaled by 1e18, observed at Timestamp.
type priceSample struct {
	Timestamp uint64
	Price     *big.Int
}

// spotPrice returns token1 per token0 in smallest units scaled by 1e18:
// (b1/w1) / (b0/w0).
func spotPrice(record *poolRecord) *big.Int {
	if record.Balances[0].Sign() == 0 || record.Balances[1].Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(record.Balances[1], record.Weights[0])
	num.Mul(num, One)
	den := new(big.Int).Mul(record.Balances[0], record.Weights[1])
	return num.Quo(num, den)
}

func (p *Pool) loadSamples() ([]priceSample, error) {
	var samples []priceSample
	if _, err := p.state.KVGet(samplesKey(p.address), &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (p *Pool) recordSample(record *poolRecord) error {
	samples, err := p.loadSamples()
	if err != nil {
		return err
	}
	now := uint64(p.nowFn().Unix())
	sample := priceSample{Timestamp: now, Price: spotPrice(record)}
	if n := len(samples); n > 0 && samples[n-1].Timestamp == now {
		samples[n-1] = sample
	} else {
		samples = append(samples, sample)
	}
	if len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	return p.state.KVPut(samplesKey(p.address), samples)
}

func (p *Pool) orient(base common.Address, token0Price *big.Int) (*big.Rat, error) {
	record, err := p.load()
	if err != nil {
		return nil, err
	}
	idx, err := record.index(base)
	if err != nil {
		return nil, err
	}
	if token0Price.Sign() == 0 {
		return nil, errNotInitialised
	}
	rate := new(big.Rat).SetFrac(token0Price, One)
	if idx == 1 {
		rate.Inv(rate)
	}
	return rate, nil
}

// SpotPrice returns the current price of base in the other pool token, in
// smallest units.
func (p *Pool) SpotPrice(base common.Address) (*big.Rat, error) {
	record, err := p.load()
	if err != nil {
		return nil, err
	}
	return p.orient(base, spotPrice(record))
}

// TimeWeightedAverage returns the time-weighted average price of base over
// the trailing window. A zero window, or a window without history, yields the
// spot price.
func (p *Pool) TimeWeightedAverage(base common.Address, window time.Duration) (*big.Rat, error) {
	samples, err := p.loadSamples()
	if err != nil {
		return nil, err
	}
	now := uint64(p.nowFn().Unix())
	secs := uint64(window / time.Second)
	if secs == 0 || len(samples) == 0 {
		return p.SpotPrice(base)
	}
	start := uint64(0)
	if now > secs {
		start = now - secs
	}
	weighted := new(big.Int)
	var covered uint64
	for i, s := range samples {
		segStart := s.Timestamp
		segEnd := now
		if i+1 < len(samples) {
			segEnd = samples[i+1].Timestamp
		}
		if segEnd <= start || segStart >= now {
			continue
		}
		if segStart < start {
			segStart = start
		}
		if segEnd > now {
			segEnd = now
		}
		dt := segEnd - segStart
		weighted.Add(weighted, new(big.Int).Mul(s.Price, new(big.Int).SetUint64(dt)))
		covered += dt
	}
	if covered == 0 {
		return p.SpotPrice(base)
	}
	avg := weighted.Quo(weighted, new(big.Int).SetUint64(covered))
	rate, err := p.orient(base, avg)
	if err != nil {
		return nil, fmt.Errorf("balancer: twap: %w", err)
	}
	return rate, nil
}
