package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/native/exchange"
	"stakingcore/native/staking"
)

var errInvalidConfig = errors.New("config: invalid")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errInvalidConfig, fmt.Sprintf(format, args...))
}

func isZero(addr common.Address) bool { return addr == (common.Address{}) }

func validFraction(raw string) bool {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(raw))
	return ok && r.Sign() >= 0 && r.Cmp(big.NewRat(1, 1)) <= 0
}

// Validate rejects configurations the node cannot start from.
func (c Config) Validate() error {
	tokens := make(map[common.Address]bool, len(c.Tokens))
	for _, tok := range c.Tokens {
		if isZero(tok.Address) || strings.TrimSpace(tok.Symbol) == "" {
			return invalid("token requires address and symbol")
		}
		if tokens[tok.Address] {
			return invalid("token %s listed twice", tok.Address.Hex())
		}
		tokens[tok.Address] = true
	}
	pools := make(map[common.Address]bool, len(c.Pools))
	for _, p := range c.Pools {
		if isZero(p.Address) {
			return invalid("pool requires address")
		}
		for i := range p.Tokens {
			if !tokens[p.Tokens[i]] {
				return invalid("pool %s: token %s not registered", p.Address.Hex(), p.Tokens[i].Hex())
			}
			if !validFraction(p.Weights[i]) {
				return invalid("pool %s: weight %q", p.Address.Hex(), p.Weights[i])
			}
		}
		if p.SwapFee != "" && !validFraction(p.SwapFee) {
			return invalid("pool %s: swap fee %q", p.Address.Hex(), p.SwapFee)
		}
		pools[p.Address] = true
	}
	gauges := make(map[common.Address]common.Address, len(c.Gauges))
	for _, g := range c.Gauges {
		if isZero(g.Address) || isZero(g.LPToken) || isZero(g.PrimaryReward) {
			return invalid("gauge requires address, lp_token and primary_reward")
		}
		gauges[g.Address] = g.LPToken
	}

	s := c.Staking
	if isZero(s.Address) || isZero(s.Owner) || isZero(s.NOTE) || isZero(s.WETH) {
		return invalid("staking requires address, owner, note and weth")
	}
	if !pools[s.Pool] {
		return invalid("staking pool %s not configured", s.Pool.Hex())
	}
	if lp, ok := gauges[s.Gauge]; !ok || lp != s.Pool {
		return invalid("staking gauge %s must stake pool %s", s.Gauge.Hex(), s.Pool.Hex())
	}
	if s.CoolDown.Duration <= 0 {
		return invalid("staking cool_down must be positive")
	}
	if s.RedemptionWindow.Duration <= 0 {
		return invalid("staking redemption_window must be positive")
	}
	if s.ShortfallCapBps > 10_000 {
		return invalid("staking shortfall_cap_bps above 10000")
	}
	if _, err := staking.ParseRedemptionPolicy(s.RedemptionPolicy); err != nil {
		return invalid("%v", err)
	}
	if _, err := staking.ParseShortfallPolicy(s.ShortfallPolicy); err != nil {
		return invalid("%v", err)
	}

	t := c.Treasury
	if isZero(t.Address) || isZero(t.Owner) {
		return invalid("treasury requires address and owner")
	}
	if t.NOTEPurchaseLimitBps != nil && *t.NOTEPurchaseLimitBps > 10_000 {
		return invalid("treasury note_purchase_limit_bps above 10000")
	}
	for token, bps := range t.SlippageBps {
		if !common.IsHexAddress(token) {
			return invalid("treasury slippage token %q", token)
		}
		if bps > 10_000 {
			return invalid("treasury slippage for %s above 10000", token)
		}
	}
	names := make(map[string]bool)
	for _, q := range c.Oracles.Manual {
		if _, ok := new(big.Rat).SetString(q.Rate); !ok {
			return invalid("oracle rate %s/%s %q", q.Base, q.Quote, q.Rate)
		}
	}
	if len(c.Oracles.Manual) > 0 {
		names["manual"] = true
	}
	for _, f := range c.Oracles.Feeds {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Endpoint) == "" {
			return invalid("oracle feed requires name and endpoint")
		}
		names[f.Name] = true
	}
	names["pool"] = true
	names["aggregate"] = true
	for token, name := range t.PriceOracles {
		if !common.IsHexAddress(token) {
			return invalid("treasury oracle token %q", token)
		}
		if !names[name] {
			return invalid("treasury oracle %q not configured", name)
		}
	}
	for _, p := range t.Permissions {
		for _, dex := range p.Dexes {
			if _, err := exchange.ParseDexID(dex); err != nil {
				return invalid("%v", err)
			}
		}
		for _, tt := range p.TradeTypes {
			if _, err := exchange.ParseTradeType(tt); err != nil {
				return invalid("%v", err)
			}
		}
	}

	for _, v := range c.Vaults {
		if isZero(v.Address) || isZero(v.Owner) {
			return invalid("vault requires address and owner")
		}
		if !pools[v.Pool] {
			return invalid("vault %s: pool %s not configured", v.Address.Hex(), v.Pool.Hex())
		}
		if lp, ok := gauges[v.Gauge]; !ok || lp != v.Pool {
			return invalid("vault %s: gauge %s must stake pool %s", v.Address.Hex(), v.Gauge.Hex(), v.Pool.Hex())
		}
		if v.FeeBps > 10_000 {
			return invalid("vault %s: fee_bps above 10000", v.Address.Hex())
		}
	}

	if !isZero(c.Delegator.Address) {
		if isZero(c.Delegator.Owner) {
			return invalid("delegator requires owner")
		}
		for lp, g := range c.Delegator.Gauges {
			if !common.IsHexAddress(lp) || !common.IsHexAddress(g) {
				return invalid("delegator gauge mapping %q -> %q", lp, g)
			}
		}
	}
	return nil
}
