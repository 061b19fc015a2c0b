package node

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stakingcore/config"
	"stakingcore/native/balancer"
	"stakingcore/native/bank"
	nativecommon "stakingcore/native/common"
	"stakingcore/native/exchange"
	"stakingcore/native/gauge"
	"stakingcore/native/treasury"
	"stakingcore/native/vault"
)

const (
	genesisModule  = "node"
	genesisVersion = 1
)

// genesis seeds the ledger and initialises every module once. Later starts
// find the version record and skip it.
func (n *Node) genesis() error {
	_, ok, err := n.state.ModuleVersion(genesisModule)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return n.Execute(func() error {
		steps := []func() error{
			n.genesisLedger,
			n.genesisPools,
			n.genesisGauges,
			n.genesisPairs,
			n.genesisStaking,
			n.genesisVaults,
			n.genesisTreasury,
			n.genesisDelegator,
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return n.state.SetModuleVersion(genesisModule, genesisVersion)
	})
}

func (n *Node) genesisLedger() error {
	for _, tok := range n.cfg.Tokens {
		if err := n.ledger.RegisterToken(bank.Token{Address: tok.Address, Symbol: tok.Symbol, Decimals: tok.Decimals}); err != nil {
			return fmt.Errorf("token %s: %w", tok.Symbol, err)
		}
	}
	for _, alloc := range n.cfg.Genesis {
		if alloc.Amount == nil || alloc.Amount.Sign() == 0 {
			continue
		}
		if err := n.ledger.Mint(alloc.Token, alloc.Account, alloc.Amount); err != nil {
			return fmt.Errorf("allocation to %s: %w", alloc.Account.Hex(), err)
		}
	}
	return nil
}

func (n *Node) genesisPools() error {
	for _, pc := range n.cfg.Pools {
		var weights [2]*big.Int
		for i, raw := range pc.Weights {
			w, err := FixedPoint(raw)
			if err != nil {
				return fmt.Errorf("pool %s weight: %w", pc.Symbol, err)
			}
			weights[i] = w
		}
		fee, err := FixedPoint(pc.SwapFee)
		if err != nil {
			return fmt.Errorf("pool %s swap fee: %w", pc.Symbol, err)
		}
		p := n.pools[pc.Address]
		if err := p.Create(balancer.Config{
			Address: pc.Address,
			Owner:   pc.Owner,
			Symbol:  pc.Symbol,
			Tokens:  pc.Tokens,
			Weights: weights,
			SwapFee: fee,
		}); err != nil {
			return fmt.Errorf("pool %s: %w", pc.Symbol, err)
		}
		if pc.Seed[0] == nil || pc.Seed[1] == nil {
			continue
		}
		if _, err := p.Join(pc.SeedFrom, pc.SeedFrom, pc.Seed, nil); err != nil {
			return fmt.Errorf("seed pool %s: %w", pc.Symbol, err)
		}
	}
	return nil
}

func (n *Node) genesisGauges() error {
	for _, gc := range n.cfg.Gauges {
		if err := n.gauges.Create(gauge.Config{
			Address:       gc.Address,
			LPToken:       gc.LPToken,
			PrimaryReward: gc.PrimaryReward,
			ExtraRewards:  gc.ExtraRewards,
		}); err != nil {
			return fmt.Errorf("gauge %s: %w", gc.Address.Hex(), err)
		}
	}
	return nil
}

func (n *Node) genesisPairs() error {
	for _, pc := range n.cfg.Exchange.UniswapPairs {
		if err := n.pairs[pc.Address].Create(pc.Tokens[0], pc.Tokens[1]); err != nil {
			return fmt.Errorf("pair %s: %w", pc.Address.Hex(), err)
		}
	}
	return nil
}

func (n *Node) genesisStaking() error {
	cfg, err := stakingConfig(n.cfg.Staking)
	if err != nil {
		return err
	}
	return n.staking.Initialize(cfg)
}

func (n *Node) genesisVaults() error {
	for i, vc := range n.cfg.Vaults {
		if err := n.vaultList[i].Initialize(vault.Config{
			Address:     vc.Address,
			Owner:       vc.Owner,
			Gauge:       vc.Gauge,
			Reinvestor:  vc.Reinvestor,
			FeeReceiver: vc.FeeReceiver,
			FeeBps:      vc.FeeBps,
		}); err != nil {
			return fmt.Errorf("vault %s: %w", vc.Address.Hex(), err)
		}
	}
	return nil
}

func (n *Node) genesisTreasury() error {
	tc := n.cfg.Treasury
	if nativecommon.IsZeroAddress(tc.Address) {
		return nil
	}
	if err := n.treasury.Initialize(treasuryConfig(n.cfg)); err != nil {
		return err
	}
	owner := tc.Owner
	if tc.NOTEPurchaseLimitBps != nil {
		if err := n.treasury.SetNOTEPurchaseLimit(owner, *tc.NOTEPurchaseLimitBps); err != nil {
			return err
		}
	}
	for raw, name := range tc.PriceOracles {
		token := common.HexToAddress(raw)
		if err := n.treasury.SetPriceOracle(owner, token, name); err != nil {
			return fmt.Errorf("price oracle for %s: %w", raw, err)
		}
		// Orders selling the token are pulled by the venue.
		if err := n.treasury.ApproveToken(owner, token, nativecommon.MaxUint256); err != nil {
			return err
		}
	}
	for raw, bps := range tc.SlippageBps {
		if err := n.treasury.SetSlippageLimit(owner, common.HexToAddress(raw), bps); err != nil {
			return fmt.Errorf("slippage for %s: %w", raw, err)
		}
	}
	for _, pc := range tc.Permissions {
		perm, err := Permission(pc)
		if err != nil {
			return err
		}
		if err := n.treasury.SetTradingPermissions(owner, pc.Target, pc.Token, perm); err != nil {
			return fmt.Errorf("permission for %s: %w", pc.Token.Hex(), err)
		}
	}
	return nil
}

func (n *Node) genesisDelegator() error {
	if n.delegator == nil {
		return nil
	}
	dc := n.cfg.Delegator
	if err := n.delegator.Initialize(dc.Owner); err != nil {
		return err
	}
	if !nativecommon.IsZeroAddress(dc.Manager) {
		if err := n.delegator.SetManagerContract(dc.Owner, dc.Manager); err != nil {
			return err
		}
	}
	for lp, g := range dc.Gauges {
		if err := n.delegator.SetGauge(dc.Owner, common.HexToAddress(lp), common.HexToAddress(g)); err != nil {
			return fmt.Errorf("delegator gauge for %s: %w", lp, err)
		}
	}
	return nil
}

// FixedPoint parses a decimal fraction such as "0.8" into 18-decimal fixed
// point.
func FixedPoint(raw string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(raw))
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", raw)
	}
	r.Mul(r, new(big.Rat).SetInt(balancer.One))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}

// Permission converts a configured permission into the treasury form.
func Permission(pc config.PermissionConfig) (treasury.Permission, error) {
	dexes := make([]exchange.DexID, 0, len(pc.Dexes))
	for _, name := range pc.Dexes {
		dex, err := exchange.ParseDexID(name)
		if err != nil {
			return treasury.Permission{}, err
		}
		dexes = append(dexes, dex)
	}
	types := make([]exchange.TradeType, 0, len(pc.TradeTypes))
	for _, name := range pc.TradeTypes {
		tt, err := exchange.ParseTradeType(name)
		if err != nil {
			return treasury.Permission{}, err
		}
		types = append(types, tt)
	}
	return treasury.Permission{
		Allowed:    true,
		Dexes:      nativecommon.NewSet(dexes...),
		TradeTypes: nativecommon.NewSet(types...),
	}, nil
}
