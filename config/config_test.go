package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "stakingd.toml"))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8090", cfg.Service.ListenAddress)
	require.Equal(t, filepath.Join("./data", "audit.sqlite"), cfg.Service.DatabasePath)
	require.Equal(t, 5.0, cfg.Service.RateLimit.RequestsPerSecond)
	require.Equal(t, 30*time.Second, cfg.Service.Auth.ClockSkew.Duration)
	require.Len(t, cfg.Tokens, 5)
	require.Equal(t, uint8(6), cfg.Tokens[4].Decimals)
	require.Equal(t, common.HexToAddress("0xe3"), cfg.Genesis[0].Account)
	require.Equal(t, big.NewInt(1_000_000_000_000_000), cfg.Genesis[0].Amount)

	pool := cfg.Pools[0]
	require.Equal(t, [2]string{"0.8", "0.2"}, pool.Weights)
	require.Equal(t, "250000000000000000000", pool.Seed[1].String())

	require.Equal(t, 240*time.Hour, cfg.Staking.CoolDown.Duration)
	require.Equal(t, 7*24*time.Hour, cfg.Staking.ShortfallCoolDown.Duration)
	require.Equal(t, uint32(5_000), cfg.Staking.ShortfallCapBps)
	require.Equal(t, "reject", cfg.Staking.ShortfallPolicy)

	require.NotNil(t, cfg.Treasury.NOTEPurchaseLimitBps)
	require.Equal(t, uint32(500), *cfg.Treasury.NOTEPurchaseLimitBps)
	require.Equal(t, time.Hour, cfg.Treasury.PriceWindow.Duration)
	require.Equal(t, uint32(1_000), cfg.Treasury.SlippageBps["0x00000000000000000000000000000000000000a3"])
	require.Equal(t, []string{"BALANCER_V2"}, cfg.Treasury.Permissions[0].Dexes)
	require.Equal(t, 15*time.Minute, cfg.Oracles.MaxAge.Duration)
	require.True(t, cfg.Pauses["delegator"])
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "stakingd.yaml"))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8091", cfg.Service.ListenAddress)
	require.Equal(t, "/tmp/stakingd.log", cfg.Service.LogFile)
	require.Equal(t, 10*time.Minute, cfg.Staking.CoolDown.Duration)
	require.Equal(t, 5*time.Minute, cfg.Staking.RedemptionWindow.Duration)
	require.Equal(t, uint32(3_000), cfg.Staking.ShortfallCapBps)
	require.Equal(t, 30*time.Minute, cfg.Treasury.PriceWindow.Duration)
	require.Nil(t, cfg.Treasury.NOTEPurchaseLimitBps)
	require.Equal(t, common.HexToAddress("0xb1"), cfg.Pools[0].Address)
	require.Equal(t, common.HexToAddress("0xa2"), cfg.Pools[0].Tokens[1])
}

func TestLoadRejectsUnknownTOMLKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[service]\nlisten = \":1\"\nbogus = 1\n"), 0o600))
	_, err := Load(path)
	require.ErrorContains(t, err, "bogus")
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load(filepath.Join("testdata", "stakingd.toml"))
	require.NoError(t, err)
	return cfg
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cooldown", func(c *Config) { c.Staking.CoolDown.Duration = 0 }},
		{"cap above 100%", func(c *Config) { c.Staking.ShortfallCapBps = 10_001 }},
		{"unknown policy", func(c *Config) { c.Staking.RedemptionPolicy = "sometimes" }},
		{"gauge for another pool", func(c *Config) { c.Gauges[0].LPToken = common.HexToAddress("0xa3") }},
		{"missing treasury owner", func(c *Config) { c.Treasury.Owner = common.Address{} }},
		{"unknown dex", func(c *Config) { c.Treasury.Permissions[0].Dexes = []string{"SUSHI"} }},
		{"unknown oracle", func(c *Config) {
			c.Treasury.PriceOracles = map[string]string{"0x00000000000000000000000000000000000000a3": "chainlink"}
		}},
		{"slippage above 100%", func(c *Config) {
			c.Treasury.SlippageBps = map[string]uint32{"0x00000000000000000000000000000000000000a3": 20_000}
		}},
		{"unregistered pool token", func(c *Config) { c.Pools[0].Tokens[0] = common.HexToAddress("0xff") }},
		{"bad weight", func(c *Config) { c.Pools[0].Weights[0] = "1.5" }},
		{"bad rate", func(c *Config) { c.Oracles.Manual[0].Rate = "cheap" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), errInvalidConfig)
		})
	}
}
