package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the complete stakingd configuration.
type Config struct {
	Service   ServiceConfig   `toml:"service" yaml:"service"`
	Tokens    []TokenConfig   `toml:"tokens" yaml:"tokens"`
	Genesis   []Allocation    `toml:"genesis" yaml:"genesis"`
	Pools     []PoolConfig    `toml:"pools" yaml:"pools"`
	Gauges    []GaugeConfig   `toml:"gauges" yaml:"gauges"`
	Exchange  ExchangeConfig  `toml:"exchange" yaml:"exchange"`
	Oracles   OracleConfig    `toml:"oracles" yaml:"oracles"`
	Staking   StakingConfig   `toml:"staking" yaml:"staking"`
	Treasury  TreasuryConfig  `toml:"treasury" yaml:"treasury"`
	Vaults    []VaultConfig   `toml:"vaults" yaml:"vaults"`
	Delegator DelegatorConfig `toml:"delegator" yaml:"delegator"`
	// Pauses halts the named modules ("staking", "treasury", "vault",
	// "delegator").
	Pauses map[string]bool `toml:"pauses" yaml:"pauses"`
}

// Load reads configuration from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as TOML.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config %s: unknown key %s", path, undecoded[0].String())
		}
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset optional values.
func ApplyDefaults(cfg *Config) {
	if cfg.Service.ListenAddress == "" {
		cfg.Service.ListenAddress = ":8090"
	}
	if cfg.Service.DataDir == "" {
		cfg.Service.DataDir = "./stakingd-data"
	}
	if cfg.Service.DatabasePath == "" {
		cfg.Service.DatabasePath = filepath.Join(cfg.Service.DataDir, "audit.sqlite")
	}
	if cfg.Service.Environment == "" {
		cfg.Service.Environment = "local"
	}
	if cfg.Service.LogMaxSizeMB <= 0 {
		cfg.Service.LogMaxSizeMB = 100
	}
	if cfg.Service.Auth.ClockSkew.Duration == 0 {
		cfg.Service.Auth.ClockSkew.Duration = 30 * time.Second
	}
	if cfg.Service.RateLimit.RequestsPerSecond <= 0 {
		cfg.Service.RateLimit.RequestsPerSecond = 20
	}
	if cfg.Service.RateLimit.Burst <= 0 {
		cfg.Service.RateLimit.Burst = 40
	}
	if cfg.Oracles.MaxAge.Duration == 0 {
		cfg.Oracles.MaxAge.Duration = 10 * time.Minute
	}
	if cfg.Oracles.TWAPWindow.Duration == 0 {
		cfg.Oracles.TWAPWindow.Duration = 30 * time.Minute
	}
	if cfg.Staking.RedemptionWindow.Duration == 0 {
		cfg.Staking.RedemptionWindow.Duration = 3 * 24 * time.Hour
	}
	if cfg.Staking.ShortfallCapBps == 0 {
		cfg.Staking.ShortfallCapBps = 3_000
	}
	if cfg.Staking.ShortfallCoolDown.Duration == 0 {
		cfg.Staking.ShortfallCoolDown.Duration = 7 * 24 * time.Hour
	}
	if cfg.Staking.VotingOracleWindow.Duration == 0 {
		cfg.Staking.VotingOracleWindow.Duration = time.Hour
	}
	if cfg.Treasury.PriceWindow.Duration == 0 {
		cfg.Treasury.PriceWindow.Duration = time.Hour
	}
}
