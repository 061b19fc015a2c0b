package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so both TOML and YAML files can use human
// readable strings such as "240h".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string. BurntSushi/toml uses it directly.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := string(text)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// ServiceConfig covers the daemon surface.
type ServiceConfig struct {
	ListenAddress string     `toml:"listen" yaml:"listen"`
	DataDir       string     `toml:"data_dir" yaml:"data_dir"`
	DatabasePath  string     `toml:"database" yaml:"database"` // sqlite path or postgres:// URL
	Environment   string     `toml:"environment" yaml:"environment"`
	LogFile       string     `toml:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int        `toml:"log_max_size_mb" yaml:"log_max_size_mb"`
	Auth          AuthConfig `toml:"auth" yaml:"auth"`
	RateLimit     RateLimit  `toml:"rate_limit" yaml:"rate_limit"`
	Telemetry     Telemetry  `toml:"telemetry" yaml:"telemetry"`
}

// AuthConfig configures HMAC-signed bearer tokens. The subject claim carries
// the caller address.
type AuthConfig struct {
	HMACSecret string   `toml:"hmac_secret" yaml:"hmac_secret"`
	Issuer     string   `toml:"issuer" yaml:"issuer"`
	Audience   string   `toml:"audience" yaml:"audience"`
	ClockSkew  Duration `toml:"clock_skew" yaml:"clock_skew"`
}

// RateLimit bounds requests per caller.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"rps" yaml:"rps"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

// Telemetry configures OTLP export. An empty endpoint disables exporters.
type Telemetry struct {
	Endpoint string `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
}

// TokenConfig registers an asset with the ledger.
type TokenConfig struct {
	Address  common.Address `toml:"address" yaml:"address"`
	Symbol   string         `toml:"symbol" yaml:"symbol"`
	Decimals uint8          `toml:"decimals" yaml:"decimals"`
}

// Allocation credits an initial balance on first start.
type Allocation struct {
	Token   common.Address `toml:"token" yaml:"token"`
	Account common.Address `toml:"account" yaml:"account"`
	Amount  *big.Int       `toml:"amount" yaml:"amount"`
}

// PoolConfig creates a two-token weighted pool. Weights and SwapFee are
// decimal fractions such as "0.8" and "0.005".
type PoolConfig struct {
	Address common.Address    `toml:"address" yaml:"address"`
	Owner   common.Address    `toml:"owner" yaml:"owner"`
	Symbol  string            `toml:"symbol" yaml:"symbol"`
	Tokens  [2]common.Address `toml:"tokens" yaml:"tokens"`
	Weights [2]string         `toml:"weights" yaml:"weights"`
	SwapFee string            `toml:"swap_fee" yaml:"swap_fee"`
	// Seed joins the pool from SeedFrom with these amounts on first start.
	SeedFrom common.Address `toml:"seed_from" yaml:"seed_from"`
	Seed     [2]*big.Int    `toml:"seed" yaml:"seed"`
}

// GaugeConfig registers a reward gauge.
type GaugeConfig struct {
	Address       common.Address   `toml:"address" yaml:"address"`
	LPToken       common.Address   `toml:"lp_token" yaml:"lp_token"`
	PrimaryReward common.Address   `toml:"primary_reward" yaml:"primary_reward"`
	ExtraRewards  []common.Address `toml:"extra_rewards" yaml:"extra_rewards"`
}

// PairConfig registers a constant-product pair.
type PairConfig struct {
	Address common.Address    `toml:"address" yaml:"address"`
	Tokens  [2]common.Address `toml:"tokens" yaml:"tokens"`
}

// ExchangeConfig configures the order venue and routed trading.
type ExchangeConfig struct {
	Venue        common.Address `toml:"venue" yaml:"venue"`
	UniswapPairs []PairConfig   `toml:"uniswap_pairs" yaml:"uniswap_pairs"`
}

// ManualQuote seeds a fixed oracle rate, quoted in whole units.
type ManualQuote struct {
	Base  string `toml:"base" yaml:"base"`
	Quote string `toml:"quote" yaml:"quote"`
	Rate  string `toml:"rate" yaml:"rate"`
}

// FeedConfig describes an upstream HTTP price feed.
type FeedConfig struct {
	Name     string `toml:"name" yaml:"name"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	APIKey   string `toml:"api_key" yaml:"api_key"`
}

// OracleConfig lists the named oracles the treasury may reference.
type OracleConfig struct {
	MaxAge     Duration      `toml:"max_age" yaml:"max_age"`
	TWAPWindow Duration      `toml:"twap_window" yaml:"twap_window"`
	Priority   []string      `toml:"priority" yaml:"priority"`
	Manual     []ManualQuote `toml:"manual" yaml:"manual"`
	Feeds      []FeedConfig  `toml:"feeds" yaml:"feeds"`
}

// StakingConfig initialises the staking core.
type StakingConfig struct {
	Address            common.Address `toml:"address" yaml:"address"`
	Owner              common.Address `toml:"owner" yaml:"owner"`
	Treasury           common.Address `toml:"treasury" yaml:"treasury"`
	NOTE               common.Address `toml:"note" yaml:"note"`
	WETH               common.Address `toml:"weth" yaml:"weth"`
	Pool               common.Address `toml:"pool" yaml:"pool"`
	Gauge              common.Address `toml:"gauge" yaml:"gauge"`
	CoolDown           Duration       `toml:"cool_down" yaml:"cool_down"`
	RedemptionWindow   Duration       `toml:"redemption_window" yaml:"redemption_window"`
	ShortfallCapBps    uint32         `toml:"shortfall_cap_bps" yaml:"shortfall_cap_bps"`
	ShortfallCoolDown  Duration       `toml:"shortfall_cool_down" yaml:"shortfall_cool_down"`
	VotingOracleWindow Duration       `toml:"voting_oracle_window" yaml:"voting_oracle_window"`
	RedemptionPolicy   string         `toml:"redemption_policy" yaml:"redemption_policy"`
	ShortfallPolicy    string         `toml:"shortfall_policy" yaml:"shortfall_policy"`
}

// PermissionConfig grants routed trading of Token for Target.
type PermissionConfig struct {
	Target     common.Address `toml:"target" yaml:"target"`
	Token      common.Address `toml:"token" yaml:"token"`
	Dexes      []string       `toml:"dexes" yaml:"dexes"`
	TradeTypes []string       `toml:"trade_types" yaml:"trade_types"`
}

// TreasuryConfig initialises the treasury trade engine.
type TreasuryConfig struct {
	Address     common.Address `toml:"address" yaml:"address"`
	Owner       common.Address `toml:"owner" yaml:"owner"`
	Manager     common.Address `toml:"manager" yaml:"manager"`
	PriceWindow Duration       `toml:"price_window" yaml:"price_window"`
	// NOTEPurchaseLimitBps is left unset when nil.
	NOTEPurchaseLimitBps *uint32            `toml:"note_purchase_limit_bps" yaml:"note_purchase_limit_bps"`
	SlippageBps          map[string]uint32  `toml:"slippage_bps" yaml:"slippage_bps"`
	PriceOracles         map[string]string  `toml:"price_oracles" yaml:"price_oracles"`
	Permissions          []PermissionConfig `toml:"permissions" yaml:"permissions"`
}

// VaultConfig creates a strategy vault over a pool staked in a gauge.
type VaultConfig struct {
	Address     common.Address `toml:"address" yaml:"address"`
	Pool        common.Address `toml:"pool" yaml:"pool"`
	Gauge       common.Address `toml:"gauge" yaml:"gauge"`
	Owner       common.Address `toml:"owner" yaml:"owner"`
	Reinvestor  common.Address `toml:"reinvestor" yaml:"reinvestor"`
	FeeReceiver common.Address `toml:"fee_receiver" yaml:"fee_receiver"`
	FeeBps      uint32         `toml:"fee_bps" yaml:"fee_bps"`
}

// DelegatorConfig creates the gauge-token delegator. Gauges maps LP token
// addresses to gauge addresses.
type DelegatorConfig struct {
	Address common.Address    `toml:"address" yaml:"address"`
	Owner   common.Address    `toml:"owner" yaml:"owner"`
	Manager common.Address    `toml:"manager" yaml:"manager"`
	Gauges  map[string]string `toml:"gauges" yaml:"gauges"`
}
