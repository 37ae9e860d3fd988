package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`

	Auth AuthConfig `toml:"auth"`
	Sale SaleConfig `toml:"sale"`
}

// AuthConfig controls JWT verification for admin-mutating RPC methods.
type AuthConfig struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// SaleConfig carries the construction parameters of the sale: window,
// pricing, contribution floor, accepted assets and the bonus schedule.
type SaleConfig struct {
	Owner                string        `toml:"Owner"`
	Admins               []string      `toml:"Admins"`
	OpeningTime          int64         `toml:"OpeningTime"`
	ClosingTime          int64         `toml:"ClosingTime"`
	TokenPriceCents      uint64        `toml:"TokenPriceCents"`
	NativePriceCents     uint64        `toml:"NativePriceCents"`
	MinContributionCents uint64        `toml:"MinContributionCents"`
	BonusLockSeconds     int64         `toml:"BonusLockSeconds"`
	SaleTokenSymbol      string        `toml:"SaleTokenSymbol"`
	SaleTokenDecimals    uint8         `toml:"SaleTokenDecimals"`
	Assets               []AssetConfig `toml:"Assets"`
	Tiers                []TierConfig  `toml:"Tiers"`
	Whitelist            []string      `toml:"Whitelist"`
}

// AssetConfig describes one accepted external asset.
type AssetConfig struct {
	Symbol     string `toml:"Symbol"`
	Address    string `toml:"Address"`
	PriceCents uint64 `toml:"PriceCents"`
	Decimals   uint8  `toml:"Decimals"`
}

// TierConfig is one (threshold, percent) bonus rule.
type TierConfig struct {
	ThresholdCents uint64 `toml:"ThresholdCents"`
	Percent        uint8  `toml:"Percent"`
}

// DefaultBonusLockSeconds is sixteen weeks, the stricter of the two source
// vesting variants. Setting BonusLockSeconds to zero in the config restores
// the release-immediately variant.
const DefaultBonusLockSeconds int64 = 16 * 7 * 24 * 60 * 60

// Load loads and validates the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if !meta.IsDefined("sale", "BonusLockSeconds") {
		cfg.Sale.BonusLockSeconds = DefaultBonusLockSeconds
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./saled-data"
	}
	if strings.TrimSpace(c.Sale.SaleTokenSymbol) == "" {
		c.Sale.SaleTokenSymbol = "SALE"
	}
	if c.Sale.SaleTokenDecimals == 0 {
		c.Sale.SaleTokenDecimals = 18
	}
}

// Validate rejects configurations that would construct an unusable sale.
func (c *Config) Validate() error {
	s := c.Sale
	if !common.IsHexAddress(s.Owner) {
		return fmt.Errorf("config: sale owner %q is not a valid address", s.Owner)
	}
	for _, admin := range s.Admins {
		if !common.IsHexAddress(admin) {
			return fmt.Errorf("config: admin %q is not a valid address", admin)
		}
	}
	for _, entry := range s.Whitelist {
		if !common.IsHexAddress(entry) {
			return fmt.Errorf("config: whitelist entry %q is not a valid address", entry)
		}
	}
	if s.OpeningTime <= 0 || s.ClosingTime <= s.OpeningTime {
		return fmt.Errorf("config: sale window [%d, %d) is invalid", s.OpeningTime, s.ClosingTime)
	}
	if s.TokenPriceCents == 0 {
		return fmt.Errorf("config: token price must be positive")
	}
	if s.NativePriceCents == 0 {
		return fmt.Errorf("config: native asset price must be positive")
	}
	if s.MinContributionCents == 0 {
		return fmt.Errorf("config: minimum contribution must be positive")
	}
	if s.BonusLockSeconds < 0 {
		return fmt.Errorf("config: bonus lock must not be negative")
	}
	seen := make(map[string]bool, len(s.Assets))
	for _, asset := range s.Assets {
		symbol := strings.TrimSpace(asset.Symbol)
		if symbol == "" || symbol == "NATIVE" {
			return fmt.Errorf("config: asset symbol %q is reserved or empty", asset.Symbol)
		}
		if seen[symbol] {
			return fmt.Errorf("config: duplicate asset symbol %q", symbol)
		}
		seen[symbol] = true
		if !common.IsHexAddress(asset.Address) {
			return fmt.Errorf("config: asset %s address %q is not valid", symbol, asset.Address)
		}
		if asset.PriceCents == 0 {
			return fmt.Errorf("config: asset %s price must be positive", symbol)
		}
	}
	var prev uint64
	for i, tier := range s.Tiers {
		if tier.ThresholdCents == 0 || (i > 0 && tier.ThresholdCents <= prev) {
			return fmt.Errorf("config: tier thresholds must be positive and strictly increasing")
		}
		if tier.Percent > 100 {
			return fmt.Errorf("config: tier percent %d exceeds 100", tier.Percent)
		}
		prev = tier.ThresholdCents
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: auth enabled without an HMAC secret")
	}
	return nil
}
