package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backoffice/internal/domain/reward"
)

// Config holds the complete application configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (POS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TaxRate     string `default:"0.11" usage:"Sales tax rate applied to discounted totals" flag:"tax-rate"`
	Rewards     []RewardTierConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// RewardTierConfig is one store-credit reward tier: orders whose subtotal
// reaches MinSubtotal earn Bonus.
type RewardTierConfig struct {
	MinSubtotal string `usage:"Minimum order subtotal for this tier"`
	Bonus       string `usage:"Store credit granted at this tier"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// defaultRewardTiers matches the store policy shipped with the backoffice:
// 5000 credit from a 100000 subtotal, 25000 from 500000.
var defaultRewardTiers = []reward.Tier{
	{MinSubtotal: decimal.NewFromInt(100000), Bonus: decimal.NewFromInt(5000)},
	{MinSubtotal: decimal.NewFromInt(500000), Bonus: decimal.NewFromInt(25000)},
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POS",
		Files:     []string{"config.yaml", "/etc/pos/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set POS_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// ParseTaxRate parses the configured tax rate.
func (c *Config) ParseTaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("tax rate must not be negative: %s", rate)
	}

	return rate, nil
}

// ParseRewardTiers parses the configured reward tiers, falling back to the
// built-in defaults when none are configured.
func (c *Config) ParseRewardTiers() ([]reward.Tier, error) {
	if len(c.Rewards) == 0 {
		return defaultRewardTiers, nil
	}

	tiers := make([]reward.Tier, len(c.Rewards))
	for i, rt := range c.Rewards {
		minSubtotal, err := decimal.NewFromString(rt.MinSubtotal)
		if err != nil {
			return nil, errors.Wrapf(err, "parse reward tier %d min subtotal %q", i, rt.MinSubtotal)
		}
		bonus, err := decimal.NewFromString(rt.Bonus)
		if err != nil {
			return nil, errors.Wrapf(err, "parse reward tier %d bonus %q", i, rt.Bonus)
		}
		tiers[i] = reward.Tier{MinSubtotal: minSubtotal, Bonus: bonus}
	}

	return tiers, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's POS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
