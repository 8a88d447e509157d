package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
)

// Config holds the complete application configuration, loadable from
// environment variables (LOJA_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (LOJA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (LOJA_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Shipping     ShippingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// ShippingConfig holds the shipping rate table. Rates maps 2-letter region
// codes to "cost:lead-time-days" entries; regions not listed fall back to the
// default rate.
type ShippingConfig struct {
	Origin          string            `default:"CE" usage:"Region the warehouse ships from" flag:"shipping-origin"`
	Rates           map[string]string `usage:"Per-region rates as REGION:cost:days entries" flag:"shipping-rates"`
	DefaultCost     float64           `default:"45.90" usage:"Shipping cost for unlisted regions" flag:"shipping-default-cost"`
	DefaultLeadDays int               `default:"10" usage:"Lead time in days for unlisted regions" flag:"shipping-default-days"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LOJA",
		Files:     []string{"config.yaml", "/etc/loja/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set LOJA_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// RateTable converts the shipping configuration into the domain rate table.
func (c *ShippingConfig) RateTable() (shipping.RateTable, error) {
	table := shipping.RateTable{
		Origin:  c.Origin,
		Regions: make(map[string]shipping.Rate, len(c.Rates)),
		Default: shipping.Rate{
			Cost:         decimal.NewFromFloat(c.DefaultCost),
			LeadTimeDays: c.DefaultLeadDays,
		},
	}
	for region, entry := range c.Rates {
		rate, err := parseRate(entry)
		if err != nil {
			return shipping.RateTable{}, errors.Wrapf(err, "shipping rate for %s", region)
		}
		table.Regions[region] = rate
	}
	return table, nil
}

// parseRate parses a "cost:days" entry, e.g. "19.90:5".
func parseRate(entry string) (shipping.Rate, error) {
	cost, days, ok := strings.Cut(entry, ":")
	if !ok {
		return shipping.Rate{}, errors.Errorf("malformed rate %q, want cost:days", entry)
	}
	c, err := decimal.NewFromString(cost)
	if err != nil {
		return shipping.Rate{}, errors.Wrap(err, "cost")
	}
	d, err := strconv.Atoi(days)
	if err != nil || d < 0 {
		return shipping.Rate{}, errors.Errorf("malformed lead time %q", days)
	}
	return shipping.Rate{Cost: c, LeadTimeDays: d}, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's LOJA_-prefixed configuration.
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
