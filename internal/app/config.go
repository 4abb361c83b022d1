package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (PCFG_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string `usage:"PostgreSQL connection URL (PCFG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper   string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	DepositPercent string `default:"20" usage:"Vehicle deposit as a percentage of the configured price" flag:"deposit-percent"`
	VATPercent     string `default:"20" usage:"VAT rate applied when splitting invoice totals" flag:"vat-percent"`

	Payment   PaymentConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// PaymentConfig holds the external payment gateway settings.
type PaymentConfig struct {
	BaseURL       string        `usage:"Payment gateway base URL" flag:"payment-base-url"`
	APIKey        string        `usage:"Payment gateway API key" flag:"payment-api-key"`
	WebhookSecret string        `usage:"Shared secret for webhook signature verification" flag:"payment-webhook-secret"`
	Timeout       time.Duration `default:"10s" usage:"Payment gateway request timeout" flag:"payment-timeout"`
	SuccessURL    string        `usage:"Redirect URL after successful payment" flag:"payment-success-url"`
	CancelURL     string        `usage:"Redirect URL after cancelled payment" flag:"payment-cancel-url"`
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

// DepositRate parses the configured deposit percentage.
func (c *Config) DepositRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.DepositPercent)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "deposit percent")
	}
	return d, nil
}

// VATRate parses the configured VAT percentage.
func (c *Config) VATRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.VATPercent)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "vat percent")
	}
	return d, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PCFG",
		Files:     []string{"config.yaml", "/etc/pcfg/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PCFG_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Payment.WebhookSecret == "" {
		return nil, errors.New("webhook secret is required: set PCFG_PAYMENT_WEBHOOK_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the PCFG_-prefixed
// configuration.
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
