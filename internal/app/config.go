package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (RADAR_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (RADAR_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string `usage:"HMAC secret for bearer token verification" flag:"jwt-secret"`
	RulesPath   string `default:"discounts.yaml" usage:"Path to the discount rules YAML file" flag:"rules-path"`
	Stripe      StripeConfig
	Billing     BillingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StripeConfig holds the payment provider credentials and redirect URLs.
type StripeConfig struct {
	APIKey        string `usage:"Stripe secret API key" flag:"stripe-api-key"`
	WebhookSecret string `usage:"Stripe webhook endpoint secret" flag:"stripe-webhook-secret"`
	PriceID       string `default:"" usage:"Stripe price id for the monthly plan; empty prices the plan inline" flag:"stripe-price-id"`
	SuccessURL    string `default:"https://web3radar.app/checkout/success" usage:"Redirect after successful checkout" flag:"checkout-success-url"`
	CancelURL     string `default:"https://web3radar.app/pricing" usage:"Redirect after abandoned checkout" flag:"checkout-cancel-url"`
}

// BillingConfig describes the subscription plan being sold.
type BillingConfig struct {
	MonthlyPriceCents  int64  `default:"2900" usage:"Monthly plan price in minor currency units" flag:"monthly-price-cents"`
	Currency           string `default:"usd" usage:"Plan currency code"`
	TrialDays          int    `default:"7" usage:"Trial length for first-time subscribers" flag:"trial-days"`
	ProductName        string `default:"Pro subscription" usage:"Product name shown at checkout" flag:"product-name"`
	ProductDescription string `default:"Full access, billed monthly" usage:"Product description shown at checkout" flag:"product-description"`
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
		EnvPrefix: "RADAR",
		Files:     []string{"config.yaml", "/etc/radar/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set RADAR_DATABASE_URL or DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set RADAR_JWT_SECRET")
	}
	if cfg.Stripe.APIKey == "" {
		return nil, errors.New("Stripe API key is required: set RADAR_STRIPE_API_KEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's RADAR_-prefixed configuration.
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
