// Package config loads gateway configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/altarlane/marketplace/internal/runtime"
)

// Config is the complete gateway configuration.
type Config struct {
	AppEnv    string `env:"APP_ENV,default=development"`
	HTTPAddr  string `env:"HTTP_ADDR,default=:8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	SupabaseURL         string `env:"SUPABASE_URL"`
	SupabaseServiceKey  string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret   string `env:"SUPABASE_JWT_SECRET"`
	SupabaseMediaBucket string `env:"SUPABASE_MEDIA_BUCKET,default=vendor-media"`

	// DatabaseURL switches availability and holds to direct Postgres when set.
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL,default=redis://localhost:6379/0"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	CheckoutCurrency    string `env:"CHECKOUT_CURRENCY,default=usd"`

	CORSAllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	RateLimitRPS       float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=40"`

	CartTTL             time.Duration `env:"CART_TTL,default=720h"`
	WizardTTL           time.Duration `env:"WIZARD_TTL,default=2h"`
	BookingHoldTTL      time.Duration `env:"BOOKING_HOLD_TTL,default=45m"`
	OrderExpirySchedule string        `env:"ORDER_EXPIRY_SCHEDULE,default=@every 5m"`

	OnboardingQuestionnaire string `env:"ONBOARDING_QUESTIONNAIRE"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

// Load reads an optional .env file and decodes the environment into Config.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.CheckoutCurrency = strings.ToLower(strings.TrimSpace(cfg.CheckoutCurrency))
	return &cfg, nil
}

// Origins returns the CORS allowlist.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// UsePostgres reports whether a direct database connection is configured.
func (c *Config) UsePostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// Validate checks settings. Hosted services are mandatory in strict mode.
func (c *Config) Validate() error {
	var problems []string

	if len(c.CheckoutCurrency) != 3 {
		problems = append(problems, "CHECKOUT_CURRENCY must be a 3-letter ISO code")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.CartTTL <= 0 || c.WizardTTL <= 0 || c.BookingHoldTTL <= 0 {
		problems = append(problems, "CART_TTL, WIZARD_TTL and BOOKING_HOLD_TTL must be positive")
	}
	if c.SupabaseURL != "" {
		if u, err := url.Parse(c.SupabaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, "SUPABASE_URL must be an absolute URL")
		}
	}

	if runtime.StrictMode() {
		required := map[string]string{
			"SUPABASE_URL":          c.SupabaseURL,
			"SUPABASE_SERVICE_KEY":  c.SupabaseServiceKey,
			"SUPABASE_JWT_SECRET":   c.SupabaseJWTSecret,
			"REDIS_URL":             c.RedisURL,
			"STRIPE_SECRET_KEY":     c.StripeSecretKey,
			"STRIPE_WEBHOOK_SECRET": c.StripeWebhookSecret,
		}
		for _, key := range []string{"SUPABASE_URL", "SUPABASE_SERVICE_KEY", "SUPABASE_JWT_SECRET", "REDIS_URL", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET"} {
			if strings.TrimSpace(required[key]) == "" {
				problems = append(problems, key+" is required")
			}
		}
		if strings.HasPrefix(c.SupabaseURL, "http://") {
			problems = append(problems, "SUPABASE_URL must use https")
		}
		for _, o := range c.Origins() {
			if o == "*" {
				problems = append(problems, "CORS_ALLOWED_ORIGINS must not contain * in strict mode")
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
