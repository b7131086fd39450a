package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "testing")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "usd", cfg.CheckoutCurrency)
	assert.Equal(t, 45*time.Minute, cfg.BookingHoldTTL)
	assert.Equal(t, "@every 5m", cfg.OrderExpirySchedule)
	assert.False(t, cfg.UsePostgres())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_DotEnv(t *testing.T) {
	t.Setenv("APP_ENV", "testing")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHECKOUT_CURRENCY=EUR\nCART_TTL=1h\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CHECKOUT_CURRENCY")
		os.Unsetenv("CART_TTL")
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "eur", cfg.CheckoutCurrency)
	assert.Equal(t, time.Hour, cfg.CartTTL)
}

func TestOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: " https://a.example ,, https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}

func TestValidate_StrictRequiresHostedServices(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	cfg := &Config{
		CheckoutCurrency:   "usd",
		RateLimitRPS:       10,
		RateLimitBurst:     10,
		CartTTL:            time.Hour,
		WizardTTL:          time.Hour,
		BookingHoldTTL:     time.Hour,
		CORSAllowedOrigins: "*",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL is required")
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET is required")
	assert.Contains(t, err.Error(), "must not contain *")
}

func TestValidate_BadCurrency(t *testing.T) {
	t.Setenv("APP_ENV", "testing")
	cfg := &Config{CheckoutCurrency: "dollars", RateLimitRPS: 1, RateLimitBurst: 1, CartTTL: 1, WizardTTL: 1, BookingHoldTTL: 1}
	assert.Error(t, cfg.Validate())
}
