package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoad_RejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load()
	assert.ErrorIs(t, err, ErrShortJWTSecret)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PAYMENT_POLL_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.OrderStore)
	assert.Equal(t, 5*time.Second, cfg.PaymentPollInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
}

func TestLoadCommon_ParsesValues(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("PAYMENT_POLL_INTERVAL", "3")
	t.Setenv("PAYMENT_TTL", "90m")

	cfg := LoadCommon()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.PaymentPollInterval)
	assert.Equal(t, 90*time.Minute, cfg.PaymentTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"rest gateway with keys", func(c *Config) {}, false},
		{"unknown store", func(c *Config) { c.OrderStore = "mongo" }, true},
		{"rest gateway missing key", func(c *Config) { c.Gateway.PrivateKey = "" }, true},
		{"stripe without key", func(c *Config) { c.Gateway.Kind = "stripe" }, true},
		{"stripe with key", func(c *Config) { c.Gateway.Kind = "stripe"; c.Stripe.APIKey = "sk_test" }, false},
		{"unknown gateway", func(c *Config) { c.Gateway.Kind = "paypal" }, true},
		{"zero poll interval", func(c *Config) { c.PaymentPollInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				OrderStore:          "memory",
				PaymentPollInterval: time.Second,
				Gateway:             GatewayConfig{Kind: "rest", APIKey: "key", PrivateKey: "secret"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
