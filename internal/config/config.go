package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// Uber Direct provider settings.
	UberAPIURL       string `mapstructure:"UBERDIRECT_API_URL"`
	UberOAuthURL     string `mapstructure:"UBERDIRECT_OAUTH_URL"`
	UberCustomerID   string `mapstructure:"UBERDIRECT_CUSTOMER_ID"`
	UberClientID     string `mapstructure:"UBERDIRECT_CLIENT_ID"`
	UberClientSecret string `mapstructure:"UBERDIRECT_CLIENT_SECRET"`

	// One webhook secret per event kind, issued by the provider dashboard.
	WebhookSecretDeliveryStatus string `mapstructure:"UBER_WEBHOOK_SECRET_DELIVERY_STATUS"`
	WebhookSecretCourierUpdate  string `mapstructure:"UBER_WEBHOOK_SECRET_COURIER_UPDATE"`
	WebhookSecretRefundRequest  string `mapstructure:"UBER_WEBHOOK_SECRET_REFUND_REQUEST"`

	// Ops mailbox for refund requests; refunds stay a manual process.
	OpsNotifyFrom string `mapstructure:"OPS_NOTIFY_FROM"`
	OpsNotifyTo   string `mapstructure:"OPS_NOTIFY_TO"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv() // Read in environment variables that match

	err := viper.ReadInConfig()
	if err != nil {
		// A missing .env file is fine; everything can come from the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	return &cfg, nil
}

// Validate checks the settings without which the service cannot talk to the
// provider at all. Webhook secrets are checked lazily per request so a
// partially configured site can still create deliveries.
func (c *Config) Validate() error {
	required := map[string]string{
		"UBERDIRECT_API_URL":       c.UberAPIURL,
		"UBERDIRECT_OAUTH_URL":     c.UberOAuthURL,
		"UBERDIRECT_CUSTOMER_ID":   c.UberCustomerID,
		"UBERDIRECT_CLIENT_ID":     c.UberClientID,
		"UBERDIRECT_CLIENT_SECRET": c.UberClientSecret,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s is not set", models.ErrConfiguration, key)
		}
	}
	return nil
}

// WebhookSecret returns the signing secret for one webhook event kind.
func (c *Config) WebhookSecret(kind models.EventKind) (string, error) {
	var secret string
	switch kind {
	case models.EventDeliveryStatus:
		secret = c.WebhookSecretDeliveryStatus
	case models.EventCourierUpdate:
		secret = c.WebhookSecretCourierUpdate
	case models.EventRefundRequest:
		secret = c.WebhookSecretRefundRequest
	}
	if secret == "" {
		return "", fmt.Errorf("%w: webhook secret not found for kind %q", models.ErrConfiguration, kind)
	}
	return secret, nil
}
