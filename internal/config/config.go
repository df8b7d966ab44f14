// Package config содержит логику чтения конфигурации сервиса витрины.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/storefront/internal/model"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultClientURL     = "http://localhost:5173"
	defaultCurrency      = "usd"
	defaultMongoDatabase = "storefront"
	defaultRetryInterval = 30 * time.Second
	defaultAssistantRate = 20
)

// Config содержит параметры конфигурации сервиса витрины.
type Config struct {
	RunAddress          string        `env:"RUN_ADDRESS"`
	DatabaseURI         string        `env:"DATABASE_URI"`
	AuthSecret          string        `env:"AUTH_SECRET"`
	AdminEmail          string        `env:"ADMIN_EMAIL"`
	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	ClientURL           string        `env:"CLIENT_URL"`
	Currency            string        `env:"CURRENCY"`
	AssistantAPIURL     string        `env:"ASSISTANT_API_URL"`
	AssistantAPIKey     string        `env:"ASSISTANT_API_KEY"`
	AssistantModel      string        `env:"ASSISTANT_MODEL"`
	MongoURI            string        `env:"MONGO_URI"`
	MongoDatabase       string        `env:"MONGO_DATABASE"`
	RedisURL            string        `env:"REDIS_URL"`
	StoreSettingsFile   string        `env:"STORE_SETTINGS_FILE"`
	RetryInterval       time.Duration `env:"FULFILLMENT_RETRY_INTERVAL"`
	AssistantRateLimit  int           `env:"ASSISTANT_RATE_LIMIT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения переменных окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	fromEnv := Config{}
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth tokens")
	flag.StringVar(&cfg.AdminEmail, "admin-email", "", "email that receives the admin role on registration")
	flag.StringVar(&cfg.StripeSecretKey, "stripe-key", "", "stripe secret key")
	flag.StringVar(&cfg.StripeWebhookSecret, "stripe-webhook-secret", "", "stripe webhook signing secret")
	flag.StringVar(&cfg.ClientURL, "client-url", defaultClientURL, "storefront client URL for checkout redirects")
	flag.StringVar(&cfg.Currency, "currency", defaultCurrency, "checkout currency")
	flag.StringVar(&cfg.AssistantAPIURL, "assistant-url", "", "assistant chat completions endpoint")
	flag.StringVar(&cfg.AssistantAPIKey, "assistant-key", "", "assistant API key")
	flag.StringVar(&cfg.AssistantModel, "assistant-model", "", "assistant model name")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "mongo URI for CMS content")
	flag.StringVar(&cfg.MongoDatabase, "mongo-db", defaultMongoDatabase, "mongo database name")
	flag.StringVar(&cfg.RedisURL, "redis-url", "", "redis URL for rate limiting")
	flag.StringVar(&cfg.StoreSettingsFile, "settings", "", "YAML file with initial store settings")
	flag.DurationVar(&cfg.RetryInterval, "retry-interval", defaultRetryInterval, "interval between fulfillment retries")
	flag.IntVar(&cfg.AssistantRateLimit, "assistant-rate", defaultAssistantRate, "assistant requests per minute per user")

	flag.Parse()

	overrideString(&cfg.RunAddress, fromEnv.RunAddress)
	overrideString(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	overrideString(&cfg.AuthSecret, fromEnv.AuthSecret)
	overrideString(&cfg.AdminEmail, fromEnv.AdminEmail)
	overrideString(&cfg.StripeSecretKey, fromEnv.StripeSecretKey)
	overrideString(&cfg.StripeWebhookSecret, fromEnv.StripeWebhookSecret)
	overrideString(&cfg.ClientURL, fromEnv.ClientURL)
	overrideString(&cfg.Currency, fromEnv.Currency)
	overrideString(&cfg.AssistantAPIURL, fromEnv.AssistantAPIURL)
	overrideString(&cfg.AssistantAPIKey, fromEnv.AssistantAPIKey)
	overrideString(&cfg.AssistantModel, fromEnv.AssistantModel)
	overrideString(&cfg.MongoURI, fromEnv.MongoURI)
	overrideString(&cfg.MongoDatabase, fromEnv.MongoDatabase)
	overrideString(&cfg.RedisURL, fromEnv.RedisURL)
	overrideString(&cfg.StoreSettingsFile, fromEnv.StoreSettingsFile)

	if fromEnv.RetryInterval > 0 {
		cfg.RetryInterval = fromEnv.RetryInterval
	}
	if fromEnv.AssistantRateLimit > 0 {
		cfg.AssistantRateLimit = fromEnv.AssistantRateLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}

	return cfg, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// DefaultStoreSettings возвращает настройки магазина по умолчанию.
func DefaultStoreSettings() model.StoreSettings {
	return model.StoreSettings{
		StoreName:             "Storefront",
		Currency:              defaultCurrency,
		ShippingFee:           0,
		FreeShippingThreshold: 0,
		TaxRate:               "0",
		AssistantEnabled:      true,
	}
}

// LoadStoreSettings читает начальные настройки магазина из YAML-файла.
// Отсутствующие в файле поля берутся из настроек по умолчанию; пустой путь означает только умолчания.
func LoadStoreSettings(path string) (model.StoreSettings, error) {
	s := DefaultStoreSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings file: %w", err)
	}

	return s, nil
}
