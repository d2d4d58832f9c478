package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	Port            string        `mapstructure:"PORT" validate:"required,numeric"`
	GinMode         string        `mapstructure:"GIN_MODE" validate:"oneof=debug release test"`
	LogLevel        string        `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat       string        `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`
	ClientURL       string        `mapstructure:"CLIENT_URL" validate:"required,url"`

	StoreBackend                     string `mapstructure:"STORE_BACKEND" validate:"required,oneof=firestore memory"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID" validate:"required_if=StoreBackend firestore"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	JWTSecret         string `mapstructure:"JWT_SECRET" validate:"required,min=32"`
	PaymentDetailsKey string `mapstructure:"PAYMENT_DETAILS_KEY"` // Base64 encoded 32-byte key, optional
	AdminSignupCode   string `mapstructure:"ADMIN_SIGNUP_CODE"`
	// CheckoutAutoVerify marks accounts created during checkout as verified.
	CheckoutAutoVerify bool `mapstructure:"CHECKOUT_AUTO_VERIFY"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT" validate:"gte=0,lte=65535"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM" validate:"required,email"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB" validate:"gte=0"`
	CatalogCacheTTL time.Duration `mapstructure:"CATALOG_CACHE_TTL"`

	AMQPURL            string        `mapstructure:"AMQP_URL"`
	NotificationQueue  string        `mapstructure:"NOTIFICATION_QUEUE" validate:"required"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL" validate:"required"`
	OutboxMaxAttempts  int           `mapstructure:"OUTBOX_MAX_ATTEMPTS" validate:"gte=1,lte=100"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var keys = []string{
	"APP_ENV", "PORT", "GIN_MODE", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT", "CLIENT_URL",
	"STORE_BACKEND", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"JWT_SECRET", "PAYMENT_DETAILS_KEY", "ADMIN_SIGNUP_CODE", "CHECKOUT_AUTO_VERIFY",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CATALOG_CACHE_TTL",
	"AMQP_URL", "NOTIFICATION_QUEUE", "OUTBOX_POLL_INTERVAL", "OUTBOX_MAX_ATTEMPTS",
}

// LoadConfig loads configuration from .env, an optional configs/config.yaml and the environment,
// applies defaults and validates the result.
func LoadConfig() (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("STORE_BACKEND", BackendFirestore)
	v.SetDefault("CHECKOUT_AUTO_VERIFY", true)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "no-reply@gclients.dev")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("NOTIFICATION_QUEUE", "notifications")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "30s")
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 5)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.StoreBackend == BackendFirestore && cfg.GoogleApplicationCredentials == "" && cfg.FirebaseServiceAccountJSONBase64 == "" {
		// Application Default Credentials are only acceptable outside production.
		if cfg.AppEnv == "production" {
			return nil, errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required")
		}
	}
	if _, err := cfg.PaymentDetailsKeyBytes(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PaymentDetailsKeyBytes decodes PAYMENT_DETAILS_KEY. A nil key means payment details are stored in clear.
func (c *Config) PaymentDetailsKeyBytes() ([]byte, error) {
	if c.PaymentDetailsKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.PaymentDetailsKey)
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_DETAILS_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PAYMENT_DETAILS_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}
