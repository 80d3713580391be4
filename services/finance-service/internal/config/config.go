package config

import (
	"fmt"
	"os"
	"time"

	"github.com/IvanGarzon/lfm-admin-sub002/shared/config"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

const (
	BlobBackendGCS    = "gcs"
	BlobBackendMemory = "memory"
)

type FinanceConfig struct {
	CommonConfig *config.CommonConfig // DB, Kafka and RabbitMQ settings shared with other services

	// Blob storage
	BlobBackend     string
	GCSBucket       string
	CredentialsFile string
	CredentialsJSON string
	SignedURLTTL    time.Duration
	BlobTimeout     time.Duration

	// Lifecycle
	OperationTimeout    time.Duration
	InvoiceNumberPrefix string
	QuoteNumberPrefix   string
	CompanyName         string

	// Messaging
	EventsTopic   string
	ReminderQueue string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// LoadConfig loads the finance service configuration
func LoadConfig() (*FinanceConfig, error) {
	common := config.LoadCommonConfig()

	cfg := &FinanceConfig{
		CommonConfig:        common,
		BlobBackend:         getEnv("BLOB_BACKEND", BlobBackendGCS),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		CredentialsFile:     os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		CredentialsJSON:     os.Getenv("GOOGLE_CREDENTIALS"),
		InvoiceNumberPrefix: getEnv("INVOICE_NUMBER_PREFIX", "INV"),
		QuoteNumberPrefix:   getEnv("QUOTE_NUMBER_PREFIX", "QUO"),
		CompanyName:         getEnv("COMPANY_NAME", "Finance"),
		EventsTopic:         getEnv("EVENTS_TOPIC", getEnv("KAFKA_TOPIC", "invoice-lifecycle")),
		ReminderQueue:       getEnv("REMINDER_QUEUE", "invoice-reminders"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:           getEnv("LOG_OUTPUT", "stdout"),
	}

	var err error
	if cfg.SignedURLTTL, err = durationEnv("SIGNED_URL_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OperationTimeout, err = durationEnv("OPERATION_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BlobTimeout, err = durationEnv("BLOB_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *FinanceConfig) validate() error {
	switch c.BlobBackend {
	case BlobBackendGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when BLOB_BACKEND=gcs")
		}
	case BlobBackendMemory:
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BlobBackendGCS, BlobBackendMemory, c.BlobBackend)
	}
	if c.SignedURLTTL <= 0 || c.OperationTimeout <= 0 || c.BlobTimeout <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	if c.InvoiceNumberPrefix == c.QuoteNumberPrefix {
		return fmt.Errorf("INVOICE_NUMBER_PREFIX and QUOTE_NUMBER_PREFIX must differ")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *FinanceConfig) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
