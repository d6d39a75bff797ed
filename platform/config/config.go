// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// BillingConfig provides settings for the MikroWISP billing API client and
// the status evaluation service.
type BillingConfig interface {
	GetMikrowispURL() string
	GetMikrowispToken() string
	GetMikrowispTLSInsecure() bool
	GetMikrowispTimeout() time.Duration
	GetMikrowispRetries() int
	GetBillingLocation() *time.Location
	GetBillingInvoiceLimit() int
	GetBillingLookupConcurrency() int
}

// MessagingConfig provides settings for the Hibot messaging API.
type MessagingConfig interface {
	GetHibotURL() string
	GetHibotAppID() string
	GetHibotAppSecret() string
	GetHibotChannelID() string
	GetStickerURL() string
	GetStickerMediaType() string
	IsMessagingEnabled() bool
}

// SchedulerConfig provides settings for the asynq dispatch queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	CORSAllowAll             bool
	CORSOrigins              []string
	RateLimitRPS             float64
	RateLimitBurst           int
	MikrowispURL             string
	MikrowispToken           string
	MikrowispTLSInsecure     bool
	MikrowispTimeout         time.Duration
	MikrowispRetries         int
	BillingLocation          *time.Location
	BillingInvoiceLimit      int
	BillingLookupConcurrency int
	HibotURL                 string
	HibotAppID               string
	HibotAppSecret           string
	HibotChannelID           string
	StickerURL               string
	StickerMediaType         string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// BillingConfig implementation
func (c *Config) GetMikrowispURL() string             { return c.MikrowispURL }
func (c *Config) GetMikrowispToken() string           { return c.MikrowispToken }
func (c *Config) GetMikrowispTLSInsecure() bool       { return c.MikrowispTLSInsecure }
func (c *Config) GetMikrowispTimeout() time.Duration  { return c.MikrowispTimeout }
func (c *Config) GetMikrowispRetries() int            { return c.MikrowispRetries }
func (c *Config) GetBillingLocation() *time.Location  { return c.BillingLocation }
func (c *Config) GetBillingInvoiceLimit() int         { return c.BillingInvoiceLimit }
func (c *Config) GetBillingLookupConcurrency() int    { return c.BillingLookupConcurrency }

// MessagingConfig implementation
func (c *Config) GetHibotURL() string       { return c.HibotURL }
func (c *Config) GetHibotAppID() string     { return c.HibotAppID }
func (c *Config) GetHibotAppSecret() string { return c.HibotAppSecret }
func (c *Config) GetHibotChannelID() string { return c.HibotChannelID }
func (c *Config) GetStickerURL() string     { return c.StickerURL }

// GetStickerMediaType is the Hibot message type used for stickers: "image"
// (default) or "sticker".
func (c *Config) GetStickerMediaType() string { return c.StickerMediaType }
func (c *Config) IsMessagingEnabled() bool {
	return c.HibotAppID != "" && c.HibotAppSecret != "" && c.HibotChannelID != ""
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	location, err := time.LoadLocation(getEnv("BILLING_TIMEZONE", "America/Guayaquil"))
	if err != nil {
		return nil, fmt.Errorf("BILLING_TIMEZONE is invalid: %w", err)
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":10000"),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		RateLimitRPS:             mustFloat(getEnv("RATE_LIMIT_RPS", "5")),
		RateLimitBurst:           mustInt(getEnv("RATE_LIMIT_BURST", "20")),
		MikrowispURL:             strings.TrimRight(getEnv("MIKROWISP_API", ""), "/"),
		MikrowispToken:           getEnv("MIKROWISP_TOKEN", ""),
		MikrowispTLSInsecure:     strings.EqualFold(getEnv("MIKROWISP_TLS_INSECURE", "true"), "true"),
		MikrowispTimeout:         mustDuration(getEnv("MIKROWISP_TIMEOUT", "10s")),
		MikrowispRetries:         mustInt(getEnv("MIKROWISP_RETRIES", "2")),
		BillingLocation:          location,
		BillingInvoiceLimit:      mustInt(getEnv("BILLING_INVOICE_LIMIT", "25")),
		BillingLookupConcurrency: mustInt(getEnv("BILLING_LOOKUP_CONCURRENCY", "4")),
		HibotURL:                 getEnv("HIBOT_API_URL", "https://pdn.api.hibot.us/api_external/message/send"),
		HibotAppID:               getEnv("HIBOT_APP_ID", ""),
		HibotAppSecret:           getEnv("HIBOT_APP_SECRET", ""),
		HibotChannelID:           getEnv("HIBOT_CHANNEL_ID", ""),
		StickerURL:               getEnv("STICKER_URL", ""),
		StickerMediaType:         strings.ToLower(strings.TrimSpace(getEnv("HIBOT_STICKER_TYPE", "image"))),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "messages"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MikrowispURL == "" {
		return fmt.Errorf("MIKROWISP_API is required")
	}
	if c.MikrowispToken == "" {
		return fmt.Errorf("MIKROWISP_TOKEN is required")
	}
	if c.MikrowispTimeout <= 0 {
		return fmt.Errorf("MIKROWISP_TIMEOUT must be a positive duration")
	}
	if c.BillingInvoiceLimit < 1 {
		return fmt.Errorf("BILLING_INVOICE_LIMIT must be at least 1")
	}
	if c.StickerMediaType != "image" && c.StickerMediaType != "sticker" {
		return fmt.Errorf("HIBOT_STICKER_TYPE must be image or sticker")
	}
	if c.BillingLookupConcurrency < 1 {
		return fmt.Errorf("BILLING_LOOKUP_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
