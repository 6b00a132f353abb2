/**
 * Configuration for the Rent-Roll Worker
 *
 * Loads configuration from environment variables matching .env.rentroll
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds worker configuration
type Config struct {
	// Queue configuration
	RedisURL     string
	QueueName    string
	QueueBackend string // "list" (plain Redis LIST protocol) or "asynq"

	// Persistence
	StoreDriver string // "postgres" or "sqlite"
	DatabaseURL string
	SQLitePath  string

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds

	// OCR configuration
	OCREngine         string // "tesseract-cli" (default) or "gosseract"
	OCRTimeout        int    // milliseconds, per page
	TesseractPath     string
	TesseractLanguage string
	OCRCharWhitelist  string
	OCRMaxImageWidth  int
	OCRMaxImageHeight int

	// Extraction
	ExtractionMode string // "auto", "header" or "anchor"

	// Output and analysis
	HTMLOutputDir  string
	AnalysisURL    string
	AnalysisAPIKey string
	AnalysisModel  string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables and validates it
func LoadConfig() (*Config, error) {
	cfg := FromEnv()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FromEnv reads the environment without validating, for callers that
// override values before use
func FromEnv() *Config {
	return &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "rentroll:jobs"),
		QueueBackend:      getEnvOrDefault("QUEUE_BACKEND", "list"),
		StoreDriver:       getEnvOrDefault("STORE_DRIVER", "postgres"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		SQLitePath:        getEnvOrDefault("SQLITE_PATH", "rentroll.db"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 104857600), // 100MB
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		OCREngine:         getEnvOrDefault("OCR_ENGINE", "tesseract-cli"),
		OCRTimeout:        getEnvAsIntOrDefault("OCR_TIMEOUT", 60000), // 60 seconds per page
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "tesseract"),
		TesseractLanguage: getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		OCRCharWhitelist:  getEnvOrDefault("OCR_CHAR_WHITELIST", ""),
		OCRMaxImageWidth:  getEnvAsIntOrDefault("OCR_MAX_IMAGE_WIDTH", 1000),
		OCRMaxImageHeight: getEnvAsIntOrDefault("OCR_MAX_IMAGE_HEIGHT", 1000),
		ExtractionMode:    getEnvOrDefault("EXTRACTION_MODE", "auto"),
		HTMLOutputDir:     getEnvOrDefault("HTML_OUTPUT_DIR", ""),
		AnalysisURL:       getEnvOrDefault("ANALYSIS_URL", "https://api.openai.com/v1/chat/completions"),
		AnalysisAPIKey:    getEnvOrDefault("ANALYSIS_API_KEY", ""),
		AnalysisModel:     getEnvOrDefault("ANALYSIS_MODEL", "gpt-3.5-turbo"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or sqlite, got %q", c.StoreDriver)
	}

	if c.QueueBackend != "list" && c.QueueBackend != "asynq" {
		return fmt.Errorf("QUEUE_BACKEND must be list or asynq, got %q", c.QueueBackend)
	}

	if c.OCREngine != "gosseract" && c.OCREngine != "tesseract-cli" {
		return fmt.Errorf("OCR_ENGINE must be gosseract or tesseract-cli, got %q", c.OCREngine)
	}

	switch c.ExtractionMode {
	case "auto", "header", "anchor":
	default:
		return fmt.Errorf("EXTRACTION_MODE must be auto, header or anchor, got %q", c.ExtractionMode)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 10737418240 { // 1KB to 10GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 10GB, got %d", c.MaxFileSize)
	}

	if c.OCRTimeout < 1000 || c.OCRTimeout > 600000 { // 1s to 10 minutes
		return fmt.Errorf("OCR_TIMEOUT must be between 1000 and 600000 ms, got %d", c.OCRTimeout)
	}

	if c.ProcessingTimeout < c.OCRTimeout {
		return fmt.Errorf("PROCESSING_TIMEOUT (%d) must not be shorter than OCR_TIMEOUT (%d)", c.ProcessingTimeout, c.OCRTimeout)
	}

	if c.OCRMaxImageWidth < 0 || c.OCRMaxImageHeight < 0 {
		return fmt.Errorf("OCR image bounds must be non-negative")
	}

	return nil
}

// OCRTimeoutDuration returns the per-page OCR bound
func (c *Config) OCRTimeoutDuration() time.Duration {
	return time.Duration(c.OCRTimeout) * time.Millisecond
}

// ProcessingTimeoutDuration returns the per-job bound
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// AnalysisEnabled reports whether a summary endpoint is configured
func (c *Config) AnalysisEnabled() bool {
	return c.AnalysisURL != "" && c.AnalysisAPIKey != ""
}

// Redacted returns a copy safe to log
func (c *Config) Redacted() Config {
	out := *c
	out.DatabaseURL = redactURL(c.DatabaseURL)
	out.RedisURL = redactURL(c.RedisURL)
	if out.AnalysisAPIKey != "" {
		out.AnalysisAPIKey = "***"
	}
	return out
}

func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
