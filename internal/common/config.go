package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Paths  PathsConfig
	LLM    LLMConfig
	Raster RasterConfig
	Link   LinkConfig
	Watch  WatchConfig
	Log    LogConfig
}

// PathsConfig holds directory and database locations.
type PathsConfig struct {
	BaseDir      string // project root; inbox, processed dir and DB default under it
	InboxDir     string // where scanned PDFs arrive
	ProcessedDir string // page images + extraction JSON artifacts
	DBPath       string
}

// LLMConfig holds model API configuration.
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	ExtractModel string // vision-capable model for per-page extraction
	LinkModel    string // cheaper model for issue linking
	Timeout      time.Duration
	MaxRetries   int
	Breaker      bool // trip a circuit breaker when the API keeps failing
}

// RasterConfig holds PDF rasterization parameters.
type RasterConfig struct {
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	DPI         int
	JPEGQuality int
	MaxPages    int // page-count ceiling; documents above it are skipped
}

// LinkConfig holds issue-linking behavior.
type LinkConfig struct {
	MinConfidence float64 // accept a model match at or above this
}

// WatchConfig holds folder-watch retry behavior.
type WatchConfig struct {
	RetryAttempts int
	RetryCooldown time.Duration
	StablePoll    time.Duration // interval between file-size stability checks
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string // debug | info | warn | error
}

// LoadConfig loads configuration from the environment, reading a .env file
// from the base directory first when present.
func LoadConfig() *Config {
	base := getEnv("PFLEGEDOCS_DIR", ".")
	_ = godotenv.Load(filepath.Join(base, ".env"))

	return &Config{
		Paths: PathsConfig{
			BaseDir:      base,
			InboxDir:     getEnv("PFLEGEDOCS_INBOX", filepath.Join(base, "inbox")),
			ProcessedDir: getEnv("PFLEGEDOCS_PROCESSED", filepath.Join(base, "processed")),
			DBPath:       getEnv("PFLEGEDOCS_DB", filepath.Join(base, "pflegedocs.db")),
		},
		LLM: LLMConfig{
			APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:      getEnv("ANTHROPIC_BASE_URL", ""),
			ExtractModel: getEnv("PFLEGEDOCS_MODEL", "claude-sonnet-4-20250514"),
			LinkModel:    getEnv("PFLEGEDOCS_LINK_MODEL", "claude-haiku-4-5-20251001"),
			Timeout:      getEnvAsDuration("PFLEGEDOCS_API_TIMEOUT", 120*time.Second),
			MaxRetries:   getEnvAsInt("PFLEGEDOCS_API_MAX_RETRIES", 2),
			Breaker:      getEnvAsBool("PFLEGEDOCS_BREAKER", true),
		},
		Raster: RasterConfig{
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:         getEnvAsInt("PFLEGEDOCS_DPI", 150),
			JPEGQuality: getEnvAsInt("PFLEGEDOCS_JPEG_QUALITY", 85),
			MaxPages:    getEnvAsInt("PFLEGEDOCS_MAX_PAGES", 20),
		},
		Link: LinkConfig{
			MinConfidence: getEnvAsFloat64("PFLEGEDOCS_LINK_CONFIDENCE", 0.6),
		},
		Watch: WatchConfig{
			RetryAttempts: getEnvAsInt("PFLEGEDOCS_WATCH_RETRIES", 2),
			RetryCooldown: getEnvAsDuration("PFLEGEDOCS_WATCH_COOLDOWN", 30*time.Second),
			StablePoll:    getEnvAsDuration("PFLEGEDOCS_WATCH_STABLE_POLL", time.Second),
		},
		Log: LogConfig{
			Level: getEnv("PFLEGEDOCS_LOG_LEVEL", "info"),
		},
	}
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Paths,
		validation.Field(&c.Paths.InboxDir, validation.Required),
		validation.Field(&c.Paths.ProcessedDir, validation.Required),
		validation.Field(&c.Paths.DBPath, validation.Required),
	); err != nil {
		return NewAppError("CONFIG_ERROR", "paths", err)
	}
	if err := validation.ValidateStruct(&c.LLM,
		validation.Field(&c.LLM.APIKey, validation.Required),
		validation.Field(&c.LLM.ExtractModel, validation.Required),
		validation.Field(&c.LLM.LinkModel, validation.Required),
	); err != nil {
		return NewAppError("CONFIG_ERROR", "llm", err)
	}
	if err := validation.ValidateStruct(&c.Raster,
		validation.Field(&c.Raster.DPI, validation.Required, validation.Min(50), validation.Max(600)),
		validation.Field(&c.Raster.JPEGQuality, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Raster.MaxPages, validation.Required, validation.Min(1)),
	); err != nil {
		return NewAppError("CONFIG_ERROR", "raster", err)
	}
	if c.Link.MinConfidence < 0 || c.Link.MinConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "link confidence must be in [0,1]", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
