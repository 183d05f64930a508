package anthropic

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mkessler/pflegedocs/internal/resilience"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// Config for the Anthropic client.
type Config struct {
	APIKey       string        // if empty, falls back to env ANTHROPIC_API_KEY
	BaseURL      string        // default https://api.anthropic.com
	ExtractModel string        // vision-capable model for page extraction
	LinkModel    string        // cheaper model for issue linking
	Timeout      time.Duration // per-call http client timeout
	MaxRetries   int           // bounded transport retries for transient failures
	Breaker      bool          // circuit-break llm.extract / llm.link on sustained failures
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	exec       *resilience.Executor
	system     string
	logger     *slog.Logger
}

func NewClient(cfg Config, system string, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ExtractModel == "" {
		cfg.ExtractModel = "claude-sonnet-4-20250514"
	}
	if cfg.LinkModel == "" {
		cfg.LinkModel = "claude-haiku-4-5-20251001"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.MaxRetries + 1
	rc.BreakerEnabled = cfg.Breaker
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		exec:       resilience.NewExecutor(rc),
		system:     system,
		logger:     logger,
	}
}
