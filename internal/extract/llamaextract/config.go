package llamaextract

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joseph-ayodele/consultation-extract/internal/common"
)

const (
	BaseURLUS = "https://api.cloud.llamaindex.ai"
	BaseURLEU = "https://api.cloud.eu.llamaindex.ai"
)

// Config for the LlamaExtract client.
type Config struct {
	APIKey         string        // required
	BaseURL        string        // overrides Region when set
	Region         string        // "eu" or "us"; default us
	ProjectID      string        // optional project scope
	AgentName      string        // default company-info-extractor
	Mode           string        // extraction_mode sent when creating the agent
	PollInterval   time.Duration // job status polling period
	MaxRetries     int           // retries per HTTP call on transient failures
	RetryInterval  time.Duration // first backoff interval; default 500ms
	RequestTimeout time.Duration // per HTTP call
}

// Client talks to the LlamaExtract REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	agents map[string]string // schema name -> agent id
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// FromAppConfig maps the application config onto client settings.
func FromAppConfig(ec common.ExtractConfig) Config {
	return Config{
		APIKey:       ec.APIKey,
		BaseURL:      ec.BaseURL,
		Region:       ec.Region,
		ProjectID:    ec.ProjectID,
		AgentName:    ec.AgentName,
		Mode:         ec.Mode,
		PollInterval: ec.PollInterval,
		MaxRetries:   ec.MaxRetries,
	}
}

func NewClient(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.ConfigurationError("llamaextract api key is required", common.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		if strings.EqualFold(cfg.Region, "eu") {
			cfg.BaseURL = BaseURLEU
		} else {
			cfg.BaseURL = BaseURLUS
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AgentName == "" {
		cfg.AgentName = "company-info-extractor"
	}
	if cfg.Mode == "" {
		cfg.Mode = "BALANCED"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		agents: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
