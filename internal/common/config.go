package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath  = "config.yaml"
	DefaultSecretsPath = "secrets.env"
	DefaultInputDir    = "input"
	DefaultOutputPath  = "output/company_analysis_llama_extract.xlsx"
)

// Config holds all application configuration
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Extract ExtractConfig `yaml:"extract"`
	Batch   BatchConfig   `yaml:"batch"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Archive ArchiveConfig `yaml:"archive"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Log     LogConfig     `yaml:"log"`
}

// InputConfig holds report discovery configuration
type InputConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Recursive  bool     `yaml:"recursive"`
}

// OutputConfig holds report writer configuration
type OutputConfig struct {
	Path string `yaml:"path"`
}

// ExtractConfig holds extraction service configuration.
// APIKey is never read from YAML; it comes from the secrets file or the environment.
type ExtractConfig struct {
	APIKey       string        `yaml:"-"`
	BaseURL      string        `yaml:"base_url"`
	Region       string        `yaml:"region"`
	ProjectID    string        `yaml:"project_id"`
	AgentName    string        `yaml:"agent_name"`
	Mode         string        `yaml:"mode"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// BatchConfig holds batch orchestration configuration
type BatchConfig struct {
	Workers int  `yaml:"workers"`
	Reuse   bool `yaml:"reuse"`
}

// LedgerConfig holds run ledger configuration. An empty DSN disables the ledger.
type LedgerConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// ArchiveConfig holds S3-compatible report archive configuration
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether archive upload is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Endpoint != "" && a.Bucket != ""
}

// MetricsConfig holds Prometheus Pushgateway configuration
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadOptions tells LoadConfig where to look.
type LoadOptions struct {
	ConfigPath  string              // YAML file; a missing default file is ignored
	SecretsPath string              // dotenv-format secrets file; a missing default file is ignored
	Getenv      func(string) string // defaults to os.Getenv
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Input:  InputConfig{Dir: DefaultInputDir, Extensions: []string{"docx"}},
		Output: OutputConfig{Path: DefaultOutputPath},
		Extract: ExtractConfig{
			Region:       "eu",
			AgentName:    "company-info-extractor",
			Mode:         "BALANCED",
			PollInterval: 2 * time.Second,
			Timeout:      3 * time.Minute,
			MaxRetries:   2,
		},
		Batch: BatchConfig{Workers: 1},
		Ledger: LedgerConfig{
			MaxConns:        4,
			MaxConnLifetime: 30 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Metrics: MetricsConfig{Job: "consultation_extract"},
		Tracing: TracingConfig{ServiceName: "consultation-extract", SampleRatio: 1.0},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadConfig layers defaults, the YAML file, the secrets file and the environment,
// in that order of increasing precedence.
func LoadConfig(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	cfgPath, explicitCfg := opts.ConfigPath, opts.ConfigPath != ""
	if !explicitCfg {
		cfgPath = DefaultConfigPath
	}
	if data, err := os.ReadFile(cfgPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ConfigurationError(fmt.Sprintf("parse config %s", cfgPath), err)
		}
	} else if explicitCfg || !errors.Is(err, fs.ErrNotExist) {
		return nil, ConfigurationError(fmt.Sprintf("read config %s", cfgPath), err)
	}

	secPath, explicitSec := opts.SecretsPath, opts.SecretsPath != ""
	if !explicitSec {
		secPath = DefaultSecretsPath
	}
	secrets, err := godotenv.Read(secPath)
	if err != nil {
		if explicitSec || !errors.Is(err, fs.ErrNotExist) {
			return nil, ConfigurationError(fmt.Sprintf("read secrets %s", secPath), err)
		}
		secrets = map[string]string{}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	l := lookup{env: getenv, secrets: secrets}
	l.apply(cfg)
	return cfg, nil
}

type lookup struct {
	env     func(string) string
	secrets map[string]string
}

func (l lookup) get(key string) string {
	if v := l.env(key); v != "" {
		return v
	}
	return l.secrets[key]
}

func (l lookup) apply(c *Config) {
	c.Input.Dir = l.getEnv("INPUT_DIR", c.Input.Dir)
	c.Output.Path = l.getEnv("OUTPUT_PATH", c.Output.Path)

	c.Extract.APIKey = l.getEnv("LLAMA_CLOUD_API_KEY", l.get("LLAMA_CLOUD_API_KEY_EU"))
	c.Extract.BaseURL = l.getEnv("LLAMA_CLOUD_BASE_URL", c.Extract.BaseURL)
	c.Extract.Region = strings.ToLower(l.getEnv("LLAMA_CLOUD_REGION", c.Extract.Region))
	c.Extract.ProjectID = l.getEnv("LLAMA_CLOUD_PROJECT_ID", c.Extract.ProjectID)
	c.Extract.AgentName = l.getEnv("LLAMA_EXTRACT_AGENT", c.Extract.AgentName)
	c.Extract.Mode = l.getEnv("LLAMA_EXTRACT_MODE", c.Extract.Mode)
	c.Extract.PollInterval = l.getEnvAsDuration("EXTRACT_POLL_INTERVAL", c.Extract.PollInterval)
	c.Extract.Timeout = l.getEnvAsDuration("EXTRACT_TIMEOUT", c.Extract.Timeout)
	c.Extract.MaxRetries = l.getEnvAsInt("EXTRACT_MAX_RETRIES", c.Extract.MaxRetries)

	c.Batch.Workers = l.getEnvAsInt("BATCH_WORKERS", c.Batch.Workers)
	c.Batch.Reuse = l.getEnvAsBool("BATCH_REUSE", c.Batch.Reuse)

	c.Ledger.DSN = l.getEnv("LEDGER_DSN", c.Ledger.DSN)
	c.Ledger.MaxConns = l.getEnvAsInt32("LEDGER_MAX_CONNS", c.Ledger.MaxConns)

	c.Archive.Endpoint = l.getEnv("ARCHIVE_ENDPOINT", c.Archive.Endpoint)
	c.Archive.AccessKey = l.getEnv("ARCHIVE_ACCESS_KEY", c.Archive.AccessKey)
	c.Archive.SecretKey = l.getEnv("ARCHIVE_SECRET_KEY", c.Archive.SecretKey)
	c.Archive.Bucket = l.getEnv("ARCHIVE_BUCKET", c.Archive.Bucket)
	c.Archive.Region = l.getEnv("ARCHIVE_REGION", c.Archive.Region)
	c.Archive.UseSSL = l.getEnvAsBool("ARCHIVE_USE_SSL", c.Archive.UseSSL)

	c.Metrics.PushgatewayURL = l.getEnv("PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
	c.Metrics.Job = l.getEnv("METRICS_JOB", c.Metrics.Job)

	c.Tracing.Endpoint = l.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.ServiceName = l.getEnv("OTEL_SERVICE_NAME", c.Tracing.ServiceName)

	c.Log.Level = l.getEnv("LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func (l lookup) getEnv(key, defaultValue string) string {
	if value := l.get(key); value != "" {
		return value
	}
	return defaultValue
}

func (l lookup) getEnvAsInt(key string, defaultValue int) int {
	if value := l.get(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (l lookup) getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := l.get(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func (l lookup) getEnvAsBool(key string, defaultValue bool) bool {
	if value := l.get(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (l lookup) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := l.get(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Extract.APIKey) == "" {
		return ConfigurationError("LLAMA_CLOUD_API_KEY is required", ErrInvalidInput)
	}
	if c.Extract.Region != "" && c.Extract.Region != "eu" && c.Extract.Region != "us" {
		return ConfigurationError(fmt.Sprintf("unknown region %q (want eu or us)", c.Extract.Region), ErrInvalidInput)
	}
	if err := ValidateInputDir(c.Input.Dir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return ConfigurationError("output path is required", ErrInvalidInput)
	}
	if c.Batch.Workers < 1 {
		return ConfigurationError("batch workers must be >= 1", ErrInvalidInput)
	}
	if c.Extract.MaxRetries < 0 {
		return ConfigurationError("extract max retries must be >= 0", ErrInvalidInput)
	}
	return nil
}

// ValidateInputDir reports a CONFIG_ERROR unless dir is an existing directory.
func ValidateInputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return ConfigurationError("input directory is required", ErrInvalidInput)
	}
	st, err := os.Stat(dir)
	if err != nil {
		return ConfigurationError(fmt.Sprintf("input directory %s", dir), err)
	}
	if !st.IsDir() {
		return ConfigurationError(fmt.Sprintf("input path %s is not a directory", dir), ErrInvalidInput)
	}
	return nil
}
