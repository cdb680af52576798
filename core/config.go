package core

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultBaseURL              = "https://api.runpod.ai"
	DefaultSubmitMode           = "auto"
	DefaultEmbedEncoding        = "base64"
	DefaultCategory             = "upper"
	DefaultSteps                = 50
	DefaultGuidance             = 2.5
	DefaultSeed                 = 42
	DefaultJobTimeout           = 300 * time.Second
	DefaultPollInterval         = 5 * time.Second
	DefaultRequestTimeout       = 30 * time.Second
	DefaultSyncTimeout          = 120 * time.Second
	DefaultFetchTimeout         = 10 * time.Second
	DefaultMaxTransportFailures = 3
	DefaultMaxFileSize          = 52428800 // 50MB
	DefaultLogFile              = "tryon.log"
	DefaultOutputDir            = "."
)

// Config holds all configuration values for the try-on client.
type Config struct {
	// Endpoint
	APIKey     string
	EndpointID string
	BaseURL    string

	// Submission
	SubmitMode        string // embedded, by-reference or auto
	EmbedEncoding     string // base64 or data-uri
	FetchRemote       bool   // embedded mode: download URL sources and embed them
	MaxImageDimension int    // 0 disables downscaling

	// Job defaults
	Category     string
	Steps        int
	Guidance     float64
	Seed         int64
	WorkflowPath string

	// Timing
	JobTimeout           time.Duration // overall deadline for one job
	PollInterval         time.Duration
	RequestTimeout       time.Duration // per-call timeout for run/status/cancel
	SyncTimeout          time.Duration // per-call timeout for runsync
	FetchTimeout         time.Duration // remote image downloads
	MaxTransportFailures int

	// Storage
	HistoryDB            string // empty disables job history
	OutputDir            string
	MaxFileSize          int64
	AllowSelfSignedCerts bool

	// Logging
	LogFile  string
	LogLevel string
	DevMode  bool
}

// DefaultConfig returns a Config populated with defaults only.
// This is a pure function with no side effects.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:              DefaultBaseURL,
		SubmitMode:           DefaultSubmitMode,
		EmbedEncoding:        DefaultEmbedEncoding,
		Category:             DefaultCategory,
		Steps:                DefaultSteps,
		Guidance:             DefaultGuidance,
		Seed:                 DefaultSeed,
		JobTimeout:           DefaultJobTimeout,
		PollInterval:         DefaultPollInterval,
		RequestTimeout:       DefaultRequestTimeout,
		SyncTimeout:          DefaultSyncTimeout,
		FetchTimeout:         DefaultFetchTimeout,
		MaxTransportFailures: DefaultMaxTransportFailures,
		OutputDir:            DefaultOutputDir,
		MaxFileSize:          DefaultMaxFileSize,
		LogFile:              DefaultLogFile,
		LogLevel:             "info",
	}
}

// fileConfig is the YAML shape of the optional config file. Pointer fields
// distinguish "absent" from zero values so defaults survive.
type fileConfig struct {
	APIKey     *string `yaml:"api_key"`
	EndpointID *string `yaml:"endpoint_id"`
	BaseURL    *string `yaml:"base_url"`

	SubmitMode        *string `yaml:"submit_mode"`
	EmbedEncoding     *string `yaml:"embed_encoding"`
	FetchRemote       *bool   `yaml:"fetch_remote"`
	MaxImageDimension *int    `yaml:"max_image_dimension"`

	Category *string  `yaml:"category"`
	Steps    *int     `yaml:"steps"`
	Guidance *float64 `yaml:"guidance"`
	Seed     *int64   `yaml:"seed"`
	Workflow *string  `yaml:"workflow"`

	TimeoutSeconds        *float64 `yaml:"timeout_seconds"`
	PollIntervalSeconds   *float64 `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds *float64 `yaml:"request_timeout_seconds"`
	SyncTimeoutSeconds    *float64 `yaml:"sync_timeout_seconds"`
	FetchTimeoutSeconds   *float64 `yaml:"fetch_timeout_seconds"`
	MaxTransportFailures  *int     `yaml:"max_transport_failures"`

	HistoryDB            *string `yaml:"history_db"`
	OutputDir            *string `yaml:"output_dir"`
	MaxFileSize          *int64  `yaml:"max_file_size"`
	AllowSelfSignedCerts *bool   `yaml:"allow_self_signed_certs"`

	LogFile  *string `yaml:"log_file"`
	LogLevel *string `yaml:"log_level"`
	DevMode  *bool   `yaml:"dev_mode"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
// An empty path falls back to TRYON_CONFIG; when that is empty too no file is read.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("TRYON_CONFIG"))
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ConfigError{
				Code:    ErrCodeConfigFile,
				Message: fmt.Sprintf("Configuration file not found: %s", path),
				Action:  "Pass an existing file with -config or unset TRYON_CONFIG",
			}
		}
		return &ConfigError{Code: ErrCodeConfigFile, Message: fmt.Sprintf("Cannot read configuration file %s: %v", path, err)}
	}

	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &ConfigError{Code: ErrCodeConfigFile, Message: fmt.Sprintf("Cannot parse configuration file %s: %v", path, err)}
	}

	setString(&c.APIKey, raw.APIKey)
	setString(&c.EndpointID, raw.EndpointID)
	setString(&c.BaseURL, raw.BaseURL)
	setString(&c.SubmitMode, raw.SubmitMode)
	setString(&c.EmbedEncoding, raw.EmbedEncoding)
	setString(&c.Category, raw.Category)
	setString(&c.WorkflowPath, raw.Workflow)
	setString(&c.HistoryDB, raw.HistoryDB)
	setString(&c.OutputDir, raw.OutputDir)
	setString(&c.LogFile, raw.LogFile)
	setString(&c.LogLevel, raw.LogLevel)

	if raw.FetchRemote != nil {
		c.FetchRemote = *raw.FetchRemote
	}
	if raw.MaxImageDimension != nil {
		c.MaxImageDimension = *raw.MaxImageDimension
	}
	if raw.Steps != nil {
		c.Steps = *raw.Steps
	}
	if raw.Guidance != nil {
		c.Guidance = *raw.Guidance
	}
	if raw.Seed != nil {
		c.Seed = *raw.Seed
	}
	if raw.MaxTransportFailures != nil {
		c.MaxTransportFailures = *raw.MaxTransportFailures
	}
	if raw.MaxFileSize != nil {
		c.MaxFileSize = *raw.MaxFileSize
	}
	if raw.AllowSelfSignedCerts != nil {
		c.AllowSelfSignedCerts = *raw.AllowSelfSignedCerts
	}
	if raw.DevMode != nil {
		c.DevMode = *raw.DevMode
	}

	setSeconds(&c.JobTimeout, raw.TimeoutSeconds)
	setSeconds(&c.PollInterval, raw.PollIntervalSeconds)
	setSeconds(&c.RequestTimeout, raw.RequestTimeoutSeconds)
	setSeconds(&c.SyncTimeout, raw.SyncTimeoutSeconds)
	setSeconds(&c.FetchTimeout, raw.FetchTimeoutSeconds)

	return nil
}

func (c *Config) applyEnv() error {
	envString("RUNPOD_API_KEY", &c.APIKey)
	envString("RUNPOD_ENDPOINT_ID", &c.EndpointID)
	envString("RUNPOD_BASE_URL", &c.BaseURL)
	envString("TRYON_SUBMIT_MODE", &c.SubmitMode)
	envString("TRYON_EMBED_ENCODING", &c.EmbedEncoding)
	envString("TRYON_CATEGORY", &c.Category)
	envString("TRYON_WORKFLOW", &c.WorkflowPath)
	envString("TRYON_HISTORY_DB", &c.HistoryDB)
	envString("TRYON_OUTPUT_DIR", &c.OutputDir)
	envString("LOG_FILE", &c.LogFile)
	envString("LOG_LEVEL", &c.LogLevel)

	parsers := []error{
		envBool("TRYON_FETCH_REMOTE", &c.FetchRemote),
		envInt("TRYON_MAX_IMAGE_DIMENSION", &c.MaxImageDimension),
		envInt("TRYON_STEPS", &c.Steps),
		envFloat("TRYON_GUIDANCE", &c.Guidance),
		envInt64("TRYON_SEED", &c.Seed),
		envSeconds("TRYON_TIMEOUT", &c.JobTimeout),
		envSeconds("TRYON_POLL_INTERVAL", &c.PollInterval),
		envSeconds("TRYON_REQUEST_TIMEOUT", &c.RequestTimeout),
		envSeconds("TRYON_SYNC_TIMEOUT", &c.SyncTimeout),
		envSeconds("TRYON_FETCH_TIMEOUT", &c.FetchTimeout),
		envInt("TRYON_MAX_TRANSPORT_FAILURES", &c.MaxTransportFailures),
		envInt64("MAX_FILE_SIZE", &c.MaxFileSize),
		envBool("ALLOW_SELF_SIGNED_CERTS", &c.AllowSelfSignedCerts),
		envBool("DEV_MODE", &c.DevMode),
	}
	return errors.Join(parsers...)
}

// Validate checks numeric ranges. Enumerated values (mode, category, encoding)
// are parsed and validated by the packages that own them.
func (c *Config) Validate() error {
	switch {
	case c.Steps <= 0:
		return ErrInvalidValue("steps", c.Steps, "must be greater than 0")
	case c.Guidance < 0:
		return ErrInvalidValue("guidance", c.Guidance, "must be 0 or greater")
	case c.JobTimeout <= 0:
		return ErrInvalidValue("timeout", c.JobTimeout, "must be greater than 0")
	case c.PollInterval <= 0:
		return ErrInvalidValue("poll interval", c.PollInterval, "must be greater than 0")
	case c.RequestTimeout <= 0:
		return ErrInvalidValue("request timeout", c.RequestTimeout, "must be greater than 0")
	case c.SyncTimeout <= 0:
		return ErrInvalidValue("sync timeout", c.SyncTimeout, "must be greater than 0")
	case c.FetchTimeout <= 0:
		return ErrInvalidValue("fetch timeout", c.FetchTimeout, "must be greater than 0")
	case c.MaxTransportFailures <= 0:
		return ErrInvalidValue("max transport failures", c.MaxTransportFailures, "must be greater than 0")
	case c.MaxImageDimension < 0:
		return ErrInvalidValue("max image dimension", c.MaxImageDimension, "must be 0 (disabled) or positive")
	case c.MaxFileSize <= 0:
		return ErrInvalidValue("max file size", c.MaxFileSize, "must be greater than 0")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return ErrInvalidValue("base URL", c.BaseURL, "must start with http:// or https://")
	}
	return nil
}

// RequireEndpoint reports the credentials needed before talking to the service.
func (c *Config) RequireEndpoint() error {
	var missing []error
	if c.APIKey == "" {
		missing = append(missing, ErrMissingConfig("RUNPOD_API_KEY"))
	}
	if c.EndpointID == "" {
		missing = append(missing, ErrMissingConfig("RUNPOD_ENDPOINT_ID"))
	}
	return errors.Join(missing...)
}

// HasHistory returns true if a job history database is configured.
func (c *Config) HasHistory() bool {
	return c.HistoryDB != ""
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on AllowSelfSignedCerts.
// A zero timeout leaves deadlines to the request context.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

func setString(dst *string, src *string) {
	if src != nil && strings.TrimSpace(*src) != "" {
		*dst = strings.TrimSpace(*src)
	}
}

func setSeconds(dst *time.Duration, src *float64) {
	if src != nil {
		*dst = time.Duration(*src * float64(time.Second))
	}
}
