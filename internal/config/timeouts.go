package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends.
const (
	StoreFile = "file"
	StoreS3   = "s3"
)

// Settings holds the tunables of the orchestrator.
type Settings struct {
	// PollInterval is the fixed delay between completion polls.
	PollInterval time.Duration `mapstructure:"pollInterval"`
	// WorkflowTimeout sets each workflow's absolute deadline relative to its start.
	WorkflowTimeout time.Duration `mapstructure:"workflowTimeout"`
	// MaxConcurrentOps bounds the in-flight operations of a single fan-out.
	MaxConcurrentOps int `mapstructure:"maxConcurrentOps"`
	// ClientCacheSize bounds the number of cached provider clients.
	ClientCacheSize int `mapstructure:"clientCacheSize"`
	// MaxWorkflows bounds concurrently running workflows.
	MaxWorkflows int           `mapstructure:"maxWorkflows"`
	Store        StoreSettings `mapstructure:"store"`
}

// StoreSettings selects and configures the descriptor store.
type StoreSettings struct {
	Kind      string `mapstructure:"kind"`
	Path      string `mapstructure:"path"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	PathStyle bool   `mapstructure:"pathStyle"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		PollInterval:     5 * time.Second,
		WorkflowTimeout:  10 * time.Minute,
		MaxConcurrentOps: 50,
		ClientCacheSize:  32,
		MaxWorkflows:     16,
		Store: StoreSettings{
			Kind:   StoreFile,
			Path:   "hcprov-state.yaml",
			Prefix: "hcprov",
			Region: "fsn1",
		},
	}
}

// LoadSettings loads settings from environment variables.
// If a variable is not set or invalid, the default value is used.
//
// Environment Variables:
//   - HCPROV_POLL_INTERVAL (default: 5s)
//   - HCPROV_WORKFLOW_TIMEOUT (default: 10m)
//   - HCPROV_MAX_CONCURRENT_OPS (default: 50)
//   - HCPROV_CLIENT_CACHE_SIZE (default: 32)
//   - HCPROV_MAX_WORKFLOWS (default: 16)
//   - HCPROV_STORE (default: file), HCPROV_STORE_PATH (default: hcprov-state.yaml)
//   - HCPROV_S3_BUCKET, HCPROV_S3_PREFIX, HCPROV_S3_ENDPOINT, HCPROV_S3_REGION,
//     HCPROV_S3_ACCESS_KEY, HCPROV_S3_SECRET_KEY, HCPROV_S3_PATH_STYLE
func LoadSettings() *Settings {
	d := Default()
	return &Settings{
		PollInterval:     parseDuration("HCPROV_POLL_INTERVAL", d.PollInterval),
		WorkflowTimeout:  parseDuration("HCPROV_WORKFLOW_TIMEOUT", d.WorkflowTimeout),
		MaxConcurrentOps: parseInt("HCPROV_MAX_CONCURRENT_OPS", d.MaxConcurrentOps),
		ClientCacheSize:  parseInt("HCPROV_CLIENT_CACHE_SIZE", d.ClientCacheSize),
		MaxWorkflows:     parseInt("HCPROV_MAX_WORKFLOWS", d.MaxWorkflows),
		Store: StoreSettings{
			Kind:      parseString("HCPROV_STORE", d.Store.Kind),
			Path:      parseString("HCPROV_STORE_PATH", d.Store.Path),
			Bucket:    parseString("HCPROV_S3_BUCKET", d.Store.Bucket),
			Prefix:    parseString("HCPROV_S3_PREFIX", d.Store.Prefix),
			Endpoint:  parseString("HCPROV_S3_ENDPOINT", d.Store.Endpoint),
			Region:    parseString("HCPROV_S3_REGION", d.Store.Region),
			AccessKey: parseString("HCPROV_S3_ACCESS_KEY", ""),
			SecretKey: parseString("HCPROV_S3_SECRET_KEY", ""),
			PathStyle: parseBool("HCPROV_S3_PATH_STYLE", false),
		},
	}
}

// Validate checks the settings for values the orchestrator cannot run with.
func (s *Settings) Validate() error {
	switch {
	case s.PollInterval <= 0:
		return fmt.Errorf("pollInterval must be positive, got %s", s.PollInterval)
	case s.WorkflowTimeout <= 0:
		return fmt.Errorf("workflowTimeout must be positive, got %s", s.WorkflowTimeout)
	case s.MaxConcurrentOps <= 0:
		return fmt.Errorf("maxConcurrentOps must be positive, got %d", s.MaxConcurrentOps)
	case s.ClientCacheSize <= 0:
		return fmt.Errorf("clientCacheSize must be positive, got %d", s.ClientCacheSize)
	case s.MaxWorkflows <= 0:
		return fmt.Errorf("maxWorkflows must be positive, got %d", s.MaxWorkflows)
	}

	switch s.Store.Kind {
	case StoreFile:
		if s.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file store")
		}
	case StoreS3:
		if s.Store.Bucket == "" {
			return fmt.Errorf("store.bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("unknown store kind %q (want %q or %q)", s.Store.Kind, StoreFile, StoreS3)
	}
	return nil
}

func parseString(envVar, defaultVal string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func parseBool(envVar string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(envVar))
	if err != nil {
		return defaultVal
	}
	return b
}
