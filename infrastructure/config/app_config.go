// Package config loads process-level configuration from the environment
// using struct tags, the same way the teacher's AppConfig does.
package config

import (
	"encoding/base64"
	"fmt"

	env "github.com/Netflix/go-env"
)

// DispatchConfig holds the settings needed to stand up the HTTP surface and
// its SQLite-backed state (§6.1-6.4).
type DispatchConfig struct {
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `env:"VERTEXLB_LISTEN_ADDRESS,default=:8080"`

	// MasterBearerToken gates both endpoints when non-empty; an empty
	// value disables bearer authentication entirely (§6.4).
	MasterBearerToken string `env:"VERTEXLB_MASTER_BEARER_TOKEN,default="`

	// SQLitePath is the path to the SQLite database file backing the
	// Target Store, Settings Snapshot, and Request Log Sink.
	SQLitePath string `env:"VERTEXLB_SQLITE_PATH,default=vertexlb.db"`
}

// TargetSeedConfig optionally bootstraps the first target row on an empty
// database, shaped after the teacher's VertexAIConfig. It is consulted only
// when the Target Store has no rows yet; once targets exist, target
// management happens exclusively through the Target Manager's own
// operations (§4.1), not through configuration.
type TargetSeedConfig struct {
	// Name is the target's display name (§3 Target.name).
	Name string `env:"VERTEXLB_SEED_NAME,default="`

	// ProjectID is the Google Cloud project ID hosting the target.
	ProjectID string `env:"VERTEXLB_SEED_PROJECT_ID,default="`

	// Location is the Vertex AI region, e.g. "us-central1".
	Location string `env:"VERTEXLB_SEED_LOCATION,default=us-central1"`

	// ServiceAccountKeyPath is the path to a service account key file
	// (mutually exclusive with ServiceAccountKey). Seeding does not read this
	// file: when it is set without ServiceAccountKey, container construction
	// fails with an error.
	ServiceAccountKeyPath string `env:"VERTEXLB_SEED_SERVICE_ACCOUNT_KEY_PATH,default="`

	// ServiceAccountKey is the base64-encoded service account key JSON,
	// decoded the same way the teacher decodes TOSAGE_VERTEX_AI_SERVICE_ACCOUNT_KEY.
	ServiceAccountKey string `env:"VERTEXLB_SEED_SERVICE_ACCOUNT_KEY,default="`

	// DailyRateLimit optionally caps the seeded target's daily request
	// budget; zero means unlimited (§3 Target.dailyRateLimit).
	DailyRateLimit int64 `env:"VERTEXLB_SEED_DAILY_RATE_LIMIT,default=0"`
}

// PromtailConfig holds Promtail logging configuration, unchanged from the
// teacher's shape. BatchWaitSeconds, BatchCapacity and TimeoutSeconds are
// validated but not passed to the Promtail client, which uses a fixed batch
// size of 100 and a 1-second batch timeout.
type PromtailConfig struct {
	// URL is the Promtail push endpoint URL.
	URL string `env:"VERTEXLB_LOKI_URL,default="`

	// Username is the username for basic authentication.
	Username string `env:"VERTEXLB_LOKI_USERNAME,default="`

	// Password is the password for basic authentication.
	Password string `env:"VERTEXLB_LOKI_PASSWORD,default="`

	// BatchWaitSeconds is the time to wait before sending a batch.
	BatchWaitSeconds int `env:"VERTEXLB_LOKI_BATCH_WAIT_SECONDS,default=1"`

	// BatchCapacity is the maximum number of log entries in a batch.
	BatchCapacity int `env:"VERTEXLB_LOKI_BATCH_CAPACITY,default=100"`

	// TimeoutSeconds is the timeout for sending logs.
	TimeoutSeconds int `env:"VERTEXLB_LOKI_TIMEOUT_SECONDS,default=5"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// AppName labels every shipped log line (Promtail "app" label), so logs
	// from this proxy are distinguishable from any other service sharing
	// the same Loki instance.
	AppName string `env:"VERTEXLB_APP_NAME,default=vertex-lb"`

	// Level is the minimum log level (debug, info, warn, error).
	Level string `env:"VERTEXLB_LOG_LEVEL,default=info"`

	// Debug enables debug mode with stdout logging.
	Debug bool `env:"VERTEXLB_LOG_DEBUG,default=false"`

	// Promtail holds Promtail configuration; a nil value disables log shipping.
	Promtail *PromtailConfig
}

// AppConfig is the process's complete configuration.
type AppConfig struct {
	Dispatch   *DispatchConfig
	TargetSeed *TargetSeedConfig
	Logging    *LoggingConfig
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Dispatch: &DispatchConfig{
			ListenAddress: ":8080",
			SQLitePath:    "vertexlb.db",
		},
		TargetSeed: &TargetSeedConfig{
			Location: "us-central1",
		},
		Logging: &LoggingConfig{
			AppName: "vertex-lb",
			Level:   "info",
			Promtail: &PromtailConfig{
				BatchWaitSeconds: 1,
				BatchCapacity:    100,
				TimeoutSeconds:   5,
			},
		},
	}
}

// LoadConfig loads configuration from environment variables and validates it.
func LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables using Netflix/go-env.
func (c *AppConfig) LoadFromEnv() error {
	if c.Dispatch != nil {
		if _, err := env.UnmarshalFromEnviron(c.Dispatch); err != nil {
			return fmt.Errorf("failed to unmarshal dispatch environment variables: %w", err)
		}
	}

	if c.TargetSeed != nil {
		if _, err := env.UnmarshalFromEnviron(c.TargetSeed); err != nil {
			return fmt.Errorf("failed to unmarshal target seed environment variables: %w", err)
		}
		if err := c.decodeSeedServiceAccountKey(); err != nil {
			return err
		}
	}

	if c.Logging != nil {
		if _, err := env.UnmarshalFromEnviron(c.Logging); err != nil {
			return fmt.Errorf("failed to unmarshal logging environment variables: %w", err)
		}
		if c.Logging.Promtail != nil {
			if _, err := env.UnmarshalFromEnviron(c.Logging.Promtail); err != nil {
				return fmt.Errorf("failed to unmarshal promtail environment variables: %w", err)
			}
		}
	}

	return nil
}

// decodeSeedServiceAccountKey base64-decodes VERTEXLB_SEED_SERVICE_ACCOUNT_KEY
// in place, the same way the teacher decodes TOSAGE_VERTEX_AI_SERVICE_ACCOUNT_KEY.
func (c *AppConfig) decodeSeedServiceAccountKey() error {
	if c.TargetSeed.ServiceAccountKey == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(c.TargetSeed.ServiceAccountKey)
	if err != nil {
		return fmt.Errorf("failed to decode base64 service account key: %w", err)
	}
	c.TargetSeed.ServiceAccountKey = string(decoded)
	return nil
}

// Validate validates the configuration.
func (c *AppConfig) Validate() error {
	if c.Dispatch != nil {
		if err := c.validateDispatch(); err != nil {
			return err
		}
	}
	if c.Logging != nil {
		if err := c.validateLogging(); err != nil {
			return err
		}
	}
	return nil
}

func (c *AppConfig) validateDispatch() error {
	if c.Dispatch.ListenAddress == "" {
		return fmt.Errorf("dispatch listen address cannot be empty")
	}
	if c.Dispatch.SQLitePath == "" {
		return fmt.Errorf("dispatch sqlite path cannot be empty")
	}
	return nil
}

func (c *AppConfig) validateLogging() error {
	if c.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[c.Logging.Level] {
			return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
		}
	}

	if c.Logging.Promtail == nil || c.Logging.Promtail.URL == "" {
		return nil
	}

	if c.Logging.Promtail.BatchWaitSeconds < 1 {
		return fmt.Errorf("promtail batch wait must be at least 1 second")
	}
	if c.Logging.Promtail.BatchCapacity < 1 {
		return fmt.Errorf("promtail batch capacity must be at least 1")
	}
	if c.Logging.Promtail.TimeoutSeconds < 1 {
		return fmt.Errorf("promtail timeout must be at least 1 second")
	}
	return nil
}
