// Package config loads service configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Lambda  LambdaConfig  `mapstructure:"lambda" yaml:"lambda"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ServerConfig contains local HTTP server settings
type ServerConfig struct {
	Port                int    `mapstructure:"port" yaml:"port"`
	BindAddress         string `mapstructure:"bind_address" yaml:"bind_address"`
	BodyLimit           string `mapstructure:"body_limit" yaml:"body_limit"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
}

// StorageConfig selects and configures the object store
type StorageConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	LocalDir string `mapstructure:"local_dir" yaml:"local_dir"`
	Region   string `mapstructure:"region" yaml:"region"`
}

// LambdaConfig contains function settings
type LambdaConfig struct {
	// Operation pins the function to one operation; empty routes by
	// method and path.
	Operation string `mapstructure:"operation" yaml:"operation"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"server.port":         "PORT",
	"server.bind_address": "BIND_ADDRESS",
	"server.body_limit":   "SURVEY_BODY_LIMIT",
	"storage.backend":     "SURVEY_STORAGE_BACKEND",
	"storage.bucket":      "SURVEY_BUCKET",
	"storage.local_dir":   "SURVEY_LOCAL_DIR",
	"storage.region":      "AWS_REGION",
	"lambda.operation":    "SURVEY_OPERATION",
	"log.level":           "LOG_LEVEL",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                8089,
			BindAddress:         "0.0.0.0",
			BodyLimit:           "10M",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Backend:  BackendS3,
			LocalDir: "./data/store",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, if given and present, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("survey")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.read_timeout_seconds", d.Server.ReadTimeoutSeconds)
	v.SetDefault("server.write_timeout_seconds", d.Server.WriteTimeoutSeconds)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.local_dir", d.Storage.LocalDir)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("lambda.operation", d.Lambda.Operation)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate reports every invalid setting.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket (SURVEY_BUCKET) is required for the s3 backend"))
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir (SURVEY_LOCAL_DIR) is required for the local backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", BackendS3, BackendLocal, c.Storage.Backend))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// VerboseErrors reports whether error causes should be returned to callers.
func (c *AppConfig) VerboseErrors() bool {
	return c.Log.Level == "debug"
}

// ListenAddress returns the local server's bind address and port.
func (c *AppConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
