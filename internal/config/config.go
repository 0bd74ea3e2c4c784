package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"patchvault/internal/blobstore"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7433"
	DefaultDBFileName = "patchvault.db"
	DefaultLogLevel   = "info"

	DefaultIngestWorkers = 8
	DefaultBuildWorkers  = 8

	configDirEnvKey = "PATCHVAULT_CONFIG_DIR"
	dbEnvKey        = "PATCHVAULT_DB"
	apiURLEnvKey    = "PATCHVAULT_API_URL"
	blobRootEnvKey  = "PATCHVAULT_BLOB_ROOT"

	s3EndpointEnvKey  = "PATCHVAULT_S3_ENDPOINT"
	s3BucketEnvKey    = "PATCHVAULT_S3_BUCKET"
	s3AccessKeyEnvKey = "PATCHVAULT_S3_ACCESS_KEY"
	s3SecretKeyEnvKey = "PATCHVAULT_S3_SECRET_KEY"
	s3UseSSLEnvKey    = "PATCHVAULT_S3_USE_SSL"

	configFileName = "patchvault.toml"
)

// Config defines runtime configuration for patchvault.
type Config struct {
	DBPath string `toml:"db_path"`
	APIURL string `toml:"api_url"`

	// BlobRoot selects the local object backend. Leave empty and fill S3
	// to use an S3-compatible backend instead.
	BlobRoot string             `toml:"blob_root"`
	S3       blobstore.S3Config `toml:"s3"`

	IngestWorkers int    `toml:"ingest_workers"`
	BuildWorkers  int    `toml:"build_workers"`
	LogLevel      string `toml:"log_level"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:        DefaultAPIURL,
		IngestWorkers: DefaultIngestWorkers,
		BuildWorkers:  DefaultBuildWorkers,
		LogLevel:      DefaultLogLevel,
	}
}

// UseS3 reports whether the S3 backend is configured.
func (c *Config) UseS3() bool {
	return c != nil && strings.TrimSpace(c.S3.Endpoint) != ""
}

// Path returns the config file path, honoring the config dir override.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "patchvault", configFileName), nil
}

// Load reads the config file and applies env overrides on top of defaults.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if statErr != nil && !os.IsNotExist(statErr) {
		return nil, statErr
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.BlobRoot == "" && !cfg.UseS3() {
		cfg.BlobRoot = filepath.Join(filepath.Dir(cfg.DBPath), "blobs")
	}

	applyEnvOverrides(&cfg)

	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = DefaultIngestWorkers
	}
	if cfg.BuildWorkers <= 0 {
		cfg.BuildWorkers = DefaultBuildWorkers
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if dbPath := os.Getenv(dbEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if blobRoot := os.Getenv(blobRootEnvKey); blobRoot != "" {
		cfg.BlobRoot = blobRoot
	}
	if endpoint := os.Getenv(s3EndpointEnvKey); endpoint != "" {
		cfg.S3.Endpoint = endpoint
	}
	if bucket := os.Getenv(s3BucketEnvKey); bucket != "" {
		cfg.S3.Bucket = bucket
	}
	if accessKey := os.Getenv(s3AccessKeyEnvKey); accessKey != "" {
		cfg.S3.AccessKeyID = accessKey
	}
	if secretKey := os.Getenv(s3SecretKeyEnvKey); secretKey != "" {
		cfg.S3.SecretAccessKey = secretKey
	}
	if raw := strings.TrimSpace(os.Getenv(s3UseSSLEnvKey)); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.S3.UseSSL = parsed
		}
	}
}
