package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ca-srg/syncvec/internal/types"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Parse IncludeExtensions from pipe-separated string
	if config.IncludeExtensionsStr != "" {
		exts := strings.Split(config.IncludeExtensionsStr, "|")
		config.IncludeExtensions = make([]string, 0, len(exts))
		for _, ext := range exts {
			trimmed := strings.ToLower(strings.TrimSpace(ext))
			if trimmed == "" {
				continue
			}
			if !strings.HasPrefix(trimmed, ".") {
				trimmed = "." + trimmed
			}
			config.IncludeExtensions = append(config.IncludeExtensions, trimmed)
		}
	}

	if config.DatabasePath == "" {
		dbPath, err := defaultDatabasePath()
		if err != nil {
			return nil, err
		}
		config.DatabasePath = dbPath
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// defaultDatabasePath returns ~/.syncvec/state.db, creating the directory
// if it doesn't exist.
func defaultDatabasePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	syncvecDir := filepath.Join(homeDir, ".syncvec")
	if err := os.MkdirAll(syncvecDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create .syncvec directory: %w", err)
	}

	return filepath.Join(syncvecDir, "state.db"), nil
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	if config.WatchRoot == "" {
		return fmt.Errorf("SYNCVEC_WATCH_ROOT is required")
	}

	// Validate worker pool size
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Workers > 32 {
		config.Workers = 32
	}

	// Validate per-stage concurrency limits
	if config.ParseConcurrency < 1 {
		config.ParseConcurrency = 1
	}
	if config.ParseConcurrency > 64 {
		config.ParseConcurrency = 64
	}
	if config.EmbedConcurrency < 1 {
		config.EmbedConcurrency = 1
	}
	if config.EmbedConcurrency > 64 {
		config.EmbedConcurrency = 64
	}

	// Validate embed rate limiting
	if config.EmbedRateLimit <= 0 {
		config.EmbedRateLimit = 10.0
	}
	if config.EmbedRateBurst < 1 {
		config.EmbedRateBurst = 1
	}

	// Validate intervals
	if config.PollInterval < 100*time.Millisecond {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.ScanInterval < 10*time.Second {
		config.ScanInterval = 10 * time.Second
	}

	// Validate chunking parameters
	if config.ChunkMaxTokens < 100 {
		config.ChunkMaxTokens = 100
	}
	if config.ChunkOverlapTokens < 0 {
		config.ChunkOverlapTokens = 0
	}
	if config.ChunkOverlapTokens >= config.ChunkMaxTokens {
		config.ChunkOverlapTokens = config.ChunkMaxTokens / 10
	}

	if config.MaxFileSize < 1 {
		return fmt.Errorf("SYNCVEC_MAX_FILE_SIZE must be positive")
	}

	if len(config.IncludeExtensions) == 0 {
		return fmt.Errorf("SYNCVEC_EXTENSIONS must list at least one extension")
	}

	return nil
}
