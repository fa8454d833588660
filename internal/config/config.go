package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Media
	MediaKinds   []string // "audio", "image"
	ArtViewName  string   // Name of the view the downloaders scan
	DocumentsDir string   // Root for the MediaFiles cache directory

	// Transfers
	MaxConcurrentTransfers int
	TransferTimeoutSeconds int
	TransferMaxRetries     int
	GrantBudgetSeconds     int // Execution extension budget per downloader

	// Scheduling
	RescanSchedule string // Cron expression, empty disables periodic rescans

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/mediacache.db
	TransferDir  string // $CONFIG_DIR/transfers

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("MEDIA_KINDS", "audio,image")
	viper.SetDefault("ART_VIEW_NAME", "artByName")
	viper.SetDefault("MAX_CONCURRENT_TRANSFERS", 4)
	viper.SetDefault("TRANSFER_TIMEOUT_SECONDS", 120)
	viper.SetDefault("TRANSFER_MAX_RETRIES", 3)
	viper.SetDefault("GRANT_BUDGET_SECONDS", 180)
	viper.SetDefault("RESCAN_SCHEDULE", "0 */6 * * *")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir, err := resolveDir(viper.GetString("CONFIG_DIR"), func() (string, error) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "mediacache"), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve CONFIG_DIR: %w", err)
	}

	documentsDir, err := resolveDir(viper.GetString("DOCUMENTS_DIR"), func() (string, error) {
		return filepath.Join(configDir, "Documents"), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DOCUMENTS_DIR: %w", err)
	}

	for _, dir := range []string{configDir, documentsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	config := &Config{
		MediaKinds:   splitList(viper.GetString("MEDIA_KINDS")),
		ArtViewName:  viper.GetString("ART_VIEW_NAME"),
		DocumentsDir: documentsDir,

		MaxConcurrentTransfers: viper.GetInt("MAX_CONCURRENT_TRANSFERS"),
		TransferTimeoutSeconds: viper.GetInt("TRANSFER_TIMEOUT_SECONDS"),
		TransferMaxRetries:     viper.GetInt("TRANSFER_MAX_RETRIES"),
		GrantBudgetSeconds:     viper.GetInt("GRANT_BUDGET_SECONDS"),

		RescanSchedule: viper.GetString("RESCAN_SCHEDULE"),

		ServerPort: viper.GetString("SERVER_PORT"),

		DatabaseFile: filepath.Join(configDir, "mediacache.db"),
		TransferDir:  filepath.Join(configDir, "transfers"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if len(c.MediaKinds) == 0 {
		return fmt.Errorf("MEDIA_KINDS is required")
	}
	for _, kind := range c.MediaKinds {
		if kind != "audio" && kind != "image" {
			return fmt.Errorf("MEDIA_KINDS contains unknown kind %q", kind)
		}
	}
	if c.ArtViewName == "" {
		return fmt.Errorf("ART_VIEW_NAME is required")
	}
	if c.MaxConcurrentTransfers <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_TRANSFERS must be positive")
	}
	if c.GrantBudgetSeconds <= 0 {
		return fmt.Errorf("GRANT_BUDGET_SECONDS must be positive")
	}
	return nil
}

// resolveDir makes a configured directory absolute, or falls back to def
func resolveDir(configured string, def func() (string, error)) (string, error) {
	if configured == "" {
		return def()
	}
	absPath, err := filepath.Abs(configured)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", configured, err)
	}
	return absPath, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
