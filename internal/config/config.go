package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the process configuration loaded from files and environment variables.
// The watch profile (sources, targets, tolerances) lives in its own file and is
// loaded separately by pkg/wallconfig.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ProfileFile    string `mapstructure:"profile_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	LedgerType string `mapstructure:"ledger_type"`
	LedgerPath string `mapstructure:"ledger_path"`

	RedditClientID     string `mapstructure:"reddit_client_id"`
	RedditClientSecret string `mapstructure:"reddit_client_secret"`
	RedditUserAgent    string `mapstructure:"reddit_user_agent"`

	FetchTimeoutSeconds    int64 `mapstructure:"fetch_timeout_seconds"`
	DownloadTimeoutSeconds int64 `mapstructure:"download_timeout_seconds"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "wallwatch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("profile_file", "./configs/wallwatch.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("ledger_type", "bbolt")
	v.SetDefault("ledger_path", "./data/ledger.db")
	v.SetDefault("reddit_client_id", "")
	v.SetDefault("reddit_client_secret", "")
	v.SetDefault("reddit_user_agent", "wallwatch:v1 (wallpaper collector)")
	v.SetDefault("fetch_timeout_seconds", 15)
	v.SetDefault("download_timeout_seconds", 60)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.RedditClientID) == "" {
		return nil, fmt.Errorf("reddit_client_id is required (set REDDIT_CLIENT_ID)")
	}
	if strings.TrimSpace(cfg.RedditClientSecret) == "" {
		return nil, fmt.Errorf("reddit_client_secret is required (set REDDIT_CLIENT_SECRET)")
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid fetch_timeout_seconds (must be positive)")
	}
	if cfg.DownloadTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid download_timeout_seconds (must be positive)")
	}

	return &cfg, nil
}
