package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

type Config struct {
	Port   int    `mapstructure:"port"`
	AppEnv string `mapstructure:"app_env"`

	SpotifyClientID     string `mapstructure:"spotify_client_id"`
	SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
	SpotifyRedirectURI  string `mapstructure:"spotify_redirect_uri"`

	FrontendURL    string `mapstructure:"frontend_url"`
	AllowedOrigins string `mapstructure:"allowed_origins"`

	// DatabaseURL selects the gorm/postgres store; empty keeps everything in memory.
	DatabaseURL string `mapstructure:"database_url"`

	SessionCookie string        `mapstructure:"session_cookie"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`

	PreviewServiceURL     string        `mapstructure:"preview_service_url"`
	PreviewServiceTimeout time.Duration `mapstructure:"preview_service_timeout"`
	PreviewEmbedScrape    bool          `mapstructure:"preview_embed_scrape"`
	PreviewMarkets        string        `mapstructure:"preview_markets"`
	PreviewCacheTTL       time.Duration `mapstructure:"preview_cache_ttl"`
	PreviewRateInterval   time.Duration `mapstructure:"preview_rate_interval"`
	PreviewMaxLookups     int           `mapstructure:"preview_max_lookups"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	GameMaxRounds  int           `mapstructure:"game_max_rounds"`
	GameStaleAfter time.Duration `mapstructure:"game_stale_after"`
}

var defaults = map[string]interface{}{
	"port":                    8000,
	"app_env":                 "development",
	"spotify_client_id":       "",
	"spotify_client_secret":   "",
	"spotify_redirect_uri":    "http://localhost:8000/api/callback/",
	"frontend_url":            "http://localhost:3000/",
	"allowed_origins":         "http://localhost:3000",
	"database_url":            "",
	"session_cookie":          "namethat_session",
	"session_ttl":             14 * 24 * time.Hour,
	"cookie_secure":           false,
	"preview_service_url":     "http://localhost:3001",
	"preview_service_timeout": 5 * time.Second,
	"preview_embed_scrape":    true,
	"preview_markets":         "US,GB,CA,AU,DE,FR,JP",
	"preview_cache_ttl":       24 * time.Hour,
	"preview_rate_interval":   400 * time.Millisecond,
	"preview_max_lookups":     0,
	"rate_limit_rps":          10.0,
	"rate_limit_burst":        20,
	"game_max_rounds":         10,
	"game_stale_after":        6 * time.Hour,
}

// Load reads config.yaml from path (optional) and lets environment variables
// override every key. A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.GameMaxRounds <= 0 {
		return errors.New("GAME_MAX_ROUNDS must be positive")
	}
	if c.PreviewMaxLookups < 0 {
		return errors.New("PREVIEW_MAX_LOOKUPS must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development"
}

// SpotifyConfigured reports whether OAuth credentials are present.
func (c *Config) SpotifyConfigured() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func (c *Config) Markets() []string {
	markets := splitList(c.PreviewMarkets)
	for i, m := range markets {
		markets[i] = strings.ToUpper(m)
	}
	return markets
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
