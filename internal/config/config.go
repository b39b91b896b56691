package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // コンテナイメージにタイムゾーンDBが無くてもREPORT_TIMEZONEを解決する
)

// ストアドライバー
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string
	DatabaseURL string

	// Preferences
	PreferencesFile string

	// Report
	ReportTimezone *time.Location

	// Focus
	MaxBreakMinutes int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral   int
	RateLimitExtension int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin      string
	ExtensionAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはREPORT_TIMEZONEが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.PreferencesFile = os.Getenv("PREFERENCES_FILE")
	if cfg.PreferencesFile == "" {
		missing = append(missing, "PREFERENCES_FILE")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	loc, err := loadLocation(os.Getenv("REPORT_TIMEZONE"))
	if err != nil {
		return nil, err
	}
	cfg.ReportTimezone = loc

	// Optional fields with defaults
	cfg.StoreDriver = getEnvChoice("STORE_DRIVER", StoreDriverPostgres, StoreDriverPostgres, StoreDriverSQLite)
	cfg.MaxBreakMinutes = getEnvPositiveInt("MAX_BREAK_MINUTES", 240)
	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitExtension = getEnvPositiveInt("RATE_LIMIT_EXTENSION", 60)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvChoice("LOG_LEVEL", "info", "debug", "info", "warn", "error")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.ExtensionAllowedOrigin = getEnvString("EXTENSION_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// AllowedOrigins はCORSで許可するオリジンの一覧を返す。
// ダッシュボードのオリジンを先頭とし、拡張機能のオリジンが設定されていれば追加する。
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.CORSAllowedOrigin}
	if c.ExtensionAllowedOrigin != "" && c.ExtensionAllowedOrigin != c.CORSAllowedOrigin {
		origins = append(origins, c.ExtensionAllowedOrigin)
	}
	return origins
}

// loadLocation は集計タイムゾーンを読み込む。空の場合はtime.Local。
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvChoice は値がallowedに含まれる場合のみ採用する。大文字小文字は区別しない。
func getEnvChoice(key, defaultVal string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return defaultVal
}

func getEnvPositiveInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
