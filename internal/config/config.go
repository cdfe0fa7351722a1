// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 既定値
const (
	DefaultStorePath         = "data/recipes.json"
	DefaultServerPort        = "8080"
	DefaultCORSAllowedOrigin = "*"
	DefaultRateLimitGeneral  = 120
	DefaultRateLimitWrite    = 30
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxBodyBytes      = 1 << 20
	DefaultSessionSweep      = 10 * time.Minute
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorePath string

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel slog.Level

	// Rate Limit（req/min/client）
	RateLimitGeneral int
	RateLimitWrite   int

	// Auth
	RequireAuthForWrites bool
	SessionMaxAge        time.Duration // 0以下の場合はセッションを失効させない
	SessionSweepInterval time.Duration // 失効済みセッションの削除間隔

	// Metrics
	MetricsEnabled bool
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 既に設定されている環境変数は.envファイルの値で上書きされない。
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles は指定された.envファイルを読み込んでからConfigを生成する。
// 存在しないファイルは無視する。
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.StorePath = strings.TrimSpace(getEnvString("RECIPES_STORE_PATH", DefaultStorePath))
	if cfg.StorePath == "" {
		return nil, errors.New("RECIPES_STORE_PATH must not be empty")
	}

	level, err := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.ServerPort = getEnvString("SERVER_PORT", DefaultServerPort)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
	cfg.MaxBodyBytes = getEnvInt64("MAX_BODY_BYTES", DefaultMaxBodyBytes)
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", DefaultCORSAllowedOrigin)
	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", DefaultRateLimitGeneral)
	cfg.RateLimitWrite = getEnvPositiveInt("RATE_LIMIT_WRITE", DefaultRateLimitWrite)
	cfg.RequireAuthForWrites = getEnvBool("REQUIRE_AUTH_FOR_WRITES", false)
	cfg.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", 0)
	cfg.SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", DefaultSessionSweep)
	if cfg.SessionSweepInterval <= 0 {
		cfg.SessionSweepInterval = DefaultSessionSweep
	}
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	return cfg, nil
}

// parseLogLevel はLOG_LEVELを解析する。未設定の場合はinfo。
func parseLogLevel(v string) (slog.Level, error) {
	if strings.TrimSpace(v) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt はgetEnvIntと同じだが、0以下の値も既定値に置き換える。
func getEnvPositiveInt(key string, defaultVal int) int {
	if i := getEnvInt(key, defaultVal); i > 0 {
		return i
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
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
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
