// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// OAuth
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID,notEmpty"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET,notEmpty"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL,notEmpty"`
	OAuthStateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// Session
	SessionSecret string `env:"SESSION_SECRET,notEmpty"`
	SessionMaxAge int    `env:"SESSION_MAX_AGE" envDefault:"86400"` // 秒。0は有効期限なし
	TokenIssuer   string `env:"TOKEN_ISSUER" envDefault:"booklib"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Rate Limit（ユーザーごとのreq/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitWrite   int `env:"RATE_LIMIT_WRITE" envDefault:"30"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Cookie
	// COOKIE_SECUREが未設定の場合はGOOGLE_REDIRECT_URLのスキームから決定する。
	CookieSecure bool   `env:"COOKIE_SECURE"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数をまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if _, ok := os.LookupEnv("COOKIE_SECURE"); !ok {
		cfg.CookieSecure = strings.HasPrefix(cfg.GoogleRedirectURL, "https://")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は値の範囲を検証する。
func (c *Config) validate() error {
	var errs []error
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_GENERAL must be positive: %d", c.RateLimitGeneral))
	}
	if c.RateLimitWrite <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WRITE must be positive: %d", c.RateLimitWrite))
	}
	if c.SessionMaxAge < 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE must not be negative: %d", c.SessionMaxAge))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, fmt.Errorf("OAUTH_STATE_TTL must be positive: %s", c.OAuthStateTTL))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive: %s", c.ProviderTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// SessionTTL はトークンの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// LoadDotEnv は.envファイルの内容を環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
