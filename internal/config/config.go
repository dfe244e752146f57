// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AccountLinkPolicy は外部プロバイダーのサインインが同一メールのローカルアカウントと
// 重なった場合の挙動を表す。
type AccountLinkPolicy string

const (
	// LinkPolicyLink は既存アカウントにGoogle IDを紐付けてログインさせる。
	LinkPolicyLink AccountLinkPolicy = "link"
	// LinkPolicyConflict はエラーとして拒否する。
	LinkPolicyConflict AccountLinkPolicy = "conflict"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleIOSClientID  string // モバイルIDトークン検証用。未設定時はWebのクライアントIDを使用

	// Token
	JWTSecret     string
	TokenLifetime time.Duration

	// Provider
	ProviderTimeout time.Duration // Google API呼び出しのタイムアウト

	// Account policy
	AccountLinkPolicy AccountLinkPolicy

	// Alpha whitelist
	WhitelistEnabled bool
	WhitelistEmails  []string

	// Rate Limit
	RateLimitGeneral int // 認証済みAPI全般 req/min/user
	RateLimitLogin   int // ログイン系エンドポイント req/min/IP

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GoogleIOSClientID = getEnvString("GOOGLE_IOS_CLIENT_ID", "")
	cfg.TokenLifetime = getEnvDuration("TOKEN_LIFETIME", 720*time.Hour) // 30日
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.WhitelistEnabled = getEnvBool("WHITELIST_ENABLED", false)
	cfg.WhitelistEmails = parseEmailList(os.Getenv("WHITELIST_EMAILS"))
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	policy := AccountLinkPolicy(getEnvString("ACCOUNT_LINK_POLICY", string(LinkPolicyLink)))
	if policy != LinkPolicyLink && policy != LinkPolicyConflict {
		return nil, fmt.Errorf("invalid ACCOUNT_LINK_POLICY: %q (must be link or conflict)", policy)
	}
	cfg.AccountLinkPolicy = policy

	return cfg, nil
}

// parseEmailList はカンマ区切りのメールアドレスリストをパースする。
// 各要素は前後の空白を除去し小文字に正規化する。空要素は無視する。
func parseEmailList(raw string) []string {
	if raw == "" {
		return nil
	}
	var emails []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails = append(emails, e)
		}
	}
	return emails
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
