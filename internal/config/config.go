package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	ListenAddr string
	SiteURL    string

	Remote struct {
		URL       string
		AnonKey   string
		JWTSecret string
	}

	OIDC struct {
		IssuerURL string
		ClientID  string
	}

	DB struct {
		DSN string
	}

	Storage struct {
		Dir        string
		Bucket     string
		SignSecret string
	}

	SMTP struct {
		Host     string
		Port     string
		User     string
		Password string
		From     string
	}

	ProfileCachePath  string
	NotifierURL       string
	CORSAllowedOrigin string
	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("SYNK_LISTEN_ADDR", ":8080")
	cfg.SiteURL = getenvDefault("SYNK_SITE_URL", "http://localhost:3000")

	cfg.Remote.URL = os.Getenv("SYNK_REMOTE_URL")
	cfg.Remote.AnonKey = os.Getenv("SYNK_REMOTE_ANON_KEY")
	cfg.Remote.JWTSecret = os.Getenv("SYNK_REMOTE_JWT_SECRET")

	cfg.OIDC.IssuerURL = os.Getenv("SYNK_OIDC_ISSUER_URL")
	cfg.OIDC.ClientID = os.Getenv("SYNK_OIDC_CLIENT_ID")

	cfg.DB.DSN = os.Getenv("SYNK_DB_DSN")

	cfg.Storage.Dir = getenvDefault("SYNK_STORAGE_DIR", "")
	cfg.Storage.Bucket = getenvDefault("SYNK_STORAGE_BUCKET", "user-files")
	cfg.Storage.SignSecret = os.Getenv("SYNK_STORAGE_SIGN_SECRET")

	cfg.SMTP.Host = getenvDefault("SYNK_SMTP_HOST", "smtp.gmail.com")
	cfg.SMTP.Port = getenvDefault("SYNK_SMTP_PORT", "587")
	cfg.SMTP.User = os.Getenv("SYNK_SMTP_USER")
	cfg.SMTP.Password = os.Getenv("SYNK_SMTP_PASSWORD")
	cfg.SMTP.From = getenvDefault("SYNK_SMTP_FROM", cfg.SMTP.User)

	cfg.ProfileCachePath = getenvDefault("SYNK_PROFILE_CACHE_PATH", defaultProfileCachePath())
	cfg.NotifierURL = getenvDefault("SYNK_NOTIFIER_URL", "http://localhost:8080")
	cfg.CORSAllowedOrigin = getenvDefault("SYNK_CORS_ALLOWED_ORIGIN", cfg.SiteURL)
	cfg.PrometheusEnabled = getenvBool("SYNK_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("SYNK_TRUSTED_PROXIES")

	if cfg.Remote.URL != "" && cfg.Remote.AnonKey == "" {
		return nil, errors.New("SYNK_REMOTE_ANON_KEY is required when SYNK_REMOTE_URL is set")
	}
	if cfg.DB.DSN != "" && cfg.Storage.Dir == "" {
		return nil, errors.New("SYNK_STORAGE_DIR is required when SYNK_DB_DSN is set")
	}
	if cfg.Storage.Dir != "" && cfg.Storage.SignSecret == "" {
		return nil, errors.New("SYNK_STORAGE_SIGN_SECRET is required when SYNK_STORAGE_DIR is set")
	}
	if cfg.Storage.Dir != "" && len(cfg.Storage.SignSecret) < 32 {
		return nil, fmt.Errorf("SYNK_STORAGE_SIGN_SECRET must be at least 32 characters long (got %d)", len(cfg.Storage.SignSecret))
	}
	if cfg.SMTP.User == "" || cfg.SMTP.Password == "" {
		return nil, errors.New("SYNK_SMTP_USER and SYNK_SMTP_PASSWORD are required")
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No SYNK_TRUSTED_PROXIES configured. The notifier will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

func defaultProfileCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "synk_profile.json"
	}
	return dir + "/synk/user_profile.json"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
