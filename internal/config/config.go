package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Live change feed backends.
const (
	FeedMemory   = "memory"
	FeedPostgres = "postgres"
	FeedRedis    = "redis"
)

type Config struct {
	ListenAddr string
	BaseURL    string
	Store      string

	DB struct {
		DSN string
	}

	OAuth struct {
		ClientID     string
		ClientSecret string
		IssuerURL    string
		DiscoveryURL string
		RedirectPath string
		Scopes       []string
	}

	Session struct {
		Secret string
	}

	Live struct {
		Feed    string
		Channel string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	AdminEmails       []string
	ChatMaxLength     int
	PrometheusEnabled bool
	TrustedProxies    []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = strings.TrimRight(getenvDefault("APP_BASE_URL", "http://localhost:8080"), "/")
	cfg.Store = strings.ToLower(getenvDefault("APP_STORE", StorePostgres))
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.OAuth.ClientID = os.Getenv("APP_OAUTH_CLIENT_ID")
	cfg.OAuth.ClientSecret = os.Getenv("APP_OAUTH_CLIENT_SECRET")
	cfg.OAuth.IssuerURL = os.Getenv("APP_OAUTH_ISSUER_URL")
	cfg.OAuth.DiscoveryURL = os.Getenv("APP_OAUTH_DISCOVERY_URL")
	cfg.OAuth.RedirectPath = getenvDefault("APP_OAUTH_REDIRECT_PATH", "/auth/callback")
	cfg.OAuth.Scopes = getenvList("APP_OAUTH_SCOPES")
	if len(cfg.OAuth.Scopes) == 0 {
		cfg.OAuth.Scopes = []string{"openid", "email", "profile"}
	}
	cfg.Session.Secret = os.Getenv("APP_SESSION_SECRET")

	cfg.Live.Feed = strings.ToLower(getenvDefault("APP_LIVE_FEED", FeedMemory))
	cfg.Live.Channel = getenvDefault("APP_LIVE_CHANNEL", "tuition_chat")
	cfg.Redis.Addr = os.Getenv("APP_REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("APP_REDIS_PASSWORD")
	cfg.Redis.DB = getenvInt("APP_REDIS_DB", 0)

	cfg.AdminEmails = getenvList("APP_ADMIN_EMAILS")
	cfg.ChatMaxLength = getenvInt("APP_CHAT_MAX_LENGTH", 2000)
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if len(cfg.TrustedProxies) == 0 {
		log.Println("[WARN] no APP_TRUSTED_PROXIES configured; forwarded client addresses are trusted from any peer")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DB.DSN == "" {
			return errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("APP_STORE must be %q or %q (got %q)", StorePostgres, StoreMemory, c.Store)
	}

	switch c.Live.Feed {
	case FeedMemory:
	case FeedPostgres:
		if c.Store != StorePostgres {
			return errors.New("APP_LIVE_FEED=postgres requires APP_STORE=postgres")
		}
	case FeedRedis:
		if c.Redis.Addr == "" {
			return errors.New("APP_REDIS_ADDR is required when APP_LIVE_FEED=redis")
		}
	default:
		return fmt.Errorf("APP_LIVE_FEED must be one of memory, postgres, redis (got %q)", c.Live.Feed)
	}

	if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
		return fmt.Errorf("oauth configuration is required: client id and secret")
	}
	if c.OAuth.DiscoveryURL == "" && c.OAuth.IssuerURL == "" {
		return errors.New("APP_OAUTH_DISCOVERY_URL or APP_OAUTH_ISSUER_URL is required")
	}
	if c.Session.Secret == "" {
		return errors.New("APP_SESSION_SECRET is required")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("APP_SESSION_SECRET must be at least 32 characters long (got %d)", len(c.Session.Secret))
	}
	if c.ChatMaxLength <= 0 {
		return fmt.Errorf("APP_CHAT_MAX_LENGTH must be positive (got %d)", c.ChatMaxLength)
	}
	return nil
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
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

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
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
