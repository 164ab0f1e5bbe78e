package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from every variable this service reads, except the
// POSTGRES_* set shared with the database container.
const EnvPrefix = "RPI_"

type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Graph    GraphConfig    `koanf:"graph"`
	Sync     SyncConfig     `koanf:"sync"`
	Cache    CacheConfig    `koanf:"cache"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// URL wins over the individual fields when set.
	URL          string `koanf:"url"`
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	Name         string `koanf:"name"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	SSLMode      string `koanf:"ssl_mode"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type GraphConfig struct {
	BaseURL          string        `koanf:"base_url"`
	APIVersion       string        `koanf:"api_version"`
	Timeout          time.Duration `koanf:"timeout"`
	BreakerThreshold int           `koanf:"breaker_threshold"`

	// App credentials, only needed to trade short-lived login tokens.
	AppID       string `koanf:"app_id"`
	AppSecret   string `koanf:"app_secret"`
	RedirectURL string `koanf:"redirect_url"`
}

type SyncConfig struct {
	// Secret is compared against X-Sync-Secret or a bearer token.
	Secret string `koanf:"secret"`
	// TrustedHeader names a header set only by the scheduler's ingress. Empty disables it.
	TrustedHeader string `koanf:"trusted_header"`
	TrustedValue  string `koanf:"trusted_value"`

	DefaultLookbackDays int           `koanf:"default_lookback_days"`
	ItemDelay           time.Duration `koanf:"item_delay"`
	ItemTimeout         time.Duration `koanf:"item_timeout"`
	Concurrency         int           `koanf:"concurrency"`
}

type CacheConfig struct {
	TTL      time.Duration `koanf:"ttl"`
	MaxBytes int64         `koanf:"max_bytes"`
}

type SecurityConfig struct {
	// TokenKey is the AES-256 key for stored access tokens, hex or base64 encoded.
	TokenKey      string `koanf:"token_key"`
	SessionSecret string `koanf:"session_secret"`
	SecureCookies bool   `koanf:"secure_cookies"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         "db",
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Graph: GraphConfig{
			BaseURL:          "https://graph.facebook.com",
			APIVersion:       "21.0",
			Timeout:          60 * time.Second,
			BreakerThreshold: 5,
		},
		Sync: SyncConfig{
			DefaultLookbackDays: 30,
			ItemDelay:           250 * time.Millisecond,
			ItemTimeout:         30 * time.Second,
			Concurrency:         1,
		},
		Cache: CacheConfig{
			TTL:      30 * time.Second,
			MaxBytes: 64 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads defaults, then the environment, and validates the result.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var envMappings = map[string]string{
	"postgres_db":       "database.name",
	"postgres_user":     "database.user",
	"postgres_password": "database.password",
	"postgres_host":     "database.host",
	"postgres_port":     "database.port",

	"rpi_database_url":      "database.url",
	"rpi_db_ssl_mode":       "database.ssl_mode",
	"rpi_db_max_open_conns": "database.max_open_conns",
	"rpi_db_max_idle_conns": "database.max_idle_conns",

	"rpi_host":             "server.host",
	"rpi_port":             "server.port",
	"rpi_read_timeout":     "server.read_timeout",
	"rpi_write_timeout":    "server.write_timeout",
	"rpi_shutdown_timeout": "server.shutdown_timeout",

	"rpi_graph_base_url":          "graph.base_url",
	"rpi_graph_api_version":       "graph.api_version",
	"rpi_graph_timeout":           "graph.timeout",
	"rpi_graph_breaker_threshold": "graph.breaker_threshold",
	"rpi_graph_app_id":            "graph.app_id",
	"rpi_graph_app_secret":        "graph.app_secret",
	"rpi_graph_redirect_url":      "graph.redirect_url",

	"rpi_sync_secret":           "sync.secret",
	"rpi_sync_trusted_header":   "sync.trusted_header",
	"rpi_sync_trusted_value":    "sync.trusted_value",
	"rpi_sync_default_lookback": "sync.default_lookback_days",
	"rpi_sync_item_delay":       "sync.item_delay",
	"rpi_sync_item_timeout":     "sync.item_timeout",
	"rpi_sync_concurrency":      "sync.concurrency",

	"rpi_cache_ttl":       "cache.ttl",
	"rpi_cache_max_bytes": "cache.max_bytes",

	"rpi_token_key":      "security.token_key",
	"rpi_session_secret": "security.session_secret",
	"rpi_secure_cookies": "security.secure_cookies",

	"rpi_log_level":  "logging.level",
	"rpi_log_format": "logging.format",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// TokenKeyBytes decodes the configured token key.
func (c *AppConfig) TokenKeyBytes() ([]byte, error) {
	return decodeKey(c.Security.TokenKey)
}

func decodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%sTOKEN_KEY is required", EnvPrefix)
	}
	if b, err := hex.DecodeString(raw); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == 32 {
		return b, nil
	}
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("%sTOKEN_KEY must decode to 32 bytes", EnvPrefix)
}
