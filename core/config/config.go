package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App          AppConfig
	MCP          MCPConfig
	Paths        PathsConfig
	Database     DatabaseConfig
	Engine       EngineConfig
	OrderService OrderServiceConfig
	Feeds        FeedProviderConfig
	AI           AIConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	ServerID           string
}

type MCPConfig struct {
	Port string
	Host string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// EngineConfig drives the poll cycle orchestrator and the dispatcher.
type EngineConfig struct {
	Enabled       bool
	PollInterval  time.Duration
	Workers       int
	QueueSize     int
	FetchTimeout  time.Duration
	FetchAttempts int
	FeedDeadline  time.Duration
	LeaseTTL      time.Duration

	OrderTimeout   time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	CommentTimeout time.Duration
	RefreshEvery   time.Duration
}

// MinLeaseTTL is the longest a single poll cycle can hold a feed: the cycle
// deadline plus one dispatch that exhausts its retries and then waits the
// full comment timeout.
func (c EngineConfig) MinLeaseTTL() time.Duration {
	attempts := c.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	dispatch := time.Duration(attempts)*c.OrderTimeout + time.Duration(attempts-1)*c.RetryMaxDelay
	return c.FeedDeadline + dispatch + c.CommentTimeout
}

// OrderServiceConfig points to the growth-service provider API.
type OrderServiceConfig struct {
	URL           string
	APIKey        string
	ServicesCache time.Duration
}

// FeedProviderConfig holds the RSS.app API credentials used to create hosted
// feeds for accounts registered without a feed URL.
type FeedProviderConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

func (c FeedProviderConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type AIConfig struct {
	Provider string // "openai", "gemini" or empty to disable AI comments
	OpenAI   string
	Gemini   string
	Model    string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false) || getEnvBool("DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "engage.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azengage:"),
	}

	engineCfg := EngineConfig{
		Enabled:       getEnvBool("ENGINE_ENABLED", true),
		PollInterval:  getEnvDuration("ENGINE_POLL_INTERVAL", 5*time.Minute),
		Workers:       getEnvInt("ENGINE_WORKERS", 4),
		QueueSize:     getEnvInt("ENGINE_QUEUE_SIZE", 64),
		FetchTimeout:  getEnvDuration("ENGINE_FETCH_TIMEOUT", 30*time.Second),
		FetchAttempts: getEnvInt("ENGINE_FETCH_ATTEMPTS", 2),
		FeedDeadline:  getEnvDuration("ENGINE_FEED_DEADLINE", 3*time.Minute),
		LeaseTTL:      getEnvDuration("ENGINE_LEASE_TTL", 10*time.Minute),

		OrderTimeout:   getEnvDuration("ENGINE_ORDER_TIMEOUT", 30*time.Second),
		RetryAttempts:  getEnvInt("ENGINE_RETRY_ATTEMPTS", 3),
		RetryBaseDelay: getEnvDuration("ENGINE_RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:  getEnvDuration("ENGINE_RETRY_MAX_DELAY", 15*time.Second),

		CommentTimeout: getEnvDuration("ENGINE_COMMENT_TIMEOUT", 60*time.Second),
		RefreshEvery:   getEnvDuration("ENGINE_REFRESH_INTERVAL", 0),
	}
	if minTTL := engineCfg.MinLeaseTTL(); engineCfg.LeaseTTL < minTTL {
		logrus.WithFields(logrus.Fields{
			"lease_ttl": engineCfg.LeaseTTL,
			"raised_to": minTTL,
		}).Warn("[CONFIG] ENGINE_LEASE_TTL is shorter than a worst-case poll cycle")
		engineCfg.LeaseTTL = minTTL
	}

	cfg := &Config{
		App:      appCfg,
		MCP:      MCPConfig{Port: getEnv("MCP_PORT", "8080"), Host: getEnv("MCP_HOST", "localhost")},
		Paths:    pathsCfg,
		Database: dbCfg,
		Engine:   engineCfg,
		OrderService: OrderServiceConfig{
			URL:           getEnv("JAP_API_URL", "https://justanotherpanel.com/api/v2"),
			APIKey:        getEnv("JAP_API_KEY", ""),
			ServicesCache: getEnvDuration("JAP_SERVICES_CACHE", time.Hour),
		},
		Feeds: FeedProviderConfig{
			URL:       getEnv("RSSAPP_API_URL", "https://api.rss.app/v1"),
			APIKey:    getEnv("RSSAPP_API_KEY", ""),
			APISecret: getEnv("RSSAPP_API_SECRET", ""),
		},
		AI: AIConfig{
			Provider: strings.ToLower(getEnv("AI_PROVIDER", "openai")),
			OpenAI:   getEnv("OPENAI_API_KEY", ""),
			Gemini:   getEnv("GEMINI_API_KEY", ""),
			Model:    getEnv("AI_MODEL", ""),
		},
	}

	Global = cfg
	return cfg, nil
}
