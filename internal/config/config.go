// Package config reads process configuration from the environment, after
// optionally loading a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env (or the given files) into the environment. Values
// already set in the environment win. A missing file is reported but
// callers usually just log it.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Client configures the headless client harness.
type Client struct {
	APIBaseURL     string
	Platform       string
	DeviceType     string
	KVBackend      string
	SQLitePath     string
	SessionBackend string
	KeyringDir     string
	InstallID      string
	BadgeRefresh   string
	HTTPTimeout    time.Duration
	Redis          Redis
	LogLevel       string
	Development    bool
}

// Server configures the reference backend.
type Server struct {
	Port         string
	StoreBackend string
	DatabaseURL  string
	Redis        Redis
	RedisEnabled bool
	Firebase     Firebase
	// DevSessions seeds the in-memory store with token to user id pairs.
	DevSessions map[string]string
	LogLevel    string
	Development bool
}

type Redis struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port.
func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Firebase struct {
	ServiceAccountPath string
	ProjectID          string
}

// LoadClient reads the HUDDLE_* client variables.
func LoadClient() (Client, error) {
	timeout, err := time.ParseDuration(getEnvOrDefault("HUDDLE_HTTP_TIMEOUT", "15s"))
	if err != nil {
		return Client{}, fmt.Errorf("invalid HUDDLE_HTTP_TIMEOUT: %w", err)
	}
	redisCfg, err := loadRedis()
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		APIBaseURL:     getEnvOrDefault("HUDDLE_API_BASE_URL", "http://localhost:9091"),
		Platform:       strings.ToLower(getEnvOrDefault("HUDDLE_PLATFORM", "android")),
		DeviceType:     getEnvOrDefault("HUDDLE_DEVICE_TYPE", "simulator"),
		KVBackend:      strings.ToLower(getEnvOrDefault("HUDDLE_KV_BACKEND", "sqlite")),
		SQLitePath:     getEnvOrDefault("HUDDLE_SQLITE_PATH", "huddle-device.db"),
		SessionBackend: strings.ToLower(getEnvOrDefault("HUDDLE_SESSION_BACKEND", "kv")),
		KeyringDir:     os.Getenv("HUDDLE_KEYRING_DIR"),
		InstallID:      getEnvOrDefault("HUDDLE_INSTALL_ID", "local"),
		BadgeRefresh:   os.Getenv("HUDDLE_BADGE_REFRESH"),
		HTTPTimeout:    timeout,
		Redis:          redisCfg,
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		Development:    getEnvBool("LOG_DEVELOPMENT", true),
	}

	switch cfg.Platform {
	case "ios", "android":
	default:
		return Client{}, fmt.Errorf("invalid HUDDLE_PLATFORM %q: must be ios or android", cfg.Platform)
	}
	switch cfg.KVBackend {
	case "sqlite", "redis", "memory":
	default:
		return Client{}, fmt.Errorf("invalid HUDDLE_KV_BACKEND %q: must be sqlite, redis or memory", cfg.KVBackend)
	}
	switch cfg.SessionBackend {
	case "kv", "keyring":
	default:
		return Client{}, fmt.Errorf("invalid HUDDLE_SESSION_BACKEND %q: must be kv or keyring", cfg.SessionBackend)
	}
	return cfg, nil
}

// LoadServer reads the backend variables. DATABASE_URL wins over the
// individual POSTGRES_* settings.
func LoadServer() (Server, error) {
	redisCfg, err := loadRedis()
	if err != nil {
		return Server{}, err
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			getEnvOrDefault("POSTGRES_USER", "huddle"),
			os.Getenv("POSTGRES_PASSWORD"),
			getEnvOrDefault("POSTGRES_HOST", "localhost"),
			getEnvOrDefault("POSTGRES_PORT", "5432"),
			getEnvOrDefault("POSTGRES_DB", "huddle"),
			getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		)
	}

	cfg := Server{
		Port:         getEnvOrDefault("PORT", "9091"),
		StoreBackend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", "postgres")),
		DatabaseURL:  databaseURL,
		Redis:        redisCfg,
		RedisEnabled: getEnvBool("REDIS_ENABLED", true),
		Firebase: Firebase{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
			ProjectID:          os.Getenv("FIREBASE_PROJECT_ID"),
		},
		DevSessions: parsePairs(os.Getenv("DEV_SESSIONS")),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		Development: getEnvBool("LOG_DEVELOPMENT", false),
	}
	switch cfg.StoreBackend {
	case "postgres", "memory":
	default:
		return Server{}, fmt.Errorf("invalid STORE_BACKEND %q: must be postgres or memory", cfg.StoreBackend)
	}
	return cfg, nil
}

func loadRedis() (Redis, error) {
	db, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return Redis{}, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}
	return Redis{
		Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     getEnvOrDefault("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

// parsePairs reads "a=1,b=2". Malformed entries are skipped.
func parsePairs(v string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" || val == "" {
			continue
		}
		out[k] = val
	}
	return out
}

// getEnvOrDefault returns the environment variable value or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
