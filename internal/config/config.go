package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported store drivers.
const (
	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

// Config aggregates runtime configuration for one application process.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	API      APIConfig
	Slots    SlotsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the backend behind the session store.
type StoreConfig struct {
	Driver        string
	KeyPrefix     string
	Notifications bool
	Channel       string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines the role requirement and redirect destinations.
type AuthConfig struct {
	RequiredRoles   []string
	CookieName      string
	CookieSecure    bool
	LoginURL        string
	SharedLoginURL  string
	AccessDeniedURL string
	SiblingURL      string
}

// APIConfig points at the API boundary and its renewal endpoint.
type APIConfig struct {
	BaseURL        string
	RenewalURL     string
	TimeoutSeconds int
}

// SlotsConfig describes which storage slots are shared and which each application owns.
type SlotsConfig struct {
	Shared []string            `yaml:"shared"`
	Scoped map[string][]string `yaml:"scoped"`
}

// DefaultSlots returns the layout used when no SLOTS_FILE is configured.
func DefaultSlots() SlotsConfig {
	return SlotsConfig{
		Shared: []string{"credential", "userProfile"},
		Scoped: map[string][]string{
			"admin": {"uiTheme", "notificationPrefs", "sidebarCollapsed"},
			"donor": {"uiTheme", "savedFilters"},
		},
	}
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	slots := DefaultSlots()
	if path := os.Getenv("SLOTS_FILE"); path != "" {
		slots, err = LoadSlots(path)
		if err != nil {
			return nil, err
		}
	}

	appName := getEnv("APP_NAME", "admin")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMemory)),
			KeyPrefix:     getEnv("STORE_KEY_PREFIX", "gate:"),
			Notifications: getEnvAsBool("STORE_NOTIFICATIONS", false),
			Channel:       getEnv("STORE_NOTIFY_CHANNEL", "gate:slot-events"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			RequiredRoles:   getEnvAsList("AUTH_REQUIRED_ROLES", defaultRoles(appName)),
			CookieName:      getEnv("SESSION_COOKIE_NAME", "ngo_sid"),
			CookieSecure:    getEnvAsBool("SESSION_COOKIE_SECURE", false),
			LoginURL:        getEnv("AUTH_LOGIN_URL", "/login"),
			SharedLoginURL:  getEnv("AUTH_SHARED_LOGIN_URL", "/login"),
			AccessDeniedURL: getEnv("AUTH_ACCESS_DENIED_URL", "/access-denied"),
			SiblingURL:      os.Getenv("AUTH_SIBLING_URL"),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://127.0.0.1:5000/api"),
			RenewalURL:     getEnv("API_RENEWAL_URL", "http://127.0.0.1:5000/api/auth/refresh"),
			TimeoutSeconds: getEnvAsInt("API_TIMEOUT_SECONDS", 15),
		},
		Slots: slots,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSlots reads a YAML slot layout.
func LoadSlots(path string) (SlotsConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return SlotsConfig{}, fmt.Errorf("read slots file: %w", err)
	}
	var slots SlotsConfig
	if err := yaml.Unmarshal(content, &slots); err != nil {
		return SlotsConfig{}, fmt.Errorf("parse slots file: %w", err)
	}
	if len(slots.Shared) == 0 {
		slots.Shared = DefaultSlots().Shared
	}
	return slots, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver == StoreDriverPostgres && c.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN required for postgres store")
	}
	if _, ok := c.Slots.Scoped[c.App.Name]; !ok {
		return fmt.Errorf("application %q has no scoped slots in layout", c.App.Name)
	}
	for _, shared := range c.Slots.Shared {
		for _, scoped := range c.Slots.Scoped[c.App.Name] {
			if shared == scoped {
				return fmt.Errorf("slot %q is both shared and scoped", shared)
			}
		}
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the outbound HTTP timeout.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// the donor app only needs an authenticated session.
func defaultRoles(app string) string {
	if app == "admin" {
		return "admin"
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
