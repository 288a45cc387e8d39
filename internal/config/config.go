package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Log      LogConfig
}

// HTTPConfig contains REST server settings.
type HTTPConfig struct {
	Address string // listen address (e.g., ":8080")
	Mode    string // gin mode: debug, release or test

	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers are
	// believed. Empty trusts none, so the client IP is the peer address.
	TrustedProxies []string
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string // gRPC health listen address; empty disables the listener
}

// DatabaseConfig contains data-store connection settings.
type DatabaseConfig struct {
	Driver       string // sqlite3, mysql or postgres
	Path         string // SQLite database file path
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTKey     string        // HS256 signing key
	TokenTTL   time.Duration // zero issues tokens without an expiry claim
	BcryptCost int
}

// RedisConfig contains the login throttle backend settings.
type RedisConfig struct {
	Addr             string // empty disables login throttling
	Password         string
	LoginMaxAttempts int
	LoginCooldown    time.Duration
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}

	// Validate critical settings
	if cfg.Auth.JWTKey == "" {
		return nil, fmt.Errorf("JWT_KEY environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_KEY in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load("dev-secret-change-me")
}

func load(defaultKey string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	port, err := getEnvInt("DB_PORT", 0)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	ttl, err := getEnvDuration("TOKEN_TTL", 0)
	if err != nil {
		return nil, err
	}
	cost, err := getEnvInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	attempts, err := getEnvInt("LOGIN_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	cooldown, err := getEnvDuration("LOGIN_COOLDOWN", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Address: getEnv("HTTP_ADDRESS", ":8080"),
			Mode:    getEnv("GIN_MODE", "release"),

			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		},
		GRPC: GRPCConfig{
			Address: getEnv("GRPC_ADDRESS", ":50051"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite3")),
			Path:         getEnv("DB_PATH", "app.db"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         port,
			User:         getEnv("DB_USER", ""),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_DATABASE", "api"),
			MaxOpenConns: maxOpen,
		},
		Auth: AuthConfig{
			JWTKey:     getEnv("JWT_KEY", defaultKey),
			TokenTTL:   ttl,
			BcryptCost: cost,
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", ""),
			Password:         getEnv("REDIS_PASSWORD", ""),
			LoginMaxAttempts: attempts,
			LoginCooldown:    cooldown,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	switch cfg.Database.Driver {
	case "sqlite3", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	for _, p := range cfg.HTTP.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", p)
			}
		}
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

// getEnvDuration retrieves an environment variable as a time.Duration (e.g. "15m").
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{HTTP: %s, gRPC: %s, DB: %s, Redis: %q, Auth: *** (masked) ***}",
		c.HTTP.Address, c.GRPC.Address, c.Database.Driver, c.Redis.Addr)
}
