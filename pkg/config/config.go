package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("CONFIG")

var CodeInvalidConfig = ErrRegistry.Register("INVALID", errx.TypeValidation, http.StatusInternalServerError, "Invalid configuration")

// Config is the root configuration shared by both processes.
type Config struct {
	Server           ServerConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Remote           RemoteConfig
	IdentityProvider IdentityProviderConfig
	ProfileStore     ProfileStoreConfig
	Provisioning     ProvisioningConfig
	Jobx             JobxConfig
	Notifx           NotifxConfig
}

type ServerConfig struct {
	Port        string
	AppName     string
	Version     string
	CORSOrigins string
	Debug       bool
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RemoteConfig bounds every call to the identity provider and profile service.
// A timeout is reported the same way as a connectivity failure.
type RemoteConfig struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Load reads the whole configuration from the environment.
func Load() *Config {
	return &Config{
		Server:           loadServerConfig(),
		Database:         loadDatabaseConfig(),
		Redis:            loadRedisConfig(),
		Remote:           loadRemoteConfig(),
		IdentityProvider: loadIdentityProviderConfig(),
		ProfileStore:     loadProfileStoreConfig(),
		Provisioning:     loadProvisioningConfig(),
		Jobx:             loadJobxConfig(),
		Notifx:           loadNotifxConfig(),
	}
}

// Validate checks the settings the orchestrator cannot run without.
func (c *Config) Validate() error {
	if c.Remote.Timeout <= 0 {
		return invalid("REMOTE_TIMEOUT must be positive")
	}
	if err := c.IdentityProvider.validate(); err != nil {
		return err
	}
	if c.ProfileStore.BaseURL == "" {
		return invalid("PROFILE_STORE_URL is required")
	}
	if c.Provisioning.MinPasswordLength < 6 {
		return invalid("PROVISIONING_MIN_PASSWORD_LENGTH must be at least 6")
	}
	return nil
}

func invalid(reason string) *errx.Error {
	return ErrRegistry.NewWithMessage(CodeInvalidConfig, reason)
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:        getEnv("PORT", "8080"),
		AppName:     getEnv("APP_NAME", "Provisioning API"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		Debug:       getEnvBool("DEBUG", false),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", "postgres"),
		Name:            getEnv("DB_NAME", "profiles"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Enabled:  getEnvBool("REDIS_ENABLED", true),
	}
}

func loadRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Timeout:      getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
		RetryMax:     getEnvInt("REMOTE_RETRY_MAX", 2),
		RetryWaitMin: getEnvDuration("REMOTE_RETRY_WAIT_MIN", 100*time.Millisecond),
		RetryWaitMax: getEnvDuration("REMOTE_RETRY_WAIT_MAX", time.Second),
	}
}

// ---------------------------------------------------------------------------
// env helpers
// ---------------------------------------------------------------------------

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
