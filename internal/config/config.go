package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Secrets  SecretsConfig
	Mail     MailConfig
	Geo      GeoConfig
	Webhook  WebhookConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	PrivateKeyPath    string
	KeyID             string
	Issuer            string
	AccessTokenExpiry time.Duration
	IDTokenExpiry     time.Duration
}

type AuthConfig struct {
	MaxFailedLogins int
	LockDuration    time.Duration
	SessionExpiry   time.Duration
	MFAChallengeTTL time.Duration
	CleanupInterval time.Duration
	TOTPIssuer      string
}

type SecretsConfig struct {
	// EncryptionKey is the 32-byte hex-decoded process key for PII
	// encryption and lookup hashing.
	EncryptionKey string
}

type MailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

type GeoConfig struct {
	LookupURL     string
	LookupTimeout time.Duration
	CacheTTL      time.Duration
	TorExitURL    string
	TorRefreshTTL time.Duration
	VPNPrefixes   []string
}

type WebhookConfig struct {
	AlertURL   string
	Timeout    time.Duration
	QueueSize  int
	MaxRetries int
}

func Load() (*Config, error) {
	// .env is optional outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			PublicURL:    getEnv("SERVER_PUBLIC_URL", "http://localhost:8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "sso"),
			Password: getEnv("DB_PASSWORD", "sso"),
			DBName:   getEnv("DB_NAME", "ssodb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			PrivateKeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			KeyID:             getEnv("JWT_KEY_ID", "sso-rs256-1"),
			Issuer:            getEnv("JWT_ISSUER", getEnv("SERVER_PUBLIC_URL", "http://localhost:8080")),
			AccessTokenExpiry: getDurationEnv("JWT_ACCESS_EXPIRY", 15*time.Minute),
			IDTokenExpiry:     getDurationEnv("JWT_ID_TOKEN_EXPIRY", time.Hour),
		},
		Auth: AuthConfig{
			MaxFailedLogins: getIntEnv("AUTH_MAX_FAILED_LOGINS", 5),
			LockDuration:    getDurationEnv("AUTH_LOCK_DURATION", 15*time.Minute),
			SessionExpiry:   getDurationEnv("AUTH_SESSION_EXPIRY", 24*time.Hour),
			MFAChallengeTTL: getDurationEnv("AUTH_MFA_CHALLENGE_TTL", 5*time.Minute),
			CleanupInterval: getDurationEnv("AUTH_CLEANUP_INTERVAL", 15*time.Minute),
			TOTPIssuer:      getEnv("AUTH_TOTP_ISSUER", "SSO Server"),
		},
		Secrets: SecretsConfig{
			EncryptionKey: getEnv("SECRETS_ENCRYPTION_KEY", ""),
		},
		Mail: MailConfig{
			APIKey:    getEnv("MAIL_API_KEY", ""),
			FromEmail: getEnv("MAIL_FROM_EMAIL", "no-reply@localhost"),
			FromName:  getEnv("MAIL_FROM_NAME", "SSO Server"),
			Timeout:   getDurationEnv("MAIL_TIMEOUT", 10*time.Second),
		},
		Geo: GeoConfig{
			LookupURL:     getEnv("GEO_LOOKUP_URL", ""),
			LookupTimeout: getDurationEnv("GEO_LOOKUP_TIMEOUT", 3*time.Second),
			CacheTTL:      getDurationEnv("GEO_CACHE_TTL", time.Hour),
			TorExitURL:    getEnv("GEO_TOR_EXIT_URL", ""),
			TorRefreshTTL: getDurationEnv("GEO_TOR_REFRESH_TTL", time.Hour),
			VPNPrefixes:   getListEnv("GEO_VPN_PREFIXES"),
		},
		Webhook: WebhookConfig{
			AlertURL:   getEnv("WEBHOOK_ALERT_URL", ""),
			Timeout:    getDurationEnv("WEBHOOK_TIMEOUT", 5*time.Second),
			QueueSize:  getIntEnv("WEBHOOK_QUEUE_SIZE", 256),
			MaxRetries: getIntEnv("WEBHOOK_MAX_RETRIES", 2),
		},
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
