package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/random"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Minio     MinioConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Orders    OrderConfig
	Jobs      JobConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         int
	Env          string
	RateLimitRPS float64
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type AuthConfig struct {
	JWTSecret string
	// JWKSURL switches token verification to a remote key set.
	JWKSURL string
	// GeneratedSecret is set when JWTSecret was generated for development.
	GeneratedSecret bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	ArchiveBucket string
}

type KafkaConfig struct {
	Brokers    string
	OrderTopic string
}

type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

type OrderConfig struct {
	LockTimeout    time.Duration
	TxTimeout      time.Duration
	ReplayCacheTTL time.Duration
}

type JobConfig struct {
	LowStockInterval     time.Duration
	AuditArchiveInterval time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Env:          getEnv("APP_ENV", "development"),
			RateLimitRPS: getEnvAsFloat("RATE_LIMIT_RPS", 50),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWKSURL:   getEnv("JWKS_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Minio: MinioConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", ""),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:        getEnvAsBool("MINIO_USE_SSL", false),
			ArchiveBucket: getEnv("AUDIT_ARCHIVE_BUCKET", "audit-archive"),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnv("KAFKA_BROKERS", ""),
			OrderTopic: getEnv("KAFKA_ORDER_TOPIC", "vale.orders"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_INSECURE", true),
		},
		Orders: OrderConfig{
			LockTimeout:    getEnvAsDuration("ORDER_LOCK_TIMEOUT", 5*time.Second),
			TxTimeout:      getEnvAsDuration("ORDER_TX_TIMEOUT", 10*time.Second),
			ReplayCacheTTL: getEnvAsDuration("REPLAY_CACHE_TTL", 10*time.Minute),
		},
		Jobs: JobConfig{
			LowStockInterval:     getEnvAsDuration("LOW_STOCK_INTERVAL", 15*time.Minute),
			AuditArchiveInterval: getEnvAsDuration("AUDIT_ARCHIVE_INTERVAL", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Auth.JWTSecret == "" && cfg.Auth.JWKSURL == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = random.String(32)
		cfg.Auth.GeneratedSecret = true
	}

	return cfg, cfg.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate reports every missing or out of range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is required"))
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		errs = append(errs, errors.New("JWT_SECRET or JWKS_URL is required in production"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Server.Port))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns))
	}
	if c.Orders.LockTimeout <= 0 || c.Orders.TxTimeout <= 0 {
		errs = append(errs, errors.New("ORDER_LOCK_TIMEOUT and ORDER_TX_TIMEOUT must be positive"))
	}
	if c.Orders.LockTimeout >= c.Orders.TxTimeout {
		errs = append(errs, errors.New("ORDER_LOCK_TIMEOUT must be shorter than ORDER_TX_TIMEOUT"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
