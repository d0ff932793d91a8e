package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderAlphaVantage = "alphavantage"
	ProviderStatic       = "static"
)

var (
	ErrMissingSecret   = errors.New("JWT_SECRET must be set")
	ErrMissingAPIKey   = errors.New("ALPHA_VANTAGE_API_KEY must be set when QUOTE_PROVIDER=alphavantage")
	ErrUnknownDriver   = errors.New("unknown DB_DRIVER")
	ErrUnknownProvider = errors.New("unknown QUOTE_PROVIDER")
)

// Config holds application configuration
type Config struct {
	Port string

	DBDriver   string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	DBPath     string // sqlite file, ":memory:" for an in-process database

	RedisURL      string
	RedisAddr     string // empty (with no RedisURL) disables Redis
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	SessionTTL time.Duration

	QuoteProvider      string
	AlphaVantageAPIKey string
	AlphaVantageURL    string
	StaticQuotes       string // "AAPL=190.25,MSFT=410" for QUOTE_PROVIDER=static
	QuoteTimeout       time.Duration
	QuoteCacheTTL      time.Duration

	StartingCash decimal.Decimal

	LogLevel  string
	LogPretty bool

	AuthRateLimit float64 // requests per second per client, 0 disables
	AuthRateBurst int
	CookieSecure  bool
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	startingCash, err := decimal.NewFromString(GetEnvAsString("STARTING_CASH", "10000.00"))
	if err != nil {
		return nil, fmt.Errorf("parse STARTING_CASH: %w", err)
	}
	if startingCash.IsNegative() {
		return nil, fmt.Errorf("STARTING_CASH must not be negative, got %s", startingCash)
	}

	cfg := &Config{
		Port: GetEnvAsString("PORT", "8080"),

		DBDriver:   GetEnvAsString("DB_DRIVER", DriverPostgres),
		DBHost:     GetEnvAsString("DB_HOST", "localhost"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     GetEnvAsString("DB_NAME", "finance"),
		DBPort:     GetEnvAsString("DB_PORT", "5432"),
		DBSSLMode:  GetEnvAsString("DB_SSLMODE", "disable"),
		DBPath:     GetEnvAsString("DB_PATH", "finance.db"),

		RedisURL:      os.Getenv("REDIS_URL"),
		RedisAddr:     GetEnvAsString("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       GetEnvAsInt("REDIS_DB", 0),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		SessionTTL: GetEnvAsDuration("SESSION_TTL", 24*time.Hour),

		QuoteProvider:      GetEnvAsString("QUOTE_PROVIDER", ProviderAlphaVantage),
		AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		AlphaVantageURL:    GetEnvAsString("ALPHA_VANTAGE_URL", "https://www.alphavantage.co/query"),
		StaticQuotes:       os.Getenv("STATIC_QUOTES"),
		QuoteTimeout:       GetEnvAsDuration("QUOTE_TIMEOUT", 5*time.Second),
		QuoteCacheTTL:      GetEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),

		StartingCash: startingCash,

		LogLevel:  GetEnvAsString("LOG_LEVEL", "info"),
		LogPretty: GetEnvAsBool("LOG_PRETTY", false),

		AuthRateLimit: GetEnvAsFloat("AUTH_RATE_LIMIT", 1),
		AuthRateBurst: GetEnvAsInt("AUTH_RATE_BURST", 5),
		CookieSecure:  GetEnvAsBool("COOKIE_SECURE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.DBDriver)
	}
	switch c.QuoteProvider {
	case ProviderAlphaVantage:
		if c.AlphaVantageAPIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderStatic:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.QuoteProvider)
	}
	return nil
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBPort,
		c.DBSSLMode,
	)
}

// OpenDB connects to the configured database.
func OpenDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == DriverSQLite {
		// sqlite allows one writer; a single connection also keeps ":memory:" databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get database instance: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info", "warn":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// OpenRedis connects to Redis. It returns nil when Redis is not configured or
// unreachable; callers treat a nil client as "Redis disabled".
func OpenRedis(ctx context.Context, cfg *Config, log zerolog.Logger) *redis.Client {
	var opts *redis.Options
	switch {
	case cfg.RedisURL != "":
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Invalid REDIS_URL, Redis disabled")
			return nil
		}
		opts = parsed
	case cfg.RedisAddr != "":
		opts = &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	default:
		log.Info().Msg("Redis not configured, quote cache and session revocation disabled")
		return nil
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis connection failed, quote cache and session revocation disabled")
		_ = client.Close()
		return nil
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return client
}

// GetEnvAsString gets environment variable as string with default value
func GetEnvAsString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets environment variable as int with default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvAsDuration gets environment variable as duration with default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
