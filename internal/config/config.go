// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/auth"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	CatalogDBPath         string
	CatalogMigrationsPath string

	DBHost              string
	DBPort              int
	DBUser              string
	DBPassword          string
	DBName              string
	SalesMigrationsPath string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers  []string
	SalesTopic    string
	ConsumerGroup string

	// CashierTokens maps static bearer tokens to cashier ids.
	CashierTokens map[string]string
	// JWTSecret verifies signed cashier session tokens. Empty disables them.
	JWTSecret string

	Locale   string
	Currency string

	LogLevel       string
	LogDevelopment bool

	TraceExporter string
	OTLPEndpoint  string

	ReservationTTL time.Duration
	// TerminalIdleTimeout is how long an untouched terminal stays in memory.
	TerminalIdleTimeout time.Duration
}

// Load reads an optional .env file and then the environment. Variables already set in the
// environment take precedence over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var errs []error
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		MaxRequestBodySize: 1 << 20, // 1MB

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./data/catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations"),

		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getInt("DB_PORT", 5432, &errs),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "pos"),
		SalesMigrationsPath: getEnv("SALES_MIGRATIONS_PATH", "./internal/sales/migrations"),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "pos"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		SalesTopic:    getEnv("SALES_TOPIC", "pos.sales"),
		ConsumerGroup: getEnv("SALES_CONSUMER_GROUP", defaultConsumerGroup()),

		JWTSecret: getEnv("JWT_SECRET", ""),

		Locale:   getEnv("LOCALE", "en-US"),
		Currency: getEnv("CURRENCY", "USD"),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDevelopment: getBool("LOG_DEVELOPMENT", false, &errs),

		TraceExporter: getEnv("OTEL_TRACES_EXPORTER", "none"),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		ReservationTTL:      getDuration("RESERVATION_TTL", 5*time.Minute, &errs),
		TerminalIdleTimeout: getDuration("TERMINAL_IDLE_TIMEOUT", 15*time.Minute, &errs),
	}

	tokens, err := auth.ParseTokens(getEnv("CASHIER_TOKENS", ""))
	if err != nil {
		errs = append(errs, fmt.Errorf("CASHIER_TOKENS: %w", err))
	}
	cfg.CashierTokens = tokens

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

// defaultConsumerGroup gives every instance its own group so each one sees every sale.
func defaultConsumerGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "pos-api-" + host
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
