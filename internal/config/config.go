package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort    string
	GRPCPort    string
	MetricsPath string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	HealthInterval  time.Duration

	StoreDriver string
	Postgres    PostgresConfig
	Mongo       MongoConfig

	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	Inventory InventoryConfig
	Customer  CustomerConfig
	Breaker   BreakerConfig

	PricingConcurrency int
	CheckoutCompensate bool
}

type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
}

type MongoConfig struct {
	URI    string
	DBName string
}

type InventoryConfig struct {
	BaseURL    string
	PathPrefix string
	Timeout    time.Duration
}

type CustomerConfig struct {
	BaseURL string
	Timeout time.Duration
}

type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort:    getEnv("HTTP_PORT", "5705"),
		GRPCPort:    getEnv("GRPC_PORT", "50055"),
		MetricsPath: getEnv("METRICS_PATH", "/metrics"),

		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HealthInterval:  getEnvDuration("HEALTH_INTERVAL", 10*time.Second),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		Postgres: PostgresConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "mm_shopping_cart"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),
		},
		Mongo: MongoConfig{
			URI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DBName: getEnv("MONGO_DB_NAME", "cartdb"),
		},

		CacheEnabled:  getEnvBool("CACHE_ENABLED", true),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "cart-purchased"),

		Inventory: InventoryConfig{
			BaseURL:    getEnv("MM_INVENTORY_URL", "http://mm-inventory:5704"),
			PathPrefix: getEnv("MM_INVENTORY_PATH", "/mm-inventory"),
			Timeout:    getEnvDuration("INVENTORY_TIMEOUT", 5*time.Second),
		},
		Customer: CustomerConfig{
			BaseURL: getEnv("MM_CUSTOMER_URL", "http://mm-customer:5701"),
			Timeout: getEnvDuration("CUSTOMER_TIMEOUT", 5*time.Second),
		},
		Breaker: BreakerConfig{
			MaxFailures: uint32(getEnvPositiveInt("BREAKER_MAX_FAILURES", 5)),
			OpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},

		PricingConcurrency: getEnvInt("PRICING_CONCURRENCY", 8),
		CheckoutCompensate: getEnvBool("CHECKOUT_COMPENSATE", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvPositiveInt falls back to def for zero or negative values.
func getEnvPositiveInt(key string, def int) int {
	if n := getEnvInt(key, def); n > 0 {
		return n
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
