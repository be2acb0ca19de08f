package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-wide configuration surface, adapted from the
// teacher's src/config/config.go and extended with the database/kafka
// sections the ledger engine needs that the teacher's in-memory build
// never required.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Core      CoreConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

// CoreConfig holds the operational tunables of the transaction,
// outbox, idempotency, and reconciliation layers — values the teacher
// leaves as package constants, made env-overridable here since an
// operator needs to tune retry/batch behavior per deployment without a
// rebuild.
type CoreConfig struct {
	MaxDeadlockRetries    int
	OutboxBatch           int
	OutboxSleep           time.Duration
	OutboxMaxAttempts     int
	IdempotencyTTL        time.Duration
	BalanceReconcileBatch int
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	ClientID string
}

// OutboxConfig holds outbox-worker settings that aren't shared with any
// other layer; batch size, tick interval, and dead-letter threshold
// live under Core instead since txn/idempotency/reconciliation tuning
// is configured the same way.
type OutboxConfig struct {
	StuckMinutes int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Window            time.Duration
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, defaulting every
// field the way the teacher's config.Load does.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "ledgercore"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "ledgercore"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ClientID: getEnv("KAFKA_CLIENT_ID", "ledgercore-outbox"),
		},
		Core: CoreConfig{
			MaxDeadlockRetries:    getEnvAsInt("CORE_MAX_DEADLOCK_RETRIES", 3),
			OutboxBatch:           getEnvAsInt("CORE_OUTBOX_BATCH", 100),
			OutboxSleep:           getEnvAsDuration("CORE_OUTBOX_SLEEP", 2*time.Second),
			OutboxMaxAttempts:     getEnvAsInt("CORE_OUTBOX_MAX_ATTEMPTS", 5),
			IdempotencyTTL:        getEnvAsDuration("CORE_IDEMPOTENCY_TTL", 24*time.Hour),
			BalanceReconcileBatch: getEnvAsInt("CORE_BALANCE_RECONCILE_BATCH", 500),
		},
		Outbox: OutboxConfig{
			StuckMinutes: getEnvAsInt("OUTBOX_STUCK_MINUTES", 15),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 300),
			Window:            time.Minute,
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowMethods:     getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowHeaders:     getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Accept", "Idempotency-Key", "X-Correlation-ID"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(name string, defaultVal []string) []string {
	valStr := getEnv(name, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, ",")
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	return defaultVal
}
