package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	AutoMigrate      bool

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers     []string
	GrowthEventTopic string
	AlertGroupID     string
	AlertWorkerPort  string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// Growth domain
	ReferenceTablesPath  string
	CascadeChildDelete   bool
	PublicReportCacheTTL time.Duration
	PublicRateLimitRPS   int
	PublicRateLimitBurst int
}

// Load reads the process environment. A .env file in the working directory is
// merged in first when present; variables already set take precedence.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "growthwatch"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "growthwatch"),
		PostgresDB:       getEnv("POSTGRES_DB", "growthwatch"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		AutoMigrate:      getBoolEnv("DB_AUTO_MIGRATE", true),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", nil),
		GrowthEventTopic: getEnv("KAFKA_TOPIC_GROWTH_EVENTS", "growth.events"),
		AlertGroupID:     getEnv("KAFKA_ALERT_GROUP_ID", "alert-worker"),
		AlertWorkerPort:  getEnv("ALERT_WORKER_PORT", "8081"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "growthwatch"),
		JWTAudience: getEnv("JWT_AUDIENCE", "growthwatch-api"),
		JWTTTL:      getDuration("JWT_TTL", 12*time.Hour),

		ReferenceTablesPath:  getEnv("REFERENCE_TABLES_PATH", ""),
		CascadeChildDelete:   getBoolEnv("CASCADE_CHILD_DELETE", false),
		PublicReportCacheTTL: getDuration("PUBLIC_REPORT_CACHE_TTL", 5*time.Minute),
		PublicRateLimitRPS:   getIntEnv("PUBLIC_RATE_LIMIT_RPS", 10),
		PublicRateLimitBurst: getIntEnv("PUBLIC_RATE_LIMIT_BURST", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
