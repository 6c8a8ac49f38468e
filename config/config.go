package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Booking configuration
	LockTTL         time.Duration // per train+date booking lock expiry
	LockWaitTimeout time.Duration // how long an operation waits for the lock

	// Transition scheduler configuration
	ConfirmationDelay  time.Duration // Waiting -> RAC delay
	RACHoldDuration    time.Duration // RAC -> Confirmed delay
	TransitionPollRate time.Duration // worker tick

	// Rate limiting
	BookingRatePerMinute int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Booking
		LockTTL:         getEnvAsDuration("BOOKING_LOCK_TTL", "10s"),
		LockWaitTimeout: getEnvAsDuration("BOOKING_LOCK_WAIT", "3s"),

		// Transitions
		ConfirmationDelay:  getEnvAsDuration("CONFIRMATION_DELAY", "20s"),
		RACHoldDuration:    getEnvAsDuration("RAC_HOLD_DURATION", "5s"),
		TransitionPollRate: getEnvAsDuration("TRANSITION_POLL_RATE", "5s"),

		// Rate limiting
		BookingRatePerMinute: getEnvAsInt("BOOKING_RATE_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
