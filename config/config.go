package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// API configuration
	APIPort int
	LogMode string

	// Database configuration
	DatabaseDriver   string // sqlite or postgres
	DatabasePath     string // sqlite file, created on first access
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisEnabled  bool
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// Timezone used for wall-clock matching and action bucketing
	Timezone string

	// Learning configuration
	Learning LearningConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Device backend configuration
	Devices DeviceConfig
}

// LearningConfig holds pattern detection thresholds
type LearningConfig struct {
	MinOccurrences      int
	ConfidenceThreshold float64
	LookbackDays        int
	// RetentionDays bounds the action log; 0 keeps everything
	RetentionDays int
}

// SchedulerConfig holds automation scheduler parameters
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// DeviceConfig selects the device-control backend
type DeviceConfig struct {
	Backend      string // mock or gateway
	SeedFile     string // YAML device list for the mock backend
	GatewayURL   string
	GatewayToken string
	// CommandTimeout bounds a single gateway round-trip
	CommandTimeout time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		APIPort: getEnvInt("API_PORT", 8000),
		LogMode: getEnvOrDefault("LOG_MODE", "development"),

		// Database configuration
		DatabaseDriver:   strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite")),
		DatabasePath:     getEnvOrDefault("DB_PATH", "data/automation.db"),
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "homehub"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "homehub"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "homehub"),

		// Redis configuration
		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		Timezone: getEnvOrDefault("TIMEZONE", "Local"),

		Learning: LearningConfig{
			MinOccurrences:      getEnvInt("LEARNING_MIN_OCCURRENCES", 3),
			ConfidenceThreshold: getEnvFloat("LEARNING_CONFIDENCE_THRESHOLD", 0.6),
			LookbackDays:        getEnvInt("LEARNING_LOOKBACK_DAYS", 30),
			RetentionDays:       getEnvInt("ACTION_RETENTION_DAYS", 90),
		},

		Scheduler: SchedulerConfig{
			Enabled:  getEnvBool("SCHEDULER_ENABLED", true),
			Interval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
		},

		Devices: DeviceConfig{
			Backend:        strings.ToLower(getEnvOrDefault("DEVICE_BACKEND", "mock")),
			SeedFile:       getEnvOrDefault("DEVICES_FILE", ""),
			GatewayURL:     getEnvOrDefault("DEVICE_GATEWAY_URL", "ws://localhost:8765/ws"),
			GatewayToken:   getEnvOrDefault("DEVICE_GATEWAY_TOKEN", ""),
			CommandTimeout: getEnvDuration("DEVICE_COMMAND_TIMEOUT", 10*time.Second),
		},
	}
}

// Location resolves the configured timezone, falling back to local time
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("⚠️  Unknown timezone %q, using local time", c.Timezone)
		return time.Local
	}
	return loc
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvBool accepts true/1/yes (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration parses Go duration strings such as "60s" or "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
