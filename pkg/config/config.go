package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	StoreBackendSQL       = "sql"
	StoreBackendFirestore = "firestore"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port             string
	StoreBackend     string
	DatabaseDriver   string
	DatabaseURL      string
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	FirebaseCredentials string
	FirebaseProjectID   string

	// Pub/Sub relay for task change events between replicas (SQL backend only)
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string
	InstanceID        string

	Timezone        string
	ReminderTime    string
	RolloverOnLogin bool
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	accessExpiry := 15 * time.Minute
	if exp := os.Getenv("JWT_ACCESS_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			accessExpiry = parsed
		}
	}

	refreshExpiry := 168 * time.Hour // 7 days
	if exp := os.Getenv("JWT_REFRESH_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			refreshExpiry = parsed
		}
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreBackendSQL)),
		DatabaseDriver:      strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:         getEnv("DATABASE_URL", "tasksync.db"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:     accessExpiry,
		JWTRefreshExpiry:    refreshExpiry,
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("PUBSUB_TOPIC", "task-changes"),
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS", ""),
		InstanceID:          getEnv("INSTANCE_ID", uuid.New().String()),
		Timezone:            getEnv("TIMEZONE", "Local"),
		ReminderTime:        reminderTime(),
		RolloverOnLogin:     getBool("ROLLOVER_ON_LOGIN", true),
	}
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[Config] unknown TIMEZONE %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// reminderTime defaults to 08:00; an explicitly empty REMINDER_TIME
// disables due-date reminders.
func reminderTime() string {
	value, ok := os.LookupEnv("REMINDER_TIME")
	if !ok {
		return "08:00"
	}
	return strings.TrimSpace(value)
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
