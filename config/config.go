package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"storyconnect-backend/internal/moderation"
)

type Config struct {
	AppEnv   string
	AppPort  string
	AppName  string
	LogLevel string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Storage (S3/R2)
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	S3Region       string
	S3BucketMedia  string
	S3BucketThumbs string
	MediaURLTTL    time.Duration

	// Auth provider JWT secret (HS256)
	AuthJWTSecret string

	// Moderation
	ModerationAPIURL      string
	ModerationAPIKey      string
	ModerationEnabled     bool
	ModerationSyncTimeout time.Duration
	ModerationDeepTimeout time.Duration
	DeepWorkers           int

	// Stories
	StoryTTL        time.Duration
	StoryDailyLimit int

	// Push Notifications
	OneSignalAppID    string
	OneSignalAPIKey   string
	FirebaseServerKey string
}

func LoadConfig() *Config {
	// Load .env file if it exists (for local non-docker dev)
	_ = godotenv.Load()

	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		AppName:  getEnv("APP_NAME", "StoryConnect API"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "storyconnect"),
		DBPassword: getEnv("DB_PASSWORD", "storyconnect"),
		DBName:     getEnv("DB_NAME", "storyconnect"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		S3Endpoint:     getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    getEnv("S3_SECRET_KEY", "minioadmin"),
		S3UseSSL:       getEnvAsBool("S3_USE_SSL", false),
		S3Region:       getEnv("S3_REGION", "auto"),
		S3BucketMedia:  getEnv("S3_BUCKET_MEDIA", "storyconnect-media"),
		S3BucketThumbs: getEnv("S3_BUCKET_THUMBS", "storyconnect-thumbs"),
		MediaURLTTL:    getEnvAsDuration("MEDIA_URL_TTL", time.Hour),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		ModerationAPIURL:      getEnv("MODERATION_API_URL", ""),
		ModerationAPIKey:      getEnv("MODERATION_API_KEY", ""),
		ModerationEnabled:     getEnvAsBool("ENABLE_AI_MODERATION", false),
		ModerationSyncTimeout: getEnvAsDuration("MODERATION_SYNC_TIMEOUT", moderation.DefaultSyncTimeout),
		ModerationDeepTimeout: getEnvAsDuration("MODERATION_DEEP_TIMEOUT", moderation.DefaultDeepTimeout),
		DeepWorkers:           getEnvAsInt("DEEP_WORKERS", 2),

		StoryTTL:        getEnvAsDuration("STORY_TTL", 24*time.Hour),
		StoryDailyLimit: getEnvAsInt("STORY_DAILY_LIMIT", 30),

		OneSignalAppID:    getEnv("ONESIGNAL_APP_ID", ""),
		OneSignalAPIKey:   getEnv("ONESIGNAL_API_KEY", ""),
		FirebaseServerKey: getEnv("FIREBASE_SERVER_KEY", ""),
	}
}

// Validate rejects combinations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ModerationEnabled && c.ModerationAPIURL == "" {
		errs = append(errs, errors.New("ENABLE_AI_MODERATION is set but MODERATION_API_URL is empty"))
	}
	if c.AuthJWTSecret == "" && c.AppEnv != "development" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required outside development"))
	}
	if c.StoryTTL <= 0 {
		errs = append(errs, errors.New("STORY_TTL must be positive"))
	}
	if c.DeepWorkers < 1 {
		errs = append(errs, errors.New("DEEP_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

// Moderation returns the engine configuration.
func (c *Config) Moderation() moderation.Config {
	return moderation.Config{
		APIURL:      c.ModerationAPIURL,
		APIKey:      c.ModerationAPIKey,
		Enabled:     c.ModerationEnabled,
		SyncTimeout: c.ModerationSyncTimeout,
		DeepTimeout: c.ModerationDeepTimeout,
	}
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
