package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Most values have simple defaults suitable for local development.
type Config struct {
	ServerAddr string

	// Works feed: JSON file the console catalog is hydrated from.
	WorksFeedPath string
	FeedWatch     bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO 对象存储配置（音频与乐谱PDF资源）
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// JWT secret for the admin editing surface.
	JWTSecret string

	// Seed credentials for the admin account; empty disables seeding.
	AdminUser     string
	AdminEmail    string
	AdminPassword string

	// Layout tuning. These mirror the console field geometry.
	SafeMargin       float64
	CollisionPadding float64
	CollisionPasses  int
	ResizeDebounce   time.Duration
	PlaybackTick     time.Duration

	LogPath  string
	LogLevel string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		WorksFeedPath: getEnv("WORKS_FEED_PATH", filepath.Join("data", "works.json")),
		FeedWatch:     getEnvBool("WORKS_FEED_WATCH", true),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "praetorius"),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "praetorius"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		JWTSecret: getEnv("JWT_SECRET", "praetorius-dev-secret"),

		AdminUser:     getEnv("ADMIN_USER", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@localhost"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		SafeMargin:       float64(getEnvInt("LAYOUT_SAFE_MARGIN", 64)),
		CollisionPadding: float64(getEnvInt("LAYOUT_COLLISION_PADDING", 24)),
		CollisionPasses:  getEnvInt("LAYOUT_COLLISION_PASSES", 8),
		ResizeDebounce:   time.Duration(getEnvInt("RESIZE_DEBOUNCE_MS", 120)) * time.Millisecond,
		PlaybackTick:     time.Duration(getEnvInt("PLAYBACK_TICK_MS", 250)) * time.Millisecond,

		LogPath:  getEnv("LOG_PATH", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}
