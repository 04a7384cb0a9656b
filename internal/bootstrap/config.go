package bootstrap

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/eleven-am/pose-bridge/internal/bridge"
	"github.com/eleven-am/pose-bridge/internal/pose"
)

type Config struct {
	ServerAddr   string
	BodyLimit    string
	ShutdownWait time.Duration

	LogLevel string
	LogFile  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	FrameTTL      time.Duration
	MaxFrames     int

	DetectorURL     string
	DetectorTimeout time.Duration
	ModelDir        string

	ChannelIdleTTL time.Duration
	MaxImagePixels int

	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadConfig reads the environment, after merging a .env file from the
// working directory when one exists.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BodyLimit:    getEnv("BODY_LIMIT", "16M"),
		ShutdownWait: getEnvDuration("SHUTDOWN_WAIT", 10*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		FrameTTL:      getEnvDuration("FRAME_TTL", 60*time.Second),
		MaxFrames:     getEnvInt("MAX_FRAMES", 1000),

		DetectorURL:     getEnv("DETECTOR_URL", "http://localhost:8500"),
		DetectorTimeout: getEnvDuration("DETECTOR_TIMEOUT", 10*time.Second),
		ModelDir:        getEnv("MODEL_DIR", ""),

		ChannelIdleTTL: getEnvDuration("CHANNEL_IDLE_TTL", bridge.DefaultIdleTTL),
		MaxImagePixels: getEnvInt("MAX_IMAGE_PIXELS", pose.DefaultMaxPixels),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 60),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 120),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
