package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	// Grid geometry
	GridWidth  int
	GridHeight int
	PixelSize  int

	// Price formula: base + (height-1)*surcharge, in tokens
	BasePrice       int64
	HeightSurcharge int64
	MaxHeight       int
	USDPerToken     float64

	// Payment verification
	BurnAddress   string
	TokenSymbol   string
	LedgerRPCURL  string
	VerifyTimeout time.Duration

	// Editor limits
	MaxImageBytes int64
	CanvasSize    int

	// Purchase sessions
	SessionTTL time.Duration

	// Commit notifications
	NotifyEndpoint     string
	NotifyRetryMax     int
	NotifyRetryBackoff time.Duration
	NotifyRPCTimeout   time.Duration

	// 3D view
	Enable3D         bool
	CameraDistance   float64
	HeightUnit       float64
	AmbientLight     float64
	DirectionalLight float64

	QueryTimeout time.Duration
}

func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnvRequired("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GridWidth:  getEnvInt("GRID_WIDTH", 100),
		GridHeight: getEnvInt("GRID_HEIGHT", 100),
		PixelSize:  getEnvInt("PIXEL_SIZE", 10),

		BasePrice:       getEnvInt64("BASE_PRICE", 10000),
		HeightSurcharge: getEnvInt64("HEIGHT_SURCHARGE", 10000),
		MaxHeight:       getEnvInt("MAX_HEIGHT", 10),
		USDPerToken:     getEnvFloat("USD_PER_TOKEN", 0.01),

		BurnAddress:   getEnvRequired("BURN_ADDRESS"),
		TokenSymbol:   getEnv("TOKEN_SYMBOL", "POT"),
		LedgerRPCURL:  getEnvRequired("LEDGER_RPC_URL"),
		VerifyTimeout: getEnvDuration("VERIFY_TIMEOUT", 15*time.Second),

		MaxImageBytes: getEnvInt64("MAX_IMAGE_BYTES", 5*1024*1024),
		CanvasSize:    getEnvInt("CANVAS_SIZE", 512),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*time.Minute),

		NotifyEndpoint:     getEnv("NOTIFY_ENDPOINT", ""),
		NotifyRetryMax:     getEnvInt("NOTIFY_RETRY_MAX", 3),
		NotifyRetryBackoff: getEnvDuration("NOTIFY_RETRY_BACKOFF", 100*time.Millisecond),
		NotifyRPCTimeout:   getEnvDuration("NOTIFY_RPC_TIMEOUT", 5*time.Second),

		Enable3D:         getEnvBool("ENABLE_3D", true),
		CameraDistance:   getEnvFloat("CAMERA_DISTANCE", 400),
		HeightUnit:       getEnvFloat("HEIGHT_UNIT", 10),
		AmbientLight:     getEnvFloat("AMBIENT_LIGHT", 0.5),
		DirectionalLight: getEnvFloat("DIRECTIONAL_LIGHT", 0.8),

		QueryTimeout: getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
	}
}

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}
