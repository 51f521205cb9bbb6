package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer       string // issuer claim for session tokens
	DatabaseFile string // path to SQLite database file (default: ./portal.db)

	SigningKeyFile string // optional: PKCS8 Ed25519 PEM; empty means an ephemeral key
	SigningKeyID   string // kid for the active key (default: primary)

	RedisAddr         string // optional: shared limiter buckets live here when set
	LimiterFailClosed bool   // block attempts when the bucket store is down
	TokenFailOpen     bool   // allow tokens when the revocation store is down

	TokenLifetime    time.Duration
	RefreshThreshold time.Duration

	TOTPIssuer      string // label shown in authenticator apps
	VerifyEmailPath string // where unverified browser sessions get sent

	CORSOrigins  []string
	CookieSecure bool

	ThrottleRequests int // per-IP requests per window
	ThrottleWindow   time.Duration

	Env       string // dev, staging, prod
	LogLevel  string
	LogFormat string
	Port      int

	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

// LoadConfig reads configuration from the environment, with a .env file
// picked up first when present (local development convenience).
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Issuer:       getEnvOrDefault("PORTAL_ISSUER", "tramita-portal"),
		DatabaseFile: getEnvOrDefault("PORTAL_DATABASE_FILE", "portal.db"),

		SigningKeyFile: os.Getenv("PORTAL_SIGNING_KEY_FILE"),
		SigningKeyID:   getEnvOrDefault("PORTAL_SIGNING_KEY_ID", "primary"),

		RedisAddr:         os.Getenv("PORTAL_REDIS_ADDR"),
		LimiterFailClosed: getEnvBool("PORTAL_LIMITER_FAIL_CLOSED", false),
		TokenFailOpen:     getEnvBool("PORTAL_TOKEN_FAIL_OPEN", false),

		TokenLifetime:    getEnvDurationOrDefault("PORTAL_TOKEN_LIFETIME", 24*time.Hour),
		RefreshThreshold: getEnvDurationOrDefault("PORTAL_REFRESH_THRESHOLD", 1*time.Hour),

		TOTPIssuer:      getEnvOrDefault("PORTAL_TOTP_ISSUER", "Tramita"),
		VerifyEmailPath: getEnvOrDefault("PORTAL_VERIFY_EMAIL_PATH", "/verify-email"),

		CORSOrigins:  splitList(getEnvOrDefault("PORTAL_CORS_ORIGINS", "*")),
		CookieSecure: getEnvBool("PORTAL_COOKIE_SECURE", true),

		ThrottleRequests: getEnvIntOrDefault("PORTAL_THROTTLE_REQUESTS", 300),
		ThrottleWindow:   getEnvDurationOrDefault("PORTAL_THROTTLE_WINDOW", time.Minute),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
