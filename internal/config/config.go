package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
)

const (
	IdentityModeHosted = "hosted"
	IdentityModeLocal  = "local"

	SessionStoreRedis  = "redis"
	SessionStoreCookie = "cookie"
)

type Config struct {
	Environment string
	HTTPAddr    string
	GinMode     string
	PublicURL   string

	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	RedisHost     string
	RedisPort     string
	RedisPassword string
	SessionStore  string
	SessionSecret string

	IdentityMode       string
	AuthURL            string
	AuthAnonKey        string
	GoogleClientID     string
	GoogleClientSecret string
	LocalSessionTTL    time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	LogLevel  string
	LogFormat string

	RateLimitRPM          int
	InviteCodeTTL         time.Duration
	InviteCodeMaxAttempts int
	MetricsEnabled        bool
}

// Load reads configuration from the environment, after loading a .env file when present.
func Load() *Config {
	_ = godotenv.Load()

	environment := getEnv("APP_ENV", "development")
	return &Config{
		Environment: environment,
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "onboarding"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getBool("DB_AUTO_MIGRATE", true),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", SessionStoreRedis)),
		SessionSecret: getEnv("SESSION_SECRET", "default-secret-key-change-me"),

		IdentityMode:       strings.ToLower(getEnv("IDENTITY_MODE", IdentityModeHosted)),
		AuthURL:            strings.TrimRight(getEnv("AUTH_URL", "http://localhost:9999"), "/"),
		AuthAnonKey:        getEnv("AUTH_ANON_KEY", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		LocalSessionTTL:    getDuration("LOCAL_SESSION_TTL", time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", defaultLogFormat(environment)),

		RateLimitRPM:          getInt("RATE_LIMIT_RPM", 60),
		InviteCodeTTL:         getDuration("INVITE_CODE_TTL", constants.DefaultInviteCodeTTL),
		InviteCodeMaxAttempts: getInt("INVITE_CODE_MAX_ATTEMPTS", constants.DefaultInviteCodeAttempts),
		MetricsEnabled:        getBool("METRICS_ENABLED", true),
	}
}

// IsProduction reports whether cookies and logs should use production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.GinMode == "release"
}

func defaultLogFormat(environment string) string {
	if environment == "development" {
		return "console"
	}
	return "json"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
