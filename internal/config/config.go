package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// Tracking pipeline
	FallbackIP      string
	RiskScorer      string
	TrackerParam    string
	GeoAPIBaseURL   string
	FraudAPIBaseURL string
	FraudAPIKey     string
	GeoFallbackURL  string

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

const (
	RiskScorerProvider = "provider"
	RiskScorerWeighted = "weighted"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "clickpipe"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		FallbackIP:      getenv("FALLBACK_IP_ADDRESS", "169.197.85.173"),
		RiskScorer:      normalizeScorer(getenv("RISK_SCORER", RiskScorerProvider)),
		TrackerParam:    getenv("TRACKER_PARAM", "click_id"),
		GeoAPIBaseURL:   getenv("GEO_API_BASE_URL", "http://ip-api.com/json"),
		FraudAPIBaseURL: getenv("FRAUD_API_BASE_URL", "https://proxycheck.io/v2"),
		FraudAPIKey:     strings.TrimSpace(getenv("PROXYCHECK_API_KEY", "")),
		GeoFallbackURL:  getenv("GEO_FALLBACK_BASE_URL", "https://ipapi.co"),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "clickpipe"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME_MINUTES", 60),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_MINUTES", 10),
	}

	return cfg
}

// IsProduction reports whether the service runs in production mode. It gates
// error-message verbosity and the private-address fallback substitution.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeScorer(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RiskScorerWeighted:
		return RiskScorerWeighted
	default:
		return RiskScorerProvider
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
