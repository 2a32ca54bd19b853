package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	Env             string

	// External anonymization service (Presidio-based).
	AnonymizerURL      string
	AnonymizerAPIKey   string
	AnonymizerLanguage string

	// AI scoring.
	AnthropicAPIKey string
	MatchModel      string

	// Licensing backend used to resolve installation plans.
	LicensingBaseURL   string
	LicensingDevID     string
	LicensingProductID string
	LicensingSecretKey string
	LicenseCacheTTL    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "")),
		DatabaseURL:        dbURL,
		Env:                env,
		AnonymizerURL:      getEnv("ANONYMIZER_URL", "http://localhost:8000"),
		AnonymizerAPIKey:   getEnv("ANONYMIZER_API_KEY", ""),
		AnonymizerLanguage: getEnv("ANONYMIZER_LANGUAGE", "de"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		MatchModel:         getEnv("MATCH_MODEL", "claude-haiku-4-5-20251001"),
		LicensingBaseURL:   getEnv("LICENSING_BASE_URL", "https://api.freemius.com/v1"),
		LicensingDevID:     getEnv("LICENSING_DEV_ID", ""),
		LicensingProductID: getEnv("LICENSING_PRODUCT_ID", ""),
		LicensingSecretKey: getEnv("LICENSING_SECRET_KEY", ""),
		LicenseCacheTTL:    getEnvDuration("LICENSE_CACHE_TTL", time.Hour),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
