package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port             string
	Env              string
	CORSAllowOrigins []string

	UpstreamBaseURL string
	UpstreamToken   string
	UpstreamTimeout time.Duration
	UpstreamRPS     float64
	UpstreamBurst   int

	IngestPollInterval   time.Duration
	AnalysisPollInterval time.Duration
	IngestPollDeadline   time.Duration
	AnalysisPollDeadline time.Duration
	StillWorkingTicks    int

	SessionTTL     time.Duration
	MaxUploadBytes int64

	SubmitPerMinute float64
	ReadPerSecond   float64

	LogLevel  string
	LogPretty bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")), "/")

	if env == "production" && baseURL == "" {
		log.Printf("UPSTREAM_BASE_URL is required in production")
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		CORSAllowOrigins: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

		UpstreamBaseURL: baseURL,
		UpstreamToken:   strings.TrimSpace(os.Getenv("UPSTREAM_TOKEN")),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamRPS:     getFloat("UPSTREAM_RPS", 10),
		UpstreamBurst:   getInt("UPSTREAM_BURST", 5),

		IngestPollInterval:   getDuration("INGEST_POLL_INTERVAL", 2*time.Second),
		AnalysisPollInterval: getDuration("ANALYSIS_POLL_INTERVAL", 3*time.Second),
		IngestPollDeadline:   getDuration("INGEST_POLL_DEADLINE", 15*time.Minute),
		AnalysisPollDeadline: getDuration("ANALYSIS_POLL_DEADLINE", 10*time.Minute),
		StillWorkingTicks:    getInt("STILL_WORKING_TICKS", 20),

		SessionTTL:     getDuration("SESSION_TTL", 30*time.Minute),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),

		SubmitPerMinute: getFloat("RATE_SUBMIT_PER_MINUTE", 12),
		ReadPerSecond:   getFloat("RATE_READ_PER_SECOND", 5),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", env == "dev" || env == "local"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return parsed
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return parsed
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return parsed
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
