// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, the advisory
// provider, analytics policy constants, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-crm-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Cache backends for advisory answers.
const (
	CacheMemory = "memory"
	CacheDB     = "db"
	CacheRedis  = "redis"
)

// AIConfig defines the advisory provider, its answer cache, and its gate.
type AIConfig struct {
	BaseURL     string        // AI_BASE_URL (OpenAI-compatible)
	APIKey      string        // AI_API_KEY; empty disables the provider
	Model       string        // AI_MODEL
	MaxTokens   int           // AI_MAX_TOKENS
	Temperature float64       // AI_TEMPERATURE in [0..2]
	Timeout     time.Duration // AI_TIMEOUT per provider call
	Locale      string        // AI_LOCALE, BCP 47 tag for number formatting

	CacheBackend string        // AI_CACHE_BACKEND: memory|db|redis
	CacheTTL     time.Duration // AI_CACHE_TTL

	RateLimit  int           // AI_RATE_LIMIT requests per window per identity
	RateWindow time.Duration // AI_RATE_WINDOW

	KnowledgeDir      string  // KNOWLEDGE_DIR; empty disables retrieval
	KnowledgeTopK     int     // KNOWLEDGE_TOP_K
	KnowledgeMinScore float64 // KNOWLEDGE_MIN_SCORE in [0..1]
}

// RedisConfig points at the shared advisory cache.
type RedisConfig struct {
	Addr     string // REDIS_ADDR
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// AnalyticsConfig carries the tunable policy constants.
type AnalyticsConfig struct {
	ChurnNoHistoryScore     float64       // CHURN_NO_HISTORY_SCORE
	ChurnRecencyDays        float64       // CHURN_RECENCY_DAYS
	ChurnFrequencyPurchases float64       // CHURN_FREQUENCY_PURCHASES
	LoyaltyValueScale       float64       // LOYALTY_VALUE_SCALE
	AlertChurnThreshold     float64       // ALERT_CHURN_THRESHOLD
	AlertSalesWindow        time.Duration // ALERT_SALES_WINDOW
	AlertSalesMin           int           // ALERT_SALES_MIN
	AlertAcquisitionWindow  time.Duration // ALERT_ACQUISITION_WINDOW
	SalesTimezone           string        // SALES_TIMEZONE (IANA name)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Advisory
	AI    AIConfig
	Redis RedisConfig

	// Analytics policy
	Analytics AnalyticsConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "crm.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Advisory
		AI: AIConfig{
			BaseURL:           getenv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:            getenv("AI_API_KEY", ""),
			Model:             getenv("AI_MODEL", "gpt-3.5-turbo"),
			MaxTokens:         getint("AI_MAX_TOKENS", 500),
			Temperature:       getfloat("AI_TEMPERATURE", 0.7),
			Timeout:           getdur("AI_TIMEOUT", 30*time.Second),
			Locale:            getenv("AI_LOCALE", "en"),
			CacheBackend:      strings.ToLower(getenv("AI_CACHE_BACKEND", CacheMemory)),
			CacheTTL:          getdur("AI_CACHE_TTL", 300*time.Second),
			RateLimit:         getint("AI_RATE_LIMIT", 60),
			RateWindow:        getdur("AI_RATE_WINDOW", 60*time.Second),
			KnowledgeDir:      getenv("KNOWLEDGE_DIR", ""),
			KnowledgeTopK:     getint("KNOWLEDGE_TOP_K", 3),
			KnowledgeMinScore: getfloat("KNOWLEDGE_MIN_SCORE", 0.1),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},

		// Analytics policy
		Analytics: AnalyticsConfig{
			ChurnNoHistoryScore:     getfloat("CHURN_NO_HISTORY_SCORE", 0.8),
			ChurnRecencyDays:        getfloat("CHURN_RECENCY_DAYS", 365),
			ChurnFrequencyPurchases: getfloat("CHURN_FREQUENCY_PURCHASES", 50),
			LoyaltyValueScale:       getfloat("LOYALTY_VALUE_SCALE", 10000),
			AlertChurnThreshold:     getfloat("ALERT_CHURN_THRESHOLD", 0.7),
			AlertSalesWindow:        getdur("ALERT_SALES_WINDOW", 7*24*time.Hour),
			AlertSalesMin:           getint("ALERT_SALES_MIN", 5),
			AlertAcquisitionWindow:  getdur("ALERT_ACQUISITION_WINDOW", 30*24*time.Hour),
			SalesTimezone:           getenv("SALES_TIMEZONE", "UTC"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-crm-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if err := validateAI(cfg); err != nil {
		return cfg, err
	}
	if err := validateAnalytics(cfg.Analytics); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validateAI(cfg Config) error {
	ai := cfg.AI
	switch ai.CacheBackend {
	case CacheMemory, CacheDB:
	case CacheRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return errors.New("REDIS_ADDR is required when AI_CACHE_BACKEND=redis")
		}
	default:
		return errors.New("AI_CACHE_BACKEND must be one of: memory, db, redis")
	}
	if ai.CacheTTL <= 0 {
		return errors.New("AI_CACHE_TTL must be > 0")
	}
	if ai.RateLimit < 1 {
		return errors.New("AI_RATE_LIMIT must be >= 1")
	}
	if ai.RateWindow <= 0 {
		return errors.New("AI_RATE_WINDOW must be > 0")
	}
	if ai.Timeout <= 0 {
		return errors.New("AI_TIMEOUT must be > 0")
	}
	if ai.MaxTokens < 1 {
		return errors.New("AI_MAX_TOKENS must be >= 1")
	}
	if ai.Temperature < 0 || ai.Temperature > 2 {
		return errors.New("AI_TEMPERATURE must be in [0,2]")
	}
	if ai.KnowledgeMinScore < 0 || ai.KnowledgeMinScore > 1 {
		return errors.New("KNOWLEDGE_MIN_SCORE must be in [0,1]")
	}
	if cfg.Redis.DB < 0 {
		return errors.New("REDIS_DB must be >= 0")
	}
	return nil
}

func validateAnalytics(a AnalyticsConfig) error {
	if a.ChurnNoHistoryScore < 0 || a.ChurnNoHistoryScore > 1 {
		return errors.New("CHURN_NO_HISTORY_SCORE must be in [0,1]")
	}
	if a.ChurnRecencyDays <= 0 || a.ChurnFrequencyPurchases <= 0 {
		return errors.New("CHURN_RECENCY_DAYS and CHURN_FREQUENCY_PURCHASES must be > 0")
	}
	if a.LoyaltyValueScale <= 0 {
		return errors.New("LOYALTY_VALUE_SCALE must be > 0")
	}
	if a.AlertChurnThreshold < 0 || a.AlertChurnThreshold > 1 {
		return errors.New("ALERT_CHURN_THRESHOLD must be in [0,1]")
	}
	if a.AlertSalesWindow <= 0 || a.AlertAcquisitionWindow <= 0 {
		return errors.New("alert windows must be positive durations")
	}
	if a.AlertSalesMin < 0 {
		return errors.New("ALERT_SALES_MIN must be >= 0")
	}
	if _, err := time.LoadLocation(a.SalesTimezone); err != nil {
		return errors.New("SALES_TIMEZONE must be a valid IANA zone name")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
