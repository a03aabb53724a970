// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage paths, link settings, snapshot TTLs,
// rate limiting, and observability.
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

// RedisConfig selects and configures the snapshot cache KV backend.
// When Enabled is false the service falls back to the in-process store,
// which is fine for development but not for multi-instance deployments.
type RedisConfig struct {
	Enabled  bool   // REDIS_ENABLED
	Addr     string // REDIS_ADDR (host:port)
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// LinksConfig carries the ambient short-link settings: deep-link scheme,
// domains, store listings, and code allocation bounds. Injected into the
// link services at construction, never read from globals.
type LinksConfig struct {
	Scheme         string // LINK_SCHEME, native deep-link scheme (no "://")
	WebDomain      string // LINK_WEB_DOMAIN, web equivalents + generic fallback
	ShortDomain    string // LINK_SHORT_DOMAIN, host serving /l/{code}
	AppStoreURL    string // LINK_APP_STORE_URL, iOS listing
	PlayStoreURL   string // LINK_PLAY_STORE_URL, Android listing
	CodeLength     int    // LINK_CODE_LENGTH (default 6)
	CodeMaxRetries int    // LINK_CODE_MAX_RETRIES (default 5)
}

// SnapshotConfig carries snapshot cache TTLs and the event buffer size.
// Each domain defaults to the shared default TTL (24h).
type SnapshotConfig struct {
	DefaultTTL    time.Duration // SNAPSHOT_TTL (default 24h)
	ProductsTTL   time.Duration // SNAPSHOT_TTL_PRODUCTS (0 = default)
	CategoriesTTL time.Duration // SNAPSHOT_TTL_CATEGORIES (0 = default)
	ProfileTTL    time.Duration // SNAPSHOT_TTL_PROFILE (0 = default)
	StoresTTL     time.Duration // SNAPSHOT_TTL_STORES (0 = default)
	EventBuffer   int           // EVENT_BUFFER, background writer capacity
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-commerce-edge")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
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
	DBPath      string // SQLite path
	FixturePath string // optional catalog/identity seed file (dev/demo)

	// Domain
	Redis     RedisConfig
	Links     LinksConfig
	Snapshots SnapshotConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
		DBPath:      getenv("DB_PATH", "edge.db"),
		FixturePath: getenv("FIXTURE_PATH", ""),

		// Domain
		Redis: RedisConfig{
			Enabled:  getbool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Links: LinksConfig{
			Scheme:         getenv("LINK_SCHEME", "shopapp"),
			WebDomain:      getenv("LINK_WEB_DOMAIN", "shop.example.com"),
			ShortDomain:    getenv("LINK_SHORT_DOMAIN", "sho.px"),
			AppStoreURL:    getenv("LINK_APP_STORE_URL", "https://apps.apple.com/app/id000000000"),
			PlayStoreURL:   getenv("LINK_PLAY_STORE_URL", "https://play.google.com/store/apps/details?id=com.example.shop"),
			CodeLength:     getint("LINK_CODE_LENGTH", 6),
			CodeMaxRetries: getint("LINK_CODE_MAX_RETRIES", 5),
		},
		Snapshots: SnapshotConfig{
			DefaultTTL:    getdur("SNAPSHOT_TTL", 24*time.Hour),
			ProductsTTL:   getdur("SNAPSHOT_TTL_PRODUCTS", 0),
			CategoriesTTL: getdur("SNAPSHOT_TTL_CATEGORIES", 0),
			ProfileTTL:    getdur("SNAPSHOT_TTL_PROFILE", 0),
			StoresTTL:     getdur("SNAPSHOT_TTL_STORES", 0),
			EventBuffer:   getint("EVENT_BUFFER", 1024),
		},

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

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-commerce-edge"),
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
	if strings.TrimSpace(cfg.Links.Scheme) == "" || strings.Contains(cfg.Links.Scheme, "://") {
		return cfg, errors.New("LINK_SCHEME must be a bare scheme name")
	}
	if strings.TrimSpace(cfg.Links.WebDomain) == "" {
		return cfg, errors.New("LINK_WEB_DOMAIN must not be empty")
	}
	if strings.TrimSpace(cfg.Links.ShortDomain) == "" {
		return cfg, errors.New("LINK_SHORT_DOMAIN must not be empty")
	}
	if cfg.Links.CodeLength < 4 || cfg.Links.CodeLength > 32 {
		return cfg, errors.New("LINK_CODE_LENGTH must be between 4 and 32")
	}
	if cfg.Links.CodeMaxRetries < 1 {
		return cfg, errors.New("LINK_CODE_MAX_RETRIES must be >= 1")
	}
	if cfg.Snapshots.DefaultTTL <= 0 {
		return cfg, errors.New("SNAPSHOT_TTL must be > 0")
	}
	if cfg.Snapshots.EventBuffer < 1 {
		return cfg, errors.New("EVENT_BUFFER must be >= 1")
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
	// if cfg.APIBasePath == "" || cfg.APIBasePath[0] != '/' {
	// 	return cfg, errors.New("API_BASE_PATH must start with '/'")
	// }

	return cfg, nil
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
