// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, logging, storage, the upstream completion provider, outbound mail,
// authentication, the relay pipeline and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the GORM dialect and its connection target.
type DBConfig struct {
	Driver string // sqlite|postgres|mysql
	Path   string // sqlite file path
	DSN    string // postgres/mysql DSN
}

// UpstreamConfig describes the OpenAI-compatible chat-completion provider.
type UpstreamConfig struct {
	BaseURL       string        // UPSTREAM_BASE_URL
	APIKey        string        // UPSTREAM_API_KEY (falls back to OPENROUTER_API_KEY)
	Model         string        // UPSTREAM_MODEL
	MaxTokens     int           // UPSTREAM_MAX_TOKENS
	Temperature   float64       // UPSTREAM_TEMPERATURE
	TopP          float64       // UPSTREAM_TOP_P
	Timeout       time.Duration // buffered request timeout
	StreamTimeout time.Duration // whole-stream timeout, 0 disables
	Referer       string        // optional HTTP-Referer sent to OpenRouter
	Title         string        // optional X-Title sent to OpenRouter
}

// BreakerConfig tunes the circuit breaker guarding the provider.
type BreakerConfig struct {
	MaxRequests  uint32        // half-open probe budget
	Interval     time.Duration // closed-state counter reset
	Timeout      time.Duration // open → half-open delay
	MinRequests  uint32        // requests before the failure ratio is considered
	FailureRatio float64       // trip threshold in (0,1]
}

// MailConfig holds SMTP settings for verification mail.
type MailConfig struct {
	Host     string
	Port     int
	User     string // EMAIL_USER
	Password string // EMAIL_PASS
	From     string
}

// AuthConfig holds credential hashing and session-token settings.
type AuthConfig struct {
	BcryptCost int
	JWTSecret  string        // empty disables bearer tokens
	TokenTTL   time.Duration // bearer lifetime
}

// RelayConfig holds relay pipeline knobs.
type RelayConfig struct {
	MaxMessageRunes int           // 0 disables the cap
	HistoryTurns    int           // prior turns forwarded as context
	Serialize       bool          // one in-flight relay per identity
	LockTTL         time.Duration // distributed lock lease
}

// RedisConfig is used by the distributed turn lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // long enough for a streamed reply
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes
	BaseURL        string // public URL used in verification links

	// Storage
	DB DBConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Domain
	Upstream UpstreamConfig
	Breaker  BreakerConfig
	Mail     MailConfig
	Auth     AuthConfig
	Relay    RelayConfig
	Redis    RedisConfig
	Avatars  []string

	// Observability
	OTEL OTELConfig
}

// DefaultAvatars is the catalogue served when AVATARS is not set.
var DefaultAvatars = []string{
	"/avatars/avatar1.png",
	"/avatars/avatar2.png",
	"/avatars/avatar3.png",
	"/avatars/avatar4.png",
	"/avatars/avatar5.png",
	"/avatars/avatar6.png",
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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		BaseURL:        strings.TrimRight(getenv("BASE_URL", getenv("NEXT_PUBLIC_BASE_URL", "http://localhost:8080")), "/"),

		// Storage
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "app.db"),
			DSN:    getenv("DB_DSN", ""),
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

		Upstream: UpstreamConfig{
			BaseURL:       strings.TrimRight(getenv("UPSTREAM_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
			APIKey:        strings.TrimSpace(getenv("UPSTREAM_API_KEY", getenv("OPENROUTER_API_KEY", ""))),
			Model:         getenv("UPSTREAM_MODEL", "deepseek/deepseek-chat-v3-0324:free"),
			MaxTokens:     getint("UPSTREAM_MAX_TOKENS", 512),
			Temperature:   getfloat("UPSTREAM_TEMPERATURE", 0.7),
			TopP:          getfloat("UPSTREAM_TOP_P", 0.95),
			Timeout:       getdur("UPSTREAM_TIMEOUT", 60*time.Second),
			StreamTimeout: getdur("UPSTREAM_STREAM_TIMEOUT", 100*time.Second),
			Referer:       getenv("UPSTREAM_REFERER", ""),
			Title:         getenv("UPSTREAM_TITLE", ""),
		},
		Breaker: BreakerConfig{
			MaxRequests:  uint32(getint("BREAKER_MAX_REQUESTS", 1)),
			Interval:     getdur("BREAKER_INTERVAL", 30*time.Second),
			Timeout:      getdur("BREAKER_TIMEOUT", 30*time.Second),
			MinRequests:  uint32(getint("BREAKER_MIN_REQUESTS", 5)),
			FailureRatio: getfloat("BREAKER_FAILURE_RATIO", 0.6),
		},
		Mail: MailConfig{
			Host:     getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getint("SMTP_PORT", 587),
			User:     getenv("EMAIL_USER", ""),
			Password: getenv("EMAIL_PASS", ""),
			From:     getenv("EMAIL_FROM", getenv("EMAIL_USER", "")),
		},
		Auth: AuthConfig{
			BcryptCost: getint("BCRYPT_COST", 10),
			JWTSecret:  getenv("JWT_SECRET", ""),
			TokenTTL:   getdur("JWT_TTL", 24*time.Hour),
		},
		Relay: RelayConfig{
			MaxMessageRunes: getint("MAX_MESSAGE_RUNES", 4000),
			HistoryTurns:    getint("HISTORY_TURNS", 0),
			Serialize:       getbool("RELAY_SERIALIZE", true),
			LockTTL:         getdur("RELAY_LOCK_TTL", 2*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Avatars: splitCSV(getenv("AVATARS", "")),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-persian-chat"),
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
	if cfg.DB.Driver == "sqlite3" {
		cfg.DB.Driver = "sqlite"
	}
	if len(cfg.Avatars) == 0 {
		cfg.Avatars = append([]string(nil), DefaultAvatars...)
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
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres", "mysql":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN is required for postgres and mysql")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres, mysql")
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
	if !strings.HasPrefix(cfg.Upstream.BaseURL, "http://") && !strings.HasPrefix(cfg.Upstream.BaseURL, "https://") {
		return cfg, errors.New("UPSTREAM_BASE_URL must be an http(s) URL")
	}
	if strings.TrimSpace(cfg.Upstream.Model) == "" {
		return cfg, errors.New("UPSTREAM_MODEL must not be empty")
	}
	if cfg.Upstream.MaxTokens <= 0 {
		return cfg, errors.New("UPSTREAM_MAX_TOKENS must be > 0")
	}
	if cfg.Upstream.Temperature < 0 || cfg.Upstream.Temperature > 2 {
		return cfg, errors.New("UPSTREAM_TEMPERATURE must be in [0,2]")
	}
	if cfg.Upstream.TopP <= 0 || cfg.Upstream.TopP > 1 {
		return cfg, errors.New("UPSTREAM_TOP_P must be in (0,1]")
	}
	if cfg.Upstream.Timeout <= 0 || cfg.Upstream.StreamTimeout < 0 {
		return cfg, errors.New("UPSTREAM_TIMEOUT must be > 0 and UPSTREAM_STREAM_TIMEOUT >= 0")
	}
	if cfg.Breaker.FailureRatio <= 0 || cfg.Breaker.FailureRatio > 1 {
		return cfg, errors.New("BREAKER_FAILURE_RATIO must be in (0,1]")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return cfg, errors.New("BCRYPT_COST must be in [4,31]")
	}
	if cfg.Auth.JWTSecret != "" && cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if cfg.Relay.MaxMessageRunes < 0 || cfg.Relay.HistoryTurns < 0 {
		return cfg, errors.New("MAX_MESSAGE_RUNES and HISTORY_TURNS must be >= 0")
	}
	if cfg.Relay.LockTTL <= 0 {
		return cfg, errors.New("RELAY_LOCK_TTL must be > 0")
	}
	// The Redis lease is not renewed, so it must outlive the longest upstream call.
	if cfg.Relay.Serialize && cfg.Redis.Addr != "" {
		if cfg.Upstream.StreamTimeout <= 0 {
			return cfg, errors.New("UPSTREAM_STREAM_TIMEOUT must be > 0 when REDIS_ADDR is set")
		}
		if cfg.Relay.LockTTL <= cfg.Upstream.StreamTimeout || cfg.Relay.LockTTL <= cfg.Upstream.Timeout {
			return cfg, errors.New("RELAY_LOCK_TTL must exceed UPSTREAM_TIMEOUT and UPSTREAM_STREAM_TIMEOUT when REDIS_ADDR is set")
		}
	}
	if cfg.Mail.Port <= 0 {
		return cfg, errors.New("SMTP_PORT must be > 0")
	}

	return cfg, nil
}

// MailEnabled reports whether SMTP credentials are present.
func (c Config) MailEnabled() bool {
	return strings.TrimSpace(c.Mail.User) != "" && c.Mail.Password != ""
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
