package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	TimeZone    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Identity      IdentityConfig
	Usage         UsageConfig
	Commerce      CommerceConfig
	Storefront    StorefrontConfig
	Widget        WidgetBootstrapConfig
	Report        ReportConfig
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64

	SlowQueryThreshold time.Duration
}

// RateLimitConfig throttles tool calls per visitor.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ToolCallRate           float64
	ToolCallBurst          int
	ToolCallLocalPerMinute int
	RetentionLockTTLSecond int
}

type IdentityConfig struct {
	Scheme        string
	UserHeader    string
	SegmentHeader string
	CountryHeader string
}

type UsageConfig struct {
	RetentionDays        int
	SweepIntervalMinutes int
}

type CommerceConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

type StorefrontConfig struct {
	ProductPath        string
	CurrencySymbol     string
	CORSAllowedOrigins []string
}

type WidgetBootstrapConfig struct {
	ConfigName     string
	ConfigPath     string
	DefaultAgentID string
}

// ReportConfig pushes daily usage totals to an external metrics store.
// An empty exporter disables it.
type ReportConfig struct {
	Exporter        string
	Endpoint        string
	AuthToken       string
	IntervalMinutes int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "voiceassist"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		TimeZone:          getenv("APP_TIMEZONE", "UTC"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "voiceassist"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "voiceassist.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Observability: ObservabilityConfig{
			LogLevel:           strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:          strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:        getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:       strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
			OtelProtocol:       strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			OtelSamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			SlowQueryThreshold: getenvDuration("DATABASE_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			Enabled:                getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:              strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:          getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:                getenvInt("RATE_LIMIT_REDIS_DB", 0),
			ToolCallRate:           getenvFloat("TOOL_CALL_RATE", 2),
			ToolCallBurst:          getenvInt("TOOL_CALL_BURST", 20),
			ToolCallLocalPerMinute: getenvInt("TOOL_CALL_LOCAL_PER_MINUTE", 120),
			RetentionLockTTLSecond: getenvInt("RETENTION_LOCK_TTL_SECONDS", 300),
		},
		Identity: IdentityConfig{
			Scheme:        strings.ToLower(getenv("IDENTITY_SCHEME", "hex")),
			UserHeader:    getenv("IDENTITY_USER_HEADER", "X-Authenticated-User"),
			SegmentHeader: getenv("IDENTITY_SEGMENT_HEADER", "X-Customer-Segment"),
			CountryHeader: getenv("IDENTITY_COUNTRY_HEADER", "CF-IPCountry"),
		},
		Usage: UsageConfig{
			RetentionDays:        getenvInt("USAGE_RETENTION_DAYS", 30),
			SweepIntervalMinutes: getenvInt("USAGE_SWEEP_INTERVAL_MINUTES", 360),
		},
		Commerce: CommerceConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(getenv("COMMERCE_ENGINE_URL", "")), "/"),
			Token:          strings.TrimSpace(getenv("COMMERCE_ENGINE_TOKEN", "")),
			TimeoutSeconds: getenvInt("COMMERCE_ENGINE_TIMEOUT_SECONDS", 10),
		},
		Storefront: StorefrontConfig{
			ProductPath:        strings.TrimRight(getenv("SHOP_PRODUCT_PATH", "/shop/product"), "/"),
			CurrencySymbol:     getenv("CURRENCY_SYMBOL", "$"),
			CORSAllowedOrigins: getenvList("CORS_ALLOWED_ORIGINS"),
		},
		Widget: WidgetBootstrapConfig{
			ConfigName:     getenv("WIDGET_CONFIG_NAME", "widget"),
			ConfigPath:     strings.TrimSpace(getenv("WIDGET_CONFIG_PATH", "")),
			DefaultAgentID: strings.TrimSpace(getenv("WIDGET_DEFAULT_AGENT_ID", "")),
		},
		Report: ReportConfig{
			Exporter:        strings.ToLower(strings.TrimSpace(getenv("USAGE_REPORT_EXPORTER", ""))),
			Endpoint:        strings.TrimSpace(getenv("USAGE_REPORT_ENDPOINT", "")),
			AuthToken:       strings.TrimSpace(getenv("USAGE_REPORT_AUTH_TOKEN", "")),
			IntervalMinutes: getenvInt("USAGE_REPORT_INTERVAL_MINUTES", 30),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
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

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	parts := strings.Split(os.Getenv(key), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
