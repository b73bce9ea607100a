package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Session  SessionConfig
	Gate     GateConfig
	Locale   LocaleConfig
	Throttle ThrottleConfig
	LogLevel string
	// TrustedProxies lists proxy IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the connection's peer address is the client IP.
	TrustedProxies []string
	// MetricsToken, when set, must be sent in X-Metrics-Token to scrape /metrics.
	MetricsToken string
	// SeedAdmin creates a placeholder administrator in an empty in-memory
	// person store so a fresh checkout has someone to log in as.
	SeedAdmin bool
	// SeedAdminPassword is the seeded administrator's password. A random one
	// is generated and logged when empty.
	SeedAdminPassword string
}

// RedisConfig selects the Redis session store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig selects the PostgreSQL person store when URL is set.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig enables page-view publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers       []string
	PageViewTopic string
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	CookieName   string
	TTL          time.Duration
	SecureCookie bool
}

// GateConfig holds the redirect targets and the placeholder email domain used by
// the request gate.
type GateConfig struct {
	LoginURL          string
	LogoutURL         string
	HomeURL           string
	PlaceholderDomain string
}

// ThrottleConfig bounds login attempts per client IP.
type ThrottleConfig struct {
	LoginLimit  int
	LoginWindow time.Duration
}

// LocaleConfig lists supported locales; Default must be one of them.
type LocaleConfig struct {
	Default   string
	Supported []string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr: envString("WEBGATE_ADDR", ":8080"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:       envList("KAFKA_BROKERS"),
			PageViewTopic: envString("KAFKA_PAGE_VIEW_TOPIC", "webgate.page_views"),
		},
		Session: SessionConfig{
			CookieName:   envString("SESSION_COOKIE_NAME", "_webgate_session"),
			TTL:          envDuration("SESSION_TTL", 14*24*time.Hour),
			SecureCookie: os.Getenv("SESSION_SECURE_COOKIE") == "true",
		},
		Gate: GateConfig{
			LoginURL:          envString("GATE_LOGIN_URL", "/login"),
			LogoutURL:         envString("GATE_LOGOUT_URL", "/logout"),
			HomeURL:           envString("GATE_HOME_URL", "/"),
			PlaceholderDomain: envString("GATE_PLACEHOLDER_DOMAIN", "example.com"),
		},
		Locale: LocaleConfig{
			Default:   envString("DEFAULT_LOCALE", "en"),
			Supported: envListDefault("SUPPORTED_LOCALES", []string{"en", "fr", "de", "es"}),
		},
		Throttle: ThrottleConfig{
			LoginLimit:  envInt("LOGIN_THROTTLE_LIMIT", 10),
			LoginWindow: envDuration("LOGIN_THROTTLE_WINDOW", 15*time.Minute),
		},
		LogLevel:          envString("LOG_LEVEL", "info"),
		TrustedProxies:    envList("TRUSTED_PROXIES"),
		MetricsToken:      os.Getenv("METRICS_TOKEN"),
		SeedAdmin:         envString("SEED_ADMIN", "true") == "true",
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	return envListDefault(key, nil)
}

func envListDefault(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
