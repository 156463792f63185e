package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Realtime RealtimeConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string // CIDR ranges allowed to set forwarded-IP headers
}

type AuthConfig struct {
	JWTSecret            string
	AccessTokenExpiry    time.Duration
	RefreshTokenExpiry   time.Duration
	CleanupInterval      time.Duration
	TimingDelayBaseMs    int  // Minimum login processing time
	TimingDelayRandomMs  int  // Jitter added on top of the base delay
	TimingDelayOnSuccess bool // Apply the delay to successful logins too
}

type SecurityConfig struct {
	AttemptWindow    time.Duration // Sliding window for counting failed logins
	MaxFailedLogins  int           // Failures inside the window before lockout
	LockoutDuration  time.Duration
	AttemptRetention time.Duration // How long attempt rows are kept before purge
}

type RealtimeConfig struct {
	LivenessInterval time.Duration // Ping sweep period for idle connection detection
	WriteTimeout     time.Duration
	EventBufferSize  int // Capacity of the registry event channel
}

type EmailConfig struct {
	Region         string
	FromAddress    string
	SecurityAlerts string // Recipient for lockout and suspicious activity alerts
	Enabled        bool
}

// Load reads configuration from the environment, after merging in a
// .env file when one exists. Malformed numeric or duration values fall
// back to their defaults; only missing required values and a weak JWT
// secret are hard errors.
func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := envString("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := envString("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              envString("DB_HOST", "localhost"),
			Port:              envInt("DB_PORT", 5432),
			User:              envString("DB_USER", "postgres"),
			Password:          envString("DB_PASSWORD", ""),
			Name:              envString("DB_NAME", "ishaazi"),
			SSLMode:           envString("DB_SSLMODE", "disable"),
			MaxConns:          int32(envInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(envInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   envDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   envDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: envDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			CacheTTL: envDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Server: ServerConfig{
			Port:           envString("PORT", "8080"),
			Env:            env,
			LogLevel:       envString("LOG_LEVEL", "info"),
			AllowedOrigins: allowedOrigins(env),
			TrustedProxies: splitCommaList(envString("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			AccessTokenExpiry:    envDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry:   envDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			CleanupInterval:      envDuration("TOKEN_CLEANUP_INTERVAL", 1*time.Hour),
			TimingDelayBaseMs:    envInt("LOGIN_TIMING_BASE_MS", 100),
			TimingDelayRandomMs:  envInt("LOGIN_TIMING_RANDOM_MS", 50),
			TimingDelayOnSuccess: envBool("LOGIN_TIMING_ON_SUCCESS", true),
		},
		Security: SecurityConfig{
			AttemptWindow:    envDuration("LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
			MaxFailedLogins:  envInt("MAX_FAILED_LOGINS", 5),
			LockoutDuration:  envDuration("ACCOUNT_LOCKOUT_DURATION", 30*time.Minute),
			AttemptRetention: envDuration("LOGIN_ATTEMPT_RETENTION", 24*time.Hour),
		},
		Realtime: RealtimeConfig{
			LivenessInterval: envDuration("WS_LIVENESS_INTERVAL", 30*time.Second),
			WriteTimeout:     envDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			EventBufferSize:  envInt("WS_EVENT_BUFFER_SIZE", 256),
		},
		Email: EmailConfig{
			Region:         envString("AWS_SES_REGION", "us-east-1"),
			FromAddress:    envString("EMAIL_FROM_ADDRESS", "noreply@ishaazilivestock.com"),
			SecurityAlerts: envString("SECURITY_ALERT_RECIPIENT", ""),
			Enabled:        envBool("EMAIL_ENABLED", false),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}
	if cfg.Security.MaxFailedLogins < 1 {
		return nil, fmt.Errorf("MAX_FAILED_LOGINS must be at least 1")
	}

	return cfg, nil
}

// validateJWTSecret rejects secrets too short to resist brute force
// and a handful of placeholder values that show up in copied .env
// files. Production demands a longer secret than development.
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}
	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s (got %d)",
			minLength, env, len(secret))
	}

	switch strings.ToLower(secret) {
	case "secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example":
		return fmt.Errorf("JWT_SECRET cannot be a common weak value")
	}

	return nil
}

// DSN renders the libpq keyword form, which both pgx and lib/pq accept.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitCommaList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// allowedOrigins resolves the CORS allowlist. Production reads it from
// the environment; development admits the usual local dev servers.
func allowedOrigins(env string) []string {
	if env == "production" {
		return splitCommaList(envString("ALLOWED_ORIGINS", ""))
	}
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
