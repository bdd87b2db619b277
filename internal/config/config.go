package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Identity IdentityConfig
	Alert    AlertConfig
	Risk     RiskConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	TrustedProxies  []string
	AllowedOrigins  []string
	OperatorKeyHash string
	AuditLogPath    string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
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

// StoreConfig selects the write-through backend for attempts, sessions
// and blocked addresses.
type StoreConfig struct {
	Backend  string // "file" or "postgres"
	StateDir string
}

type IdentityConfig struct {
	JWTSecret        string
	TokenExpiry      time.Duration
	SeedIdentity     string
	SeedSecret       string
	MFAIssuer        string
	MFAEncryptionKey string // hex-encoded 32 bytes for AES-256-GCM
}

type AlertConfig struct {
	Enabled   bool
	SESRegion string
	FromEmail string
	ToEmail   string
}

// RiskConfig tunes the scoring inputs that are fixed for the process
// lifetime, unlike the live-updatable SecurityConfig.
type RiskConfig struct {
	SuspiciousCIDRs  []string
	LoginDelayBase   time.Duration
	LoginDelayJitter time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			TrustedProxies:  getEnvAsList("TRUSTED_PROXIES"),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),
			OperatorKeyHash: getEnv("OPERATOR_KEY_HASH", ""),
			AuditLogPath:    getEnv("AUDIT_LOG_PATH", ""),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "warden"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "file"),
			StateDir: getEnv("STORE_STATE_DIR", "./data"),
		},
		Identity: IdentityConfig{
			JWTSecret:        jwtSecret,
			TokenExpiry:      getEnvAsDuration("IDENTITY_TOKEN_EXPIRY", 15*time.Minute),
			SeedIdentity:     getEnv("SEED_IDENTITY", ""),
			SeedSecret:       getEnv("SEED_SECRET", ""),
			MFAIssuer:        getEnv("MFA_ISSUER", "warden"),
			MFAEncryptionKey: getEnv("MFA_ENCRYPTION_KEY", ""),
		},
		Alert: AlertConfig{
			Enabled:   getEnvAsBool("ALERT_ENABLED", false),
			SESRegion: getEnv("ALERT_SES_REGION", "us-east-1"),
			FromEmail: getEnv("ALERT_FROM_EMAIL", ""),
			ToEmail:   getEnv("ALERT_TO_EMAIL", ""),
		},
		Risk: RiskConfig{
			SuspiciousCIDRs:  getEnvAsList("RISK_SUSPICIOUS_CIDRS"),
			LoginDelayBase:   getEnvAsDuration("RISK_LOGIN_DELAY_BASE", 100*time.Millisecond),
			LoginDelayJitter: getEnvAsDuration("RISK_LOGIN_DELAY_JITTER", 100*time.Millisecond),
		},
		Security: SecurityConfig{
			MaxLoginAttempts:            getEnvAsInt("SECURITY_MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:             getEnvAsDuration("SECURITY_LOCKOUT_DURATION", 30*time.Minute),
			SessionTimeout:              getEnvAsDuration("SECURITY_SESSION_TIMEOUT", 60*time.Minute),
			MaxConcurrentSessions:       getEnvAsInt("SECURITY_MAX_CONCURRENT_SESSIONS", 3),
			RequireMFA:                  getEnvAsBool("SECURITY_REQUIRE_MFA", false),
			MinPasswordLength:           getEnvAsInt("SECURITY_MIN_PASSWORD_LENGTH", 8),
			RequirePasswordComplexity:   getEnvAsBool("SECURITY_REQUIRE_PASSWORD_COMPLEXITY", true),
			SuspiciousActivityThreshold: getEnvAsInt("SECURITY_SUSPICIOUS_ACTIVITY_THRESHOLD", 3),
		},
	}

	if cfg.Store.Backend != "file" && cfg.Store.Backend != "postgres" {
		return nil, fmt.Errorf("STORE_BACKEND must be file or postgres (got %q)", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "postgres" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when STORE_BACKEND=postgres")
	}
	if cfg.Alert.Enabled && (cfg.Alert.FromEmail == "" || cfg.Alert.ToEmail == "") {
		return nil, fmt.Errorf("ALERT_FROM_EMAIL and ALERT_TO_EMAIL are required when ALERT_ENABLED=true")
	}
	if key := cfg.Identity.MFAEncryptionKey; key != "" {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be 32 hex-encoded bytes")
		}
	}
	if cfg.Security.RequireMFA && cfg.Identity.MFAEncryptionKey == "" {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required when SECURITY_REQUIRE_MFA=true")
	}
	if hash := cfg.Server.OperatorKeyHash; hash != "" {
		decoded, err := hex.DecodeString(hash)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("OPERATOR_KEY_HASH must be a 64 character hex SHA-256 digest")
		}
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// weakSecrets are values that show up in example configs and must
// never sign real tokens.
var weakSecrets = []string{
	"secret", "test", "password", "12345", "changeme",
	"admin", "root", "default", "example",
}

// validateJWTSecret rejects signing secrets that are too short for the
// environment or that sit on the weak list. Production needs 256 bits.
func validateJWTSecret(secret, env string) error {
	minLen := 16
	if env == "production" {
		minLen = 32
	}
	if len(secret) < minLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLen, env, len(secret))
	}

	for _, weak := range weakSecrets {
		if strings.EqualFold(secret, weak) {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// DSN renders the database config in libpq keyword form.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Env lookups fall back to the default when the variable is unset or,
// for typed variants, fails to parse.

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvAsInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}
