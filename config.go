package authgate

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config defines engine behavior. Build clones it; mutations after Build have
// no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	Secret     []byte
	Algorithm  string // "HS256"
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RefreshTTLExtended is the remember-me refresh window.
	RefreshTTLExtended time.Duration
}

// SessionConfig controls the Redis session store.
type SessionConfig struct {
	RedisPrefix string
}

// PasswordConfig controls bcrypt hashing.
type PasswordConfig struct {
	BcryptCost int
}

// SecurityConfig controls the opt-in login throttle.
type SecurityConfig struct {
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production-leaning defaults. The JWT secret has no
// default and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Algorithm:          "HS256",
			AccessTTL:          60 * time.Minute,
			RefreshTTL:         7 * 24 * time.Hour,
			RefreshTTLExtended: 30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "ag",
		},
		Password: PasswordConfig{
			BcryptCost: 12,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: false,
			EnableIPThrottle:    true,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

type envConfig struct {
	JWTSecret              string        `env:"AUTHGATE_JWT_SECRET"`
	JWTAlgorithm           string        `env:"AUTHGATE_JWT_ALGORITHM" envDefault:"HS256"`
	JWTIssuer              string        `env:"AUTHGATE_JWT_ISSUER"`
	AccessTTLMinutes       int           `env:"AUTHGATE_ACCESS_TTL_MINUTES" envDefault:"60"`
	RefreshTTLDays         int           `env:"AUTHGATE_REFRESH_TTL_DAYS" envDefault:"7"`
	RefreshTTLDaysExtended int           `env:"AUTHGATE_REFRESH_TTL_DAYS_EXTENDED" envDefault:"30"`
	RedisPrefix            string        `env:"AUTHGATE_REDIS_PREFIX" envDefault:"ag"`
	BcryptCost             int           `env:"AUTHGATE_BCRYPT_COST" envDefault:"12"`
	EnableLoginThrottle    bool          `env:"AUTHGATE_ENABLE_LOGIN_THROTTLE" envDefault:"false"`
	MaxLoginAttempts       int           `env:"AUTHGATE_MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LoginCooldown          time.Duration `env:"AUTHGATE_LOGIN_COOLDOWN" envDefault:"15m"`
	AuditEnabled           bool          `env:"AUTHGATE_AUDIT_ENABLED" envDefault:"false"`
	MetricsEnabled         bool          `env:"AUTHGATE_METRICS_ENABLED" envDefault:"false"`
}

// ConfigFromEnv builds a Config from AUTHGATE_* environment variables,
// falling back to [DefaultConfig] values.
func ConfigFromEnv() (Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(e.JWTSecret)
	cfg.JWT.Algorithm = e.JWTAlgorithm
	cfg.JWT.Issuer = e.JWTIssuer
	cfg.JWT.AccessTTL = time.Duration(e.AccessTTLMinutes) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(e.RefreshTTLDays) * 24 * time.Hour
	cfg.JWT.RefreshTTLExtended = time.Duration(e.RefreshTTLDaysExtended) * 24 * time.Hour
	cfg.Session.RedisPrefix = e.RedisPrefix
	cfg.Password.BcryptCost = e.BcryptCost
	cfg.Security.EnableLoginThrottle = e.EnableLoginThrottle
	cfg.Security.MaxLoginAttempts = e.MaxLoginAttempts
	cfg.Security.LoginCooldown = e.LoginCooldown
	cfg.Audit.Enabled = e.AuditEnabled
	cfg.Metrics.Enabled = e.MetricsEnabled

	return cfg, nil
}

// Validate checks internal consistency. Called by Build.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if c.JWT.Algorithm != "HS256" {
		return errors.New("JWT Algorithm must be HS256")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTLExtended < c.JWT.RefreshTTL {
		return errors.New("JWT RefreshTTLExtended must be >= RefreshTTL")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be > 0 when login throttle is enabled")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("LoginCooldown must be > 0 when login throttle is enabled")
		}
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
