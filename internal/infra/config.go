package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"stakehouse"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"stakehouse"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"stakehouse"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"16"`
	PGMinConns  int32  `env:"PG_MIN_CONNS" envDefault:"2"`

	// Redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// JWT
	JWTSecret         string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTPlayerExpiry   string `env:"JWT_PLAYER_EXPIRY" envDefault:"24h"`
	JWTGuardianExpiry string `env:"JWT_GUARDIAN_EXPIRY" envDefault:"8h"`

	// Game-module key signing
	GameKeySecret string `env:"GAME_KEY_SECRET" envDefault:"change-me-in-production"`

	// Server ports
	APIPort         int `env:"API_PORT" envDefault:"3100"`
	GameGatewayPort int `env:"GAME_GATEWAY_PORT" envDefault:"4001"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Block commitment source
	ChainRPCURL        string `env:"CHAIN_RPC_URL"`
	ChainArchiveRPCURL string `env:"CHAIN_ARCHIVE_RPC_URL"`
	ChainNativeWindow  uint64 `env:"CHAIN_NATIVE_WINDOW" envDefault:"256"`
	CommitDelay        uint64 `env:"COMMIT_DELAY" envDefault:"10"`

	// Guards
	BreakerResetTimelock string `env:"BREAKER_RESET_TIMELOCK" envDefault:"12h"`
	FlashGuardWindow     string `env:"FLASH_GUARD_WINDOW" envDefault:"1m"`
	FlashGameCeiling     int64  `env:"FLASH_GAME_CEILING" envDefault:"0"`
	FlashPlayerCeiling   int64  `env:"FLASH_PLAYER_CEILING" envDefault:"0"`
	Guardians            string `env:"GUARDIANS" envDefault:""`
	GuardianHandover     string `env:"GUARDIAN_HANDOVER_DELAY" envDefault:"72h"`

	// Registry
	RemovalGracePeriod string `env:"REMOVAL_GRACE_PERIOD" envDefault:"168h"`

	// Commit-reveal
	RevealWindow string `env:"REVEAL_WINDOW" envDefault:"10m"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
	UseMemoryStore        bool `env:"USE_MEMORY_STORE" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.GameKeySecret == "change-me-in-production" {
		return fmt.Errorf("GAME_KEY_SECRET is set to the insecure default")
	}
	if c.Guardians == "" {
		return fmt.Errorf("GUARDIANS must list at least one guardian id")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
