package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port                      string        `mapstructure:"PORT"`
	Env                       string        `mapstructure:"ENV"`
	StoreBackend              string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL               string        `mapstructure:"DATABASE_URL"`
	DBMaxConns                int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns                int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema                  string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir             string        `mapstructure:"MIGRATIONS_DIR"`
	LockTimeout               time.Duration `mapstructure:"LOCK_TIMEOUT"`
	RequestTimeout            time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RedisURL                  string        `mapstructure:"REDIS_URL"`
	UnitGateTTL               time.Duration `mapstructure:"UNIT_GATE_TTL"`
	DefaultBloodBankID        string        `mapstructure:"DEFAULT_BLOOD_BANK_ID"`
	DefaultOrganBankID        string        `mapstructure:"DEFAULT_ORGAN_BANK_ID"`
	CriticalPriorityThreshold int           `mapstructure:"CRITICAL_PRIORITY_THRESHOLD"`
	CORSOrigins               []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DB_SCHEMA", "MIGRATIONS_DIR", "LOCK_TIMEOUT", "REQUEST_TIMEOUT", "REDIS_URL",
	"UNIT_GATE_TTL", "DEFAULT_BLOOD_BANK_ID", "DEFAULT_ORGAN_BANK_ID",
	"CRITICAL_PRIORITY_THRESHOLD", "CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("LOCK_TIMEOUT", "5s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("UNIT_GATE_TTL", "10s")
	v.SetDefault("CRITICAL_PRIORITY_THRESHOLD", 60)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) UsesPostgres() bool {
	return c.StoreBackend == BackendPostgres
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}

	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", c.LockTimeout)
	}
	if c.RedisURL != "" && c.UnitGateTTL <= 0 {
		return fmt.Errorf("UNIT_GATE_TTL must be positive when REDIS_URL is set")
	}
	if c.CriticalPriorityThreshold < 1 || c.CriticalPriorityThreshold > 100 {
		return fmt.Errorf("CRITICAL_PRIORITY_THRESHOLD must be within [1,100], got %d", c.CriticalPriorityThreshold)
	}
	if _, err := parseOptionalUUID(c.DefaultBloodBankID); err != nil {
		return fmt.Errorf("DEFAULT_BLOOD_BANK_ID: %w", err)
	}
	if _, err := parseOptionalUUID(c.DefaultOrganBankID); err != nil {
		return fmt.Errorf("DEFAULT_ORGAN_BANK_ID: %w", err)
	}
	return nil
}

// DefaultBloodBank returns the configured blood bank used when a request
// names none. The bool is false when no default is configured.
func (c *Config) DefaultBloodBank() (uuid.UUID, bool) {
	id, _ := parseOptionalUUID(c.DefaultBloodBankID)
	return id, id != uuid.Nil
}

func (c *Config) DefaultOrganBank() (uuid.UUID, bool) {
	id, _ := parseOptionalUUID(c.DefaultOrganBankID)
	return id, id != uuid.Nil
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
