// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Store backends accepted by LEDGER_STORE.
const (
	StoreMemory     = "memory"
	StoreSQLite     = "sqlite"
	StoreClickHouse = "clickhouse"
)

// Nonce policies accepted by NONCE_POLICY.
const (
	NonceEnforce  = "enforce"
	NonceDisabled = "disabled"
)

// Config is shared by the ledger worker, the query API and the replay tool.
// Each process only reads the fields it needs.
type Config struct {
	Store          string `env:"LEDGER_STORE" envDefault:"sqlite"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"postertoken.db"`
	ClickHouseDB   string `env:"CLICKHOUSE_DB" envDefault:"postertoken"`
	NoncePolicy    string `env:"NONCE_POLICY" envDefault:"enforce"`
	PostStream     string `env:"POST_STREAM" envDefault:"poster:posts"`
	PostGroup      string `env:"POST_GROUP" envDefault:"ledger"`
	PostConsumer   string `env:"POST_CONSUMER" envDefault:"ledger-0"`
	AppliedChannel string `env:"APPLIED_CHANNEL" envDefault:"poster:ledger.applied"`
	AuditCron      string `env:"AUDIT_CRON" envDefault:"0 */5 * * * *"`
	AuditWorkers   int    `env:"AUDIT_WORKERS" envDefault:"8"`
	Addr           string `env:"ADDR" envDefault:":3001"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses Config from the given key/value pairs instead of the process environment.
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.NoncePolicy = strings.ToLower(strings.TrimSpace(cfg.NoncePolicy))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values and missing required settings.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreClickHouse:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q", c.Store)
	}
	switch c.NoncePolicy {
	case NonceEnforce, NonceDisabled:
	default:
		return fmt.Errorf("unknown NONCE_POLICY %q", c.NoncePolicy)
	}
	if c.PostStream == "" {
		return fmt.Errorf("POST_STREAM is required")
	}
	if c.PostGroup != "" && c.PostConsumer == "" {
		return fmt.Errorf("POST_CONSUMER is required when POST_GROUP is set")
	}
	if c.AuditWorkers < 1 {
		return fmt.Errorf("AUDIT_WORKERS must be positive")
	}
	return nil
}
