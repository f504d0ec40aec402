package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	kylan "github.com/lightsparkdev/kylan-go"
)

// MemoryDatabase selects the in-memory store.
const MemoryDatabase = ":memory:"

// Config is the configuration of a ledger node.
type Config struct {
	// Port is the gRPC listen port.
	Port uint64 `env:"KYLAN_LEDGER_PORT" envDefault:"8535"`
	// DatabasePath is a sqlite file ending in .sqlite, a postgres connection
	// string, or ":memory:".
	DatabasePath string `env:"KYLAN_DATABASE_PATH" envDefault:":memory:"`
	// ProgramID is the address the issuance program is registered at.
	ProgramID string `env:"KYLAN_PROGRAM_ID"`
	// AuditInterval is the period of the custody audit. Zero disables it.
	AuditInterval time.Duration `env:"KYLAN_AUDIT_INTERVAL" envDefault:"1m"`
	// SubscriptionBuffer is the per-subscriber change buffer.
	SubscriptionBuffer int `env:"KYLAN_SUBSCRIPTION_BUFFER" envDefault:"1024"`
	// ServerCertPath and ServerKeyPath enable TLS when both are set.
	ServerCertPath string `env:"KYLAN_SERVER_CERT"`
	ServerKeyPath  string `env:"KYLAN_SERVER_KEY"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger config: %w", err)
	}
	if config.ProgramID == "" {
		config.ProgramID = kylan.DefaultProgramID
	}
	return &config, nil
}

func (c *Config) DatabaseDriver() string {
	if c.InMemory() {
		return ""
	}
	if strings.HasSuffix(c.DatabasePath, ".sqlite") {
		return "sqlite3"
	}
	return "postgres"
}

func (c *Config) InMemory() bool {
	return c.DatabasePath == "" || c.DatabasePath == MemoryDatabase
}

func (c *Config) TLSEnabled() bool {
	return c.ServerCertPath != "" && c.ServerKeyPath != ""
}
