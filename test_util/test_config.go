package testutil

import (
	"path/filepath"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/ledger"
)

// TestConfig returns a ledger config backed by a sqlite file in dir, or by
// memory when dir is empty.
func TestConfig(dir string) *ledger.Config {
	databasePath := ledger.MemoryDatabase
	if dir != "" {
		databasePath = filepath.Join(dir, "ledger.sqlite")
	}
	return &ledger.Config{
		Port:               0,
		DatabasePath:       databasePath,
		ProgramID:          kylan.DefaultProgramID,
		SubscriptionBuffer: ledger.DefaultSubscriptionBuffer,
	}
}
