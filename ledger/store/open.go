package store

import (
	"context"
	"fmt"

	"github.com/lightsparkdev/kylan-go/ledger"

	_ "github.com/lib/pq"           // Register Postgres driver
	_ "github.com/mattn/go-sqlite3" // Register SQLite driver
)

// Open returns the store selected by config.
func Open(ctx context.Context, config *ledger.Config) (ledger.Store, error) {
	if config.InMemory() {
		return NewMemoryStore(), nil
	}
	dsn := config.DatabasePath
	if config.DatabaseDriver() == "sqlite3" {
		dsn = fmt.Sprintf("file:%s?_fk=1", config.DatabasePath)
	}
	return OpenSQL(ctx, config.DatabaseDriver(), dsn)
}
