package testutil

import (
	"context"
	"log/slog"
	"os"

	"github.com/lightsparkdev/kylan-go/common/logging"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/store"
)

// TestContext returns a context with a debug logger and the store that can be
// used for testing.
func TestContext(config *ledger.Config) (context.Context, ledger.Store, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logging.Inject(context.Background(), logger)

	s, err := store.Open(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	return ctx, s, nil
}
