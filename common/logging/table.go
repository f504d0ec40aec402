package logging

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type accessStatsContextKey string

const accessStatsKey = accessStatsContextKey("accessStats")

type accessStats struct {
	reads  int
	writes int
}

type accessTable struct {
	mu    sync.Mutex
	kinds map[string]*accessStats
}

// InitTable returns a context that collects account access counts for one submission.
func InitTable(ctx context.Context) context.Context {
	return context.WithValue(ctx, accessStatsKey, &accessTable{kinds: make(map[string]*accessStats)})
}

func observe(ctx context.Context, kind string, write bool) {
	table, ok := ctx.Value(accessStatsKey).(*accessTable)
	if !ok {
		return
	}
	table.mu.Lock()
	defer table.mu.Unlock()

	stats, exists := table.kinds[kind]
	if !exists {
		stats = new(accessStats)
		table.kinds[kind] = stats
	}
	if write {
		stats.writes++
	} else {
		stats.reads++
	}
}

// ObserveRead counts one read of an account of the given kind.
func ObserveRead(ctx context.Context, kind string) { observe(ctx, kind, false) }

// ObserveWrite counts one write of an account of the given kind.
func ObserveWrite(ctx context.Context, kind string) { observe(ctx, kind, true) }

// LogTable emits one line summarising the accesses collected in ctx.
func LogTable(ctx context.Context, duration time.Duration, attrs ...slog.Attr) {
	table, ok := ctx.Value(accessStatsKey).(*accessTable)
	if !ok {
		return
	}
	table.mu.Lock()
	defer table.mu.Unlock()

	kinds := make([]string, 0, len(table.kinds))
	for kind := range table.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	all := make([]slog.Attr, 0, 2*len(kinds)+4+len(attrs))
	all = append(all, slog.String("_table", "ledger-submissions"), slog.Float64("duration", duration.Seconds()))
	totalReads, totalWrites := 0, 0
	for _, kind := range kinds {
		stats := table.kinds[kind]
		all = append(all,
			slog.Int("accounts."+kind+".reads", stats.reads),
			slog.Int("accounts."+kind+".writes", stats.writes),
		)
		totalReads += stats.reads
		totalWrites += stats.writes
	}
	all = append(all, slog.Int("accounts.reads", totalReads), slog.Int("accounts.writes", totalWrites))
	all = append(all, attrs...)

	GetLoggerFromContext(ctx).LogAttrs(context.Background(), slog.LevelInfo, "", all...)
}
