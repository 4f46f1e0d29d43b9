package selfupdate

import (
	"context"
	"errors"
	"os"

	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/repository/marker"
)

// CleanupStale removes the backup binary and the swap record left by a
// previous run. It never fails: removal errors are logged and ignored. The
// staged <exe>.new is kept since the next cycle overwrites it.
func CleanupStale(ctx context.Context, paths Paths) {
	ctx = logger.WithName(ctx, "recovery")

	markers := marker.NewFileRepository(paths.Marker)

	state, err := markers.Load(ctx)

	switch {
	case errors.Is(err, marker.ErrNotFound):
	case err != nil:
		logger.WarnKV(ctx, "Unreadable swap record found", "path", paths.Marker, "error", err)
	default:
		logger.InfoKV(ctx, "Interrupted swap found",
			"phase", state.Phase,
			"started_at", state.StartedAt,
			"to_version", state.ToVersion,
		)
	}

	removeQuietly(ctx, paths.Backup)

	if err = markers.Remove(ctx); err != nil {
		logger.WarnKV(ctx, "Unable to remove swap record", "path", paths.Marker, "error", err)
	}
}

func removeQuietly(ctx context.Context, path string) {
	err := os.Remove(path)

	switch {
	case err == nil:
		logger.DebugKV(ctx, "Removed stale file", "path", path)
	case errors.Is(err, os.ErrNotExist):
	default:
		logger.WarnKV(ctx, "Unable to remove stale file", "path", path, "error", err)
	}
}
