package selfupdate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/shercan/miapp/internal/domain/update"
	"github.com/shercan/miapp/internal/repository/marker"
)

func TestCleanupStale_Idempotent(t *testing.T) {
	t.Parallel()

	paths := testPaths(t)
	writeFile(t, paths.Executable, "current")

	CleanupStale(context.Background(), paths)
	CleanupStale(context.Background(), paths)

	require.Equal(t, "current", readFile(t, paths.Executable))
	requireMissing(t, paths.Backup)
	requireMissing(t, paths.Marker)
}

func TestCleanupStale_AfterCrash(t *testing.T) {
	t.Parallel()

	paths := testPaths(t)
	writeFile(t, paths.Executable, "new version")
	writeFile(t, paths.Backup, "previous version")
	writeFile(t, paths.Staged, "staged")
	require.NoError(t, marker.NewFileRepository(paths.Marker).Save(context.Background(), &domain.State{
		Phase:     domain.PhaseInstalled,
		StartedAt: time.Now(),
		ToVersion: "v2.0.0",
	}))

	CleanupStale(context.Background(), paths)

	requireMissing(t, paths.Backup)
	requireMissing(t, paths.Marker)
	require.Equal(t, "new version", readFile(t, paths.Executable))
	require.Equal(t, "staged", readFile(t, paths.Staged))
}

func TestCleanupStale_CorruptMarker(t *testing.T) {
	t.Parallel()

	paths := testPaths(t)
	require.NoError(t, os.WriteFile(paths.Marker, []byte("\x00not yaml: ["), 0o600))

	CleanupStale(context.Background(), paths)

	requireMissing(t, paths.Marker)
}
