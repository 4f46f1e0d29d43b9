package selfupdate

import (
	"context"
	"fmt"
	"os"
	"time"

	domain "github.com/shercan/miapp/internal/domain/update"
	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/repository/marker"
	"github.com/shercan/miapp/internal/service/process"
)

// launchAttempts is how many times a relaunch is tried.
const launchAttempts = 2

// SwapRequest describes one swap.
type SwapRequest struct {
	// Paths locate the live, staged, backup and marker files.
	Paths Paths
	// Args are passed to the relaunched binary (without argv[0]).
	Args []string
	// FromVersion and ToVersion are recorded in the swap record.
	FromVersion string
	ToVersion   string
}

// Swapper installs the staged binary and hands control to it.
type Swapper interface {
	Apply(ctx context.Context, req SwapRequest) (Outcome, error)
}

// NewSwapper returns the strategy matching the platform capability.
func NewSwapper(c Capability, launcher process.Launcher) Swapper {
	if c.RenameOpenExecutable {
		return NewRenameSwapper(launcher)
	}

	return NewHelperSwapper(launcher)
}

// RenameSwapper renames the live binary away, moves the staged one into place
// and starts it.
type RenameSwapper struct {
	launcher process.Launcher
	rename   func(oldpath, newpath string) error
	now      func() time.Time
	pid      int
}

// NewRenameSwapper creates the in-place strategy.
func NewRenameSwapper(launcher process.Launcher) *RenameSwapper {
	return &RenameSwapper{
		launcher: launcher,
		rename:   os.Rename,
		now:      time.Now,
		pid:      os.Getpid(),
	}
}

// Apply runs marker -> backup -> install -> launch. Failing before the backup
// rename keeps the old version running; failing after it is fatal and nothing
// is rolled back.
func (s *RenameSwapper) Apply(ctx context.Context, req SwapRequest) (Outcome, error) {
	ctx = logger.WithName(ctx, "swapper")
	markers := marker.NewFileRepository(req.Paths.Marker)

	state := &domain.State{
		Phase:       domain.PhaseMarked,
		StartedAt:   s.now().UTC(),
		FromVersion: req.FromVersion,
		ToVersion:   req.ToVersion,
		PID:         s.pid,
	}
	saveState(ctx, markers, state)

	// A backup that survived the last cleanup would block the rename on Windows.
	_ = os.Remove(req.Paths.Backup)

	if err := s.rename(req.Paths.Executable, req.Paths.Backup); err != nil {
		// The record stays behind on purpose; the next startup clears it.
		return ContinuedOldVersion, &SwapError{
			Phase: domain.PhaseMarked,
			Err:   fmt.Errorf("%w: back up %s: %w", ErrFilesystem, req.Paths.Executable, err),
		}
	}

	state = state.Advance(domain.PhaseBackedUp)
	saveState(ctx, markers, state)

	if err := s.rename(req.Paths.Staged, req.Paths.Executable); err != nil {
		return FatalSwapFailure, &SwapError{
			Phase: domain.PhaseBackedUp,
			Err:   fmt.Errorf("%w: install %s: %w", ErrFilesystem, req.Paths.Executable, err),
		}
	}

	state = state.Advance(domain.PhaseInstalled)
	saveState(ctx, markers, state)

	logger.InfoKV(ctx, "New binary installed", "path", req.Paths.Executable, "version", req.ToVersion)

	if err := launch(ctx, s.launcher, req.Paths.Executable, req.Args); err != nil {
		return FatalSwapFailure, &SwapError{Phase: domain.PhaseInstalled, Err: err}
	}

	if err := markers.Remove(ctx); err != nil {
		logger.WarnKV(ctx, "Unable to remove swap record", "error", err)
	}

	return TerminatedForNewVersion, nil
}

// launch starts path, retrying once.
func launch(ctx context.Context, launcher process.Launcher, path string, args []string) error {
	var err error

	for attempt := 1; attempt <= launchAttempts; attempt++ {
		if err = launcher.Start(path, args); err == nil {
			logger.InfoKV(ctx, "Relaunched", "path", path, "attempt", attempt)
			return nil
		}

		logger.WarnKV(ctx, "Relaunch attempt failed", "path", path, "attempt", attempt, "error", err)
	}

	return fmt.Errorf("%w: %s: %w", ErrRelaunch, path, err)
}

// saveState writes the swap record. The record is informational, so failures
// are logged only.
func saveState(ctx context.Context, markers marker.Repository, state *domain.State) {
	if err := markers.Save(ctx, state); err != nil {
		logger.WarnKV(ctx, "Unable to write swap record", "phase", state.Phase, "error", err)
	}
}
