package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	domain "github.com/shercan/miapp/internal/domain/update"
	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/repository/marker"
	"github.com/shercan/miapp/internal/service/process"
)

// FinishCommand is the hidden subcommand the staged binary runs as a helper.
const FinishCommand = "finish-update"

const (
	// Flags understood by FinishCommand.
	FlagPID    = "pid"
	FlagTarget = "target"

	defaultExitPoll    = 200 * time.Millisecond
	defaultExitTimeout = 30 * time.Second
	defaultRenameTries = 5
	defaultRenameDelay = 500 * time.Millisecond
)

var errInvalidFinishRequest = errors.New("invalid finish-update request")

// HelperSwapper starts the staged binary as a helper that finishes the swap
// once this process has exited.
type HelperSwapper struct {
	launcher process.Launcher
	now      func() time.Time
	pid      int
}

// NewHelperSwapper creates the helper strategy.
func NewHelperSwapper(launcher process.Launcher) *HelperSwapper {
	return &HelperSwapper{
		launcher: launcher,
		now:      time.Now,
		pid:      os.Getpid(),
	}
}

// HelperArgs builds the argument list of the helper process.
func HelperArgs(pid int, target string, args []string) []string {
	out := []string{FinishCommand, "--" + FlagPID, strconv.Itoa(pid), "--" + FlagTarget, target, "--"}

	return append(out, args...)
}

// Apply writes the record and starts the helper. Nothing is renamed here, so
// a failed start leaves the old version intact.
func (s *HelperSwapper) Apply(ctx context.Context, req SwapRequest) (Outcome, error) {
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

	args := HelperArgs(s.pid, req.Paths.Executable, req.Args)
	if err := s.launcher.Start(req.Paths.Staged, args); err != nil {
		return ContinuedOldVersion, &SwapError{
			Phase: domain.PhaseMarked,
			Err:   fmt.Errorf("%w: start helper %s: %w", ErrRelaunch, req.Paths.Staged, err),
		}
	}

	saveState(ctx, markers, state.Advance(domain.PhaseHandedOff))
	logger.InfoKV(ctx, "Swap handed off to helper", "helper", req.Paths.Staged, "version", req.ToVersion)

	return TerminatedForNewVersion, nil
}

// FinishRequest is the work of a helper process.
type FinishRequest struct {
	// PID is the process that must exit before the swap.
	PID int
	// Target is the canonical executable path.
	Target string
	// Self is the helper's own path, normally Target+".new".
	Self string
	// Args are passed to the relaunched binary.
	Args []string
}

// Finisher completes a helper swap.
type Finisher struct {
	launcher    process.Launcher
	alive       process.Finder
	rename      func(oldpath, newpath string) error
	sleep       func(time.Duration)
	exitPoll    time.Duration
	exitTimeout time.Duration
	renameTries int
	renameDelay time.Duration
}

// NewFinisher creates a Finisher with production defaults.
func NewFinisher(launcher process.Launcher) *Finisher {
	return &Finisher{
		launcher:    launcher,
		alive:       process.Alive,
		rename:      os.Rename,
		sleep:       time.Sleep,
		exitPoll:    defaultExitPoll,
		exitTimeout: defaultExitTimeout,
		renameTries: defaultRenameTries,
		renameDelay: defaultRenameDelay,
	}
}

// Finish waits for the old process, swaps the files and starts Target.
func (f *Finisher) Finish(ctx context.Context, req FinishRequest) error {
	if req.PID <= 0 || req.Target == "" || req.Self == "" {
		return fmt.Errorf("%w: pid=%d target=%q self=%q", errInvalidFinishRequest, req.PID, req.Target, req.Self)
	}

	ctx = logger.WithName(ctx, "finisher")
	paths := PathsFor(req.Target)
	markers := marker.NewFileRepository(paths.Marker)

	state, err := markers.Load(ctx)
	if err != nil {
		state = &domain.State{StartedAt: time.Now().UTC(), PID: req.PID}
	}

	logger.InfoKV(ctx, "Waiting for previous process to exit", "pid", req.PID)

	if err = process.WaitExit(ctx, req.PID, f.exitPoll, f.exitTimeout, f.alive); err != nil {
		// Nothing was renamed yet; the old binary is still in place.
		return &SwapError{Phase: domain.PhaseHandedOff, Err: err}
	}

	_ = os.Remove(paths.Backup)

	if err = f.renameWithRetry(ctx, req.Target, paths.Backup); err != nil {
		return &SwapError{
			Phase: domain.PhaseHandedOff,
			Err:   fmt.Errorf("%w: back up %s: %w", ErrFilesystem, req.Target, err),
		}
	}

	state = state.Advance(domain.PhaseBackedUp)
	saveState(ctx, markers, state)

	if err = f.renameWithRetry(ctx, req.Self, req.Target); err != nil {
		return &SwapError{
			Phase: domain.PhaseBackedUp,
			Err:   fmt.Errorf("%w: install %s: %w", ErrFilesystem, req.Target, err),
		}
	}

	state = state.Advance(domain.PhaseInstalled)
	saveState(ctx, markers, state)

	if err = launch(ctx, f.launcher, req.Target, req.Args); err != nil {
		return &SwapError{Phase: domain.PhaseInstalled, Err: err}
	}

	if err = markers.Remove(ctx); err != nil {
		logger.WarnKV(ctx, "Unable to remove swap record", "error", err)
	}

	return nil
}

// renameWithRetry covers file locks that outlive the previous process briefly.
func (f *Finisher) renameWithRetry(ctx context.Context, from, to string) error {
	var err error

	for attempt := 1; attempt <= f.renameTries; attempt++ {
		if err = f.rename(from, to); err == nil {
			return nil
		}

		logger.DebugKV(ctx, "Rename failed", "from", from, "to", to, "attempt", attempt, "error", err)

		if attempt < f.renameTries {
			f.sleep(f.renameDelay)
		}
	}

	return err
}
