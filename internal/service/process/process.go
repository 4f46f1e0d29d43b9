package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mitchellh/go-ps"
)

// ErrWaitTimeout is returned when a process is still alive after the wait budget.
var ErrWaitTimeout = errors.New("process still running")

// Launcher starts a program that keeps running after the caller exits.
type Launcher interface {
	Start(path string, args []string) error
}

// Detached starts programs in their own process group (or console on Windows)
// with the caller's standard streams and environment.
type Detached struct{}

// Start launches path with args and releases the child immediately.
func (Detached) Start(path string, args []string) error {
	//nolint:gosec // The path is the application's own executable.
	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release %s: %w", path, err)
	}

	return nil
}

// Finder reports whether a process id is still alive.
type Finder func(pid int) (bool, error)

// Alive looks the pid up in the process table.
func Alive(pid int) (bool, error) {
	p, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}

	return p != nil, nil
}

// WaitExit polls until pid disappears, the timeout elapses or ctx is done.
func WaitExit(ctx context.Context, pid int, poll, timeout time.Duration, alive Finder) error {
	if alive == nil {
		alive = Alive
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		running, err := alive(pid)
		if err != nil {
			return err
		}

		if !running {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("pid %d after %s: %w", pid, timeout, ErrWaitTimeout)
		case <-ticker.C:
		}
	}
}
