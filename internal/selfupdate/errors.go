package selfupdate

import (
	"errors"
	"fmt"

	domain "github.com/shercan/miapp/internal/domain/update"
)

var (
	// ErrNetwork is returned when the feed or an artifact cannot be fetched.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited is a network error caused by an exhausted API quota.
	ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", ErrNetwork)
	// ErrFeedFormat is returned when the feed response is not a usable release.
	ErrFeedFormat = errors.New("malformed release feed")
	// ErrArtifactNotFound is returned when the release has no build for this platform.
	ErrArtifactNotFound = errors.New("artifact not found for platform")
	// ErrChecksumMismatch is returned when the artifact does not match checksums.txt.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrFilesystem is returned when staging, renaming or writing files fails.
	ErrFilesystem = errors.New("filesystem error")
	// ErrRelaunch is returned when the new binary could not be started.
	ErrRelaunch = errors.New("relaunch failed")
)

// SwapError reports a swap that stopped after Phase was completed.
type SwapError struct {
	// Phase is the last step that completed before the failure.
	Phase domain.Phase
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *SwapError) Error() string {
	return fmt.Sprintf("swap stopped after phase %q: %v", e.Phase, e.Err)
}

// Unwrap exposes the cause for errors.Is.
func (e *SwapError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the canonical path lost its binary or already holds
// a new binary that is not running.
func (e *SwapError) Fatal() bool {
	return e.Phase == domain.PhaseBackedUp || e.Phase == domain.PhaseInstalled
}
