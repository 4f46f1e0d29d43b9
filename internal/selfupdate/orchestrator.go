package selfupdate

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/service/process"
	"github.com/shercan/miapp/internal/version"
)

// Outcome is the terminal state of an update cycle.
type Outcome int

const (
	// ContinuedOldVersion means the current binary keeps running.
	ContinuedOldVersion Outcome = iota
	// TerminatedForNewVersion means the new binary was started and this
	// process should exit with status 0.
	TerminatedForNewVersion
	// FatalSwapFailure means the canonical path lost its binary or holds a
	// new binary that could not be started. Exit non-zero.
	FatalSwapFailure
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case ContinuedOldVersion:
		return "continued"
	case TerminatedForNewVersion:
		return "updated"
	case FatalSwapFailure:
		return "fatal"
	default:
		return "unknown"
	}
}

// Updated reports whether control was handed to a new binary.
func (o Outcome) Updated() bool {
	return o == TerminatedForNewVersion
}

// Observer receives the result of every cycle.
type Observer func(outcome Outcome, elapsed time.Duration)

// Orchestrator sequences check, download and swap.
type Orchestrator struct {
	feed         *FeedClient
	downloader   *Downloader
	swapper      Swapper
	paths        Paths
	localVersion string
	args         []string
	observe      Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFeed sets the release feed client.
func WithFeed(feed *FeedClient) Option {
	return func(o *Orchestrator) {
		o.feed = feed
	}
}

// WithDownloader sets the artifact downloader.
func WithDownloader(d *Downloader) Option {
	return func(o *Orchestrator) {
		o.downloader = d
	}
}

// WithSwapper sets the swap strategy.
func WithSwapper(s Swapper) Option {
	return func(o *Orchestrator) {
		o.swapper = s
	}
}

// WithPaths sets the executable paths instead of resolving os.Executable.
func WithPaths(p Paths) Option {
	return func(o *Orchestrator) {
		o.paths = p
	}
}

// WithLocalVersion overrides the running version.
func WithLocalVersion(v string) Option {
	return func(o *Orchestrator) {
		o.localVersion = v
	}
}

// WithArgs sets the arguments passed to the relaunched binary.
func WithArgs(args []string) Option {
	return func(o *Orchestrator) {
		o.args = args
	}
}

// WithObserver registers a callback for cycle results.
func WithObserver(observe Observer) Option {
	return func(o *Orchestrator) {
		o.observe = observe
	}
}

// New creates an Orchestrator. Unset collaborators get production defaults.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		localVersion: version.Version,
	}

	if len(os.Args) > 1 {
		o.args = os.Args[1:]
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.paths.Executable == "" {
		paths, err := CurrentPaths()
		if err != nil {
			return nil, err
		}

		o.paths = paths
	}

	if o.feed == nil {
		o.feed = NewFeedClient()
	}

	if o.downloader == nil {
		o.downloader = NewDownloader()
	}

	if o.swapper == nil {
		o.swapper = NewSwapper(DetectCapability(os.Getenv), process.Detached{})
	}

	return o, nil
}

// Paths returns the files the orchestrator works on.
func (o *Orchestrator) Paths() Paths {
	return o.paths
}

// RunUpdateCycle checks the feed and, when a newer release exists, installs it
// and relaunches. Errors in the check and download phases come back with
// ContinuedOldVersion and are informational. A non-nil error with
// FatalSwapFailure must end the process.
func (o *Orchestrator) RunUpdateCycle(ctx context.Context) (Outcome, error) {
	ctx = logger.WithName(ctx, "selfupdate")
	started := time.Now()

	outcome, err := o.run(ctx)

	switch {
	case outcome == FatalSwapFailure:
		logger.ErrorKV(ctx, "Update failed inside the swap", "error", err)
	case err != nil:
		logger.WarnKV(ctx, "Update skipped, continuing with current version", "error", err)
	}

	if o.observe != nil {
		o.observe(outcome, time.Since(started))
	}

	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context) (Outcome, error) {
	if version.IsDevelopment(o.localVersion) {
		logger.Info(ctx, "Development build, self-update disabled")
		return ContinuedOldVersion, nil
	}

	logger.DebugKV(ctx, "Checking for updates", "feed", o.feed.LatestURL(), "local", o.localVersion)

	release, err := o.feed.FetchLatest(ctx)
	if err != nil {
		return ContinuedOldVersion, err
	}

	if !IsNewer(release.Tag, o.localVersion) {
		logger.InfoKV(ctx, "Already up to date", "local", o.localVersion, "latest", release.Tag)
		return ContinuedOldVersion, nil
	}

	logger.InfoKV(ctx, "Update available", "local", o.localVersion, "latest", release.Tag)

	staged, err := o.downloader.Download(ctx, release, o.paths.Staged)
	if err != nil {
		o.discardStaged(ctx)
		return ContinuedOldVersion, err
	}

	paths := o.paths
	paths.Staged = staged

	outcome, err := o.swapper.Apply(ctx, SwapRequest{
		Paths:       paths,
		Args:        o.args,
		FromVersion: o.localVersion,
		ToVersion:   release.Tag,
	})

	var swapErr *SwapError
	if errors.As(err, &swapErr) && swapErr.Fatal() {
		outcome = FatalSwapFailure
	}

	if outcome == ContinuedOldVersion {
		o.discardStaged(ctx)
	}

	return outcome, err
}

func (o *Orchestrator) discardStaged(ctx context.Context) {
	if err := os.Remove(o.paths.Staged); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove staged artifact", "path", o.paths.Staged, "error", err)
	}
}
