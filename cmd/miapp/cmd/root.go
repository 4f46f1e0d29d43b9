package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shercan/miapp/internal/config"
	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/metrics"
	"github.com/shercan/miapp/internal/selfupdate"
	"github.com/shercan/miapp/internal/service/submitter"
	"github.com/shercan/miapp/internal/version"
)

var (
	// configPath to the configuration file (YAML, or TOML by extension).
	configPath string
	// logLevel is the minimum level written to stderr.
	logLevel string
	// skipUpdate disables the update cycle for this run.
	skipUpdate bool
	// metricsFile receives Prometheus metrics in text format at exit.
	metricsFile string
	// pause waits for ENTER before exiting so console windows stay open.
	pause bool

	// ranSubmission is set once the root command started its work.
	ranSubmission bool
	// handedOff is set when a new binary took over this run.
	handedOff bool

	// rootCmd updates the binary when a newer release exists, then posts the staged files.
	rootCmd = &cobra.Command{
		Use:   "miapp",
		Short: "Post staged files to the configured endpoints, updating itself first.",
		Long: `Checks the release feed and replaces itself with a newer build when one is
published, then posts the first .json/.xml of every configured folder to its
endpoint. APIs run in groups ordered by "concurrencia"; each API fires its
"repeticiones" simultaneously. Responses are saved next to the inputs.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: prepare,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ranSubmission = true

			m := metrics.New()
			defer writeMetrics(ctx, m)

			if !skipUpdate {
				done, err := runUpdateCycle(ctx, m)
				if done || err != nil {
					return err
				}
			}

			return runSubmission(ctx, cmd.OutOrStdout(), m)
		},
	}
)

// Execute runs the miapp CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.ExecuteContext(context.Background())

	logger.Sync()

	if pause && ranSubmission && !handedOff {
		waitForEnter(rootCmd.InOrStdin(), rootCmd.OutOrStdout())
	}

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&skipUpdate, "skip-update", false, "do not check the release feed")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")

	rootCmd.Flags().BoolVar(&pause, "pause", runtime.GOOS == "windows", "wait for ENTER before exiting")
}

// prepare applies the log level and clears residue of an interrupted update.
// The helper process skips the cleanup: it works on another binary's files.
func prepare(cmd *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	if cmd.Name() == selfupdate.FinishCommand {
		return nil
	}

	ctx := cmd.Context()

	paths, err := selfupdate.CurrentPaths()
	if err != nil {
		logger.WarnKV(ctx, "Unable to locate executable, skipping stale update cleanup", "error", err)
		return nil
	}

	selfupdate.CleanupStale(ctx, paths)

	return nil
}

// runUpdateCycle reports done=true when this process must stop: either a
// new binary took over or the swap failed fatally (err is then non-nil).
func runUpdateCycle(ctx context.Context, m *metrics.Metrics) (bool, error) {
	orchestrator, err := selfupdate.New(selfupdate.WithObserver(func(o selfupdate.Outcome, elapsed time.Duration) {
		m.ObserveUpdate(o.String(), elapsed)
	}))
	if err != nil {
		logger.WarnKV(ctx, "Self-update unavailable", "error", err)
		return false, nil
	}

	outcome, err := orchestrator.RunUpdateCycle(ctx)

	switch outcome {
	case selfupdate.TerminatedForNewVersion:
		handedOff = true

		logger.Info(ctx, "New version started, exiting")

		return true, nil
	case selfupdate.FatalSwapFailure:
		return true, fmt.Errorf("self-update left %s unusable: %w", orchestrator.Paths().Executable, err)
	case selfupdate.ContinuedOldVersion:
	}

	return false, nil
}

func runSubmission(ctx context.Context, out io.Writer, m *metrics.Metrics) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	s, err := submitter.New(cfg)
	if err != nil {
		return err
	}

	results, err := s.Run(ctx)

	for _, r := range results {
		m.ObserveSubmission(r.API, r.Status, r.Duration)
	}

	if len(results) > 0 {
		submitter.PrintSummary(out, results)
	}

	totals := submitter.Summarize(results)
	logger.InfoKV(ctx, "Submissions completed", "ok", totals.OK, "failed", totals.Failed)

	return err
}

func writeMetrics(ctx context.Context, m *metrics.Metrics) {
	if metricsFile == "" {
		return
	}

	if err := m.WriteFile(metricsFile); err != nil {
		logger.WarnKV(ctx, "Unable to write metrics", "error", err)
	}
}

func waitForEnter(in io.Reader, out io.Writer) {
	_, _ = fmt.Fprintln(out, "Press ENTER to close...")
	_, _ = bufio.NewReader(in).ReadString('\n')
}
