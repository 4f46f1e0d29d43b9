package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shercan/miapp/internal/metrics"
)

// updateCmd runs the update cycle without submitting anything.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check the release feed and install a newer version if available.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		m := metrics.New()
		defer writeMetrics(ctx, m)

		_, err := runUpdateCycle(ctx, m)

		return err
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(updateCmd)
}
