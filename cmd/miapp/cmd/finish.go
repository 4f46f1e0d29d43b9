package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/selfupdate"
	"github.com/shercan/miapp/internal/service/process"
)

var (
	// finishPID is the process that must exit before the swap.
	finishPID int
	// finishTarget is the canonical executable path.
	finishTarget string

	// finishCmd is run by the staged binary when the helper strategy is used.
	finishCmd = &cobra.Command{
		Use:    selfupdate.FinishCommand + " --pid <pid> --target <path> [-- args...]",
		Short:  "Complete an update started by a previous process.",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), selfupdate.FinishCommand)

			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate helper executable: %w", err)
			}

			if resolved, evalErr := filepath.EvalSymlinks(self); evalErr == nil {
				self = resolved
			}

			err = selfupdate.NewFinisher(process.Detached{}).Finish(ctx, selfupdate.FinishRequest{
				PID:    finishPID,
				Target: finishTarget,
				Self:   self,
				Args:   args,
			})
			if err != nil {
				logger.ErrorKV(ctx, "Update could not be completed", "error", err)
				return err
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	finishCmd.Flags().IntVar(&finishPID, selfupdate.FlagPID, 0, "process id to wait for")
	finishCmd.Flags().StringVar(&finishTarget, selfupdate.FlagTarget, "", "executable path to replace")
	rootCmd.AddCommand(finishCmd)
}
