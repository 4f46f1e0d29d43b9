package cmd

import (
	"github.com/spf13/cobra"

	"github.com/shercan/miapp/internal/selfupdate"
	"github.com/shercan/miapp/internal/service/packager"
)

// checksumsOutput is where the checksums file is written.
var checksumsOutput string

// checksumsCmd writes checksums.txt for release artifacts.
var checksumsCmd = &cobra.Command{
	Use:   "checksums <artifact>...",
	Short: "Write checksums.txt for release artifacts.",
	Long: `Hashes the given artifacts with SHA-256 and writes them in sha256sum format.
Publish the file next to the artifacts; the updater verifies downloads against it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return packager.Run(cmd.Context(), &packager.Options{
			Files:  args,
			Output: checksumsOutput,
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	checksumsCmd.Flags().StringVarP(&checksumsOutput, "output", "o", selfupdate.ChecksumsAsset, "checksums file to write")
	rootCmd.AddCommand(checksumsCmd)
}
