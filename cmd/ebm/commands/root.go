package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ebm/pkg/version"
)

// NewRootCommand creates the ebm command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ebm",
		Short: "Ellipsoid boundary modeling for sensor anomaly detection",
		Long: `ebm models the temperature/humidity readings of a sensor network with
rotated ellipses and flags the readings that fall outside their region's
boundary.

Commands:
  run       Model a dataset and report anomalies
  validate  Check a JSON dataset against its schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ebm.yaml in ., ./config or /etc/ebm)")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
