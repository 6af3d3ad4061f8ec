package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"metapick/internal/startup"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := startup.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "metapick %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
			return nil
		},
	}
}
