package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Go and Crucible details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "rankshop"
		if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
			name = identity.BinaryName
		}
		out := cmd.OutOrStdout()

		_, _ = fmt.Fprintf(out, "%s %s\n", name, versionInfo.Version)
		if !extended {
			return nil
		}
		_, _ = fmt.Fprintf(out, "Commit: %s\nBuilt: %s\nGo: %s\n\n", versionInfo.Commit, versionInfo.BuildDate, runtime.Version())

		version := crucible.GetVersion()
		_, err := fmt.Fprintf(out, "Gofulmen: %s\nCrucible: %s\n", version.Gofulmen, version.Crucible)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
