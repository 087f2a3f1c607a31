package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags "-X tranche/cmd/tranche/cmd.version=..."
var (
	version = "dev"
	commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if commit != "" {
			fmt.Printf("tranche %s (%s)\n", version, commit)
			return
		}
		fmt.Printf("tranche %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
