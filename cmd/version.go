package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the snatch version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("snatch %s (%s/%s)\n", SnatchVersion, runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
