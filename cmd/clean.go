package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klauver/snatch/internal/output"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [DIR]",
	Short: "Remove stale .lock files left behind by interrupted downloads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		removed := 0
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".lock") {
				return nil
			}
			if err := os.Remove(path); err != nil {
				output.PrintWarning(fmt.Sprintf("cannot remove %s: %v", path, err))
				return nil
			}
			removed++
			return nil
		})
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		output.PrintSuccess(fmt.Sprintf("Removed %d lock file(s)", removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
