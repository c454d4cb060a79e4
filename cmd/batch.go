package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/klauver/snatch/internal/batch"
	"github.com/klauver/snatch/internal/output"
	"github.com/klauver/snatch/internal/utils"
)

var batchCmd = &cobra.Command{
	Use:   "batch [FILE]",
	Short: "Download every entry in a YAML batch file",
	Long: `Download every entry in a YAML batch file. The file lists downloads
under a top-level "downloads" key, each with a link and an optional
output path (op) and checksum:

  downloads:
    - link: https://example.com/a.iso
      op: isos/a.iso
      checksum: sha256:deadbeef...
    - link: https://example.com/b.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		utils.InitLogger(debug)
		entries, err := batch.Load(args[0])
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		if len(entries) == 0 {
			output.PrintWarning("Batch file has no downloads")
			return nil
		}
		cfg, err := buildConfig()
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		output.PrintInfo(fmt.Sprintf("Starting %d downloads with %d workers", len(entries), workers))

		var store = openHistory()
		if noHistory {
			store = nil
		}
		if store != nil {
			defer store.Close()
		}
		if err := batch.Run(cmd.Context(), entries, workers, cfg, store); err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of parallel downloads")
	rootCmd.AddCommand(batchCmd)
}
