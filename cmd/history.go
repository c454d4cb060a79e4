package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/klauver/snatch/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store := openHistory()
		if store == nil {
			output.PrintError("cannot open download history")
			os.Exit(1)
		}
		defer store.Close()
		entries, err := store.List(historyLimit)
		if err != nil {
			output.PrintError(fmt.Sprintf("error reading history: %v", err))
			os.Exit(1)
		}
		if len(entries) == 0 {
			output.PrintInfo("No downloads recorded yet")
			return nil
		}
		for _, e := range entries {
			symbol := output.FSuccess(output.StyleSymbols["pass"])
			if e.Status != "complete" {
				symbol = output.FError(output.StyleSymbols["fail"])
			}
			fmt.Printf("%s  %s  %s\n", symbol, e.CreatedAt.Format("2006-01-02 15:04"), e.URL)
			detail := fmt.Sprintf("   %s in %s", humanize.IBytes(uint64(e.Bytes)), output.FormatETA(e.Elapsed))
			if e.Path != "" {
				detail += "  " + output.StyleSymbols["arrow"] + "  " + e.Path
			}
			if e.Status != "complete" {
				detail += "  (" + e.Status + ")"
			}
			output.PrintDetail(detail)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}
