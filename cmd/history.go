package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fsbench/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewStore(viper.GetString("data_dir"))
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.List()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tRUN ID\tSTATUS\tWORKERS\tMISSING\tRECORDS\tFAILED\tAGE")
		for _, it := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				it.StartedAt.Format("2006-01-02 15:04:05"), it.RunID, it.Status,
				it.Workers, it.Missing, humanize.Comma(int64(it.Records)), humanize.Comma(int64(it.Failed)),
				humanize.Time(it.StartedAt))
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the recorded summary of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewStore(viper.GetString("data_dir"))
		if err != nil {
			return err
		}
		defer store.Close()

		it, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Run:        %s\n", it.RunID)
		fmt.Printf("Status:     %s\n", it.Status)
		fmt.Printf("Started:    %s\n", it.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration:   %s\n", it.FinishedAt.Sub(it.StartedAt).Round(time.Millisecond))
		fmt.Printf("Workers:    %d (%d missing)\n", it.Workers, it.Missing)
		fmt.Printf("Records:    %s (%s ok, %s failed)\n", humanize.Comma(int64(it.Records)), humanize.Comma(int64(it.Succeeded)), humanize.Comma(int64(it.Failed)))
		fmt.Printf("Dataset:    %s\n", it.MergedPath)
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
}
