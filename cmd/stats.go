package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/privscope/privscope/internal/utils"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-platform snapshot and template counts",
	Run: func(cmd *cobra.Command, args []string) {
		db, cleanup, err := openDB()
		if err != nil {
			utils.Log.Fatal(err)
		}
		defer cleanup()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			utils.Log.Fatal(err)
		}
		if len(stats) == 0 {
			fmt.Println("Database is empty. Run a scan first.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tSNAPSHOTS\tUSERS\tTEMPLATES")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.PlatformID, s.SnapshotCount, s.UserCount, s.TemplateCount)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
