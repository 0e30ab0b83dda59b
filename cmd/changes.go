package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privscope/privscope/internal/utils"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recently detected setting changes",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		db, cleanup, err := openDB()
		if err != nil {
			utils.Log.Fatal(err)
		}
		defer cleanup()

		changes, err := db.RecentChanges(context.Background(), limit)
		if err != nil {
			utils.Log.Fatal(err)
		}
		if len(changes) == 0 {
			fmt.Println("No changes recorded.")
			return
		}
		for _, c := range changes {
			fmt.Printf("%s  %s/%s: %v -> %v\n", c.DetectedAt.Format("2006-01-02 15:04:05"), c.Category, c.Setting, c.Old, c.New)
		}
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().IntP("limit", "n", 50, "Maximum number of changes to show")
}
