package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/privscope/privscope/internal/utils"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots past the retention window",
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("older-than")
		if days <= 0 {
			days = viper.GetInt("retention.days")
		}
		if days <= 0 {
			utils.Log.Fatal("retention must be a positive number of days")
		}

		db, cleanup, err := openDB()
		if err != nil {
			utils.Log.Fatal(err)
		}
		defer cleanup()

		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err := db.PruneSnapshots(context.Background(), cutoff)
		if err != nil {
			utils.Log.Fatal(err)
		}
		fmt.Printf("Removed %d snapshots older than %d days.\n", removed, days)
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbPruneCmd)
	dbPruneCmd.Flags().Int("older-than", 0, "Retention window in days (default from config retention.days)")
}
