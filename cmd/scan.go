package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privscope/privscope/internal/utils"
	"github.com/privscope/privscope/pkg/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one privacy settings scan for a user and platform",
	Run: func(cmd *cobra.Command, args []string) {
		user, _ := cmd.Flags().GetString("user")
		platform, _ := cmd.Flags().GetString("platform")
		method, _ := cmd.Flags().GetString("method")

		db, cleanup, err := openDB()
		if err != nil {
			utils.Log.Fatal(err)
		}
		defer cleanup()

		eng, err := buildEngine(db)
		if err != nil {
			utils.Log.Fatal(err)
		}

		snap, err := eng.Scan(context.Background(), scan.Context{
			UserID:     user,
			PlatformID: platform,
			Method:     scan.Method(method),
		})
		if err != nil {
			var se *scan.Error
			if errors.As(err, &se) && se.Retryable {
				utils.Log.Fatalf("scan failed (retryable): %v", err)
			}
			utils.Log.Fatalf("scan failed: %v", err)
		}

		fmt.Printf("snapshot #%d for %s on %s\n", snap.ID, snap.UserID, snap.PlatformID)
		fmt.Printf("  method: %s, confidence: %.2f, completion: %.0f%%\n", snap.Method, snap.Confidence, snap.CompletionRate*100)
		if snap.TemplateOptimized {
			fmt.Printf("  template: %s (%d deviations stored)\n", snap.TemplateID, snap.Settings.Count())
		} else {
			fmt.Printf("  template optimization unavailable, %d raw settings stored\n", snap.Settings.Count())
		}
		fmt.Printf("  risk score: %d/100\n", snap.RiskScore)
		for _, f := range snap.RiskFactors {
			fmt.Printf("    - %s\n", f)
		}
		if len(snap.Changes) > 0 {
			fmt.Printf("  %d changed since last scan:\n", len(snap.Changes))
			for _, c := range snap.Changes {
				fmt.Printf("    %s/%s: %v -> %v\n", c.Category, c.Setting, c.Old, c.New)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("user", "u", "", "User id to scan for (required)")
	scanCmd.Flags().StringP("platform", "p", "", "Platform id to scan (required)")
	scanCmd.Flags().StringP("method", "m", string(scan.MethodFallback), "Scan method: extension or fallback-fetch")
	_ = scanCmd.MarkFlagRequired("user")
	_ = scanCmd.MarkFlagRequired("platform")
}
